// Package metxml builds MET/METS metadata documents for converted archive
// material: a per-source record with technical attributes and checksum, and
// a per-format aggregate with a PREMIS object list.
package metxml

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tiffmill/imageinfo"
)

const (
	metsNS     = "http://www.loc.gov/METS/"
	xlinkNS    = "http://www.w3.org/1999/xlink"
	xsiNS      = "http://www.w3.org/2001/XMLSchema-instance"
	metsSchema = "http://www.loc.gov/METS/ http://www.loc.gov/standards/mets/mets.xsd"
	premisNS   = "http://www.loc.gov/premis/v3"
	timeLayout = "2006-01-02T15:04:05"
)

// Builder carries the knobs shared by every document of a run.
type Builder struct {
	Organization      string
	Creator           string
	IncludeImage      bool
	IncludeFile       bool
	IncludeProcessing bool

	// Now is swappable so tests get stable timestamps.
	Now func() time.Time
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// OutputFile describes one produced derivative for the per-format aggregate.
type OutputFile struct {
	InputPath  string
	OutputPath string
	Size       int64
	Info       imageinfo.Info
}

// Document is the marshaling root. XMLName distinguishes the per-file
// record ("met") from the per-format aggregate ("mets").
type Document struct {
	XMLName        xml.Name
	NS             string `xml:"xmlns,attr"`
	XlinkNS        string `xml:"xmlns:xlink,attr"`
	XsiNS          string `xml:"xmlns:xsi,attr"`
	SchemaLocation string `xml:"xsi:schemaLocation,attr"`

	ObjID   string  `xml:"objid"`
	Agent   agent   `xml:"agent"`
	Header  header  `xml:"metsHdr"`
	FileSec fileSec `xml:"fileSec"`
	AmdSec  amdSec  `xml:"amdSec"`
}

type agent struct {
	Role      string `xml:"ROLE,attr"`
	Type      string `xml:"TYPE,attr"`
	OtherType string `xml:"OTHERTYPE,attr,omitempty"`
	Name      string `xml:"name"`
}

type header struct {
	CreateDate  string `xml:"CREATEDATE,attr"`
	LastModDate string `xml:"LASTMODDATE,attr"`
	Agent       agent  `xml:"agent"`
}

type fileSec struct {
	Groups []fileGrp `xml:"fileGrp"`
}

type fileGrp struct {
	Use   string      `xml:"USE,attr"`
	ID    string      `xml:"ID,attr,omitempty"`
	Files []fileEntry `xml:"file"`
}

type fileEntry struct {
	ID           string       `xml:"ID,attr"`
	MIMEType     string       `xml:"MIMETYPE,attr"`
	Size         int64        `xml:"SIZE,attr"`
	Created      string       `xml:"CREATED,attr,omitempty"`
	Checksum     string       `xml:"CHECKSUM,attr,omitempty"`
	ChecksumType string       `xml:"CHECKSUMTYPE,attr,omitempty"`
	Location     fLocat       `xml:"FLocat"`
	Image        *imageDetail `xml:"imageInfo,omitempty"`
	File         *fileDetail  `xml:"fileInfo,omitempty"`
	Processing   *processing  `xml:"processingInfo,omitempty"`
}

type fLocat struct {
	Href string `xml:"xlink:href,attr"`
}

type imageDetail struct {
	Width       int    `xml:"width,attr,omitempty"`
	Height      int    `xml:"height,attr,omitempty"`
	DPIX        string `xml:"dpi_x,attr,omitempty"`
	DPIY        string `xml:"dpi_y,attr,omitempty"`
	Pages       int    `xml:"pages,attr,omitempty"`
	Compression string `xml:"compression,attr,omitempty"`
}

type fileDetail struct {
	Name      string `xml:"name,attr"`
	Extension string `xml:"extension,attr"`
	SizeBytes int64  `xml:"size_bytes,attr"`
	SizeMB    string `xml:"size_mb,attr"`
	Modified  string `xml:"modified,attr,omitempty"`
}

type processing struct {
	Converter        string `xml:"converter,attr"`
	ConversionDate   string `xml:"conversion_date,attr"`
	MetadataStandard string `xml:"metadata_standard,attr"`
	Version          string `xml:"version,attr"`
}

type amdSec struct {
	Tech   *techMD   `xml:"techMD,omitempty"`
	Premis *premisMD `xml:"premisMD,omitempty"`
}

type techMD struct {
	ID   string `xml:"ID,attr"`
	Wrap mdWrap `xml:"mdWrap"`
}

type premisMD struct {
	ID   string `xml:"ID,attr"`
	Wrap mdWrap `xml:"mdWrap"`
}

type mdWrap struct {
	MDType      string  `xml:"MDTYPE,attr"`
	OtherMDType string  `xml:"OTHERMDTYPE,attr,omitempty"`
	Data        xmlData `xml:"xmlData"`
}

type xmlData struct {
	Technical *technicalInfo `xml:"technicalInfo,omitempty"`
	Premis    *premisDoc     `xml:"premis,omitempty"`
}

type technicalInfo struct {
	Format         string `xml:"format,attr"`
	ConversionDate string `xml:"conversionDate,attr"`
	Converter      string `xml:"converter,attr"`
}

type premisDoc struct {
	NS      string         `xml:"xmlns,attr"`
	Version string         `xml:"version,attr"`
	Objects []premisObject `xml:"objects>object"`
}

type premisObject struct {
	Type            string           `xml:"xsi:type,attr"`
	Identifier      objectIdentifier `xml:"objectIdentifier"`
	Characteristics characteristics  `xml:"objectCharacteristics"`
}

type objectIdentifier struct {
	Value string `xml:"objectIdentifierValue"`
	Type  string `xml:"objectIdentifierType"`
}

type characteristics struct {
	Size   int64        `xml:"size"`
	Format formatDesig  `xml:"format>formatDesignation"`
	Date   creationDate `xml:"creation"`
}

type formatDesig struct {
	Name string `xml:"formatName"`
}

type creationDate struct {
	DateCreated string `xml:"dateCreated"`
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// MIMEType maps a format name to the media type of its outputs.
func MIMEType(format string) string {
	switch {
	case strings.HasPrefix(format, "jpg"):
		return "image/jpeg"
	case strings.HasPrefix(format, "pdf"), format == "consolidated_pdf":
		return "application/pdf"
	case format == "met_metadata":
		return "application/xml"
	default:
		return "application/octet-stream"
	}
}

// FileDocument builds the per-source record: one preservation fileGrp for
// the original image with checksum, technical attributes and a techMD
// section.
func (b *Builder) FileDocument(inputPath string, info imageinfo.Info) *Document {
	now := b.now().Format(timeLayout)
	name := stem(inputPath)
	abs, err := filepath.Abs(inputPath)
	if err != nil {
		abs = inputPath
	}

	entry := fileEntry{
		ID:       "FILE_" + name,
		MIMEType: "image/tiff",
		Size:     info.SizeBytes,
		Location: fLocat{Href: abs},
	}
	if !info.Modified.IsZero() {
		entry.Created = info.Modified.Format(timeLayout)
	}
	if info.MD5 != "" {
		entry.Checksum = info.MD5
		entry.ChecksumType = "MD5"
	}
	if b.IncludeImage {
		entry.Image = imageAttrs(info)
	}
	if b.IncludeFile {
		entry.File = fileAttrs(inputPath, info)
	}
	if b.IncludeProcessing {
		entry.Processing = &processing{
			Converter:        b.Creator,
			ConversionDate:   now,
			MetadataStandard: "MET",
			Version:          "1.0",
		}
	}

	return &Document{
		XMLName:        xml.Name{Local: "met"},
		NS:             metsNS,
		XlinkNS:        xlinkNS,
		XsiNS:          xsiNS,
		SchemaLocation: metsSchema,
		ObjID:          name,
		Agent:          agent{Role: "CREATOR", Type: "ORGANIZATION", Name: b.Organization},
		Header: header{
			CreateDate:  now,
			LastModDate: now,
			Agent:       agent{Role: "CREATOR", Type: "OTHER", OtherType: "SOFTWARE", Name: b.Creator},
		},
		FileSec: fileSec{Groups: []fileGrp{{
			Use:   "PRESERVATION",
			Files: []fileEntry{entry},
		}}},
		AmdSec: amdSec{Tech: &techMD{
			ID: "TECHMD_" + name,
			Wrap: mdWrap{
				MDType:      "OTHER",
				OtherMDType: "TECHNICAL",
				Data: xmlData{Technical: &technicalInfo{
					Format:         "TIFF",
					ConversionDate: now,
					Converter:      b.Creator,
				}},
			},
		}},
	}
}

// FormatDocument builds the per-format aggregate: every derivative the
// format produced in one unit, plus a PREMIS representation object per
// derivative.
func (b *Builder) FormatDocument(format string, files []OutputFile) *Document {
	now := b.now().Format(timeLayout)
	upper := strings.ToUpper(format)

	grp := fileGrp{
		Use: upper,
		ID:  "FILEGRP_" + upper,
	}
	var objects []premisObject
	for _, of := range files {
		name := stem(of.InputPath)
		abs, err := filepath.Abs(of.OutputPath)
		if err != nil {
			abs = of.OutputPath
		}
		entry := fileEntry{
			ID:       fmt.Sprintf("FILE_%s_%s", name, format),
			MIMEType: MIMEType(format),
			Size:     of.Size,
			Location: fLocat{Href: abs},
		}
		if b.IncludeImage {
			entry.Image = imageAttrs(of.Info)
		}
		if b.IncludeFile {
			entry.File = fileAttrs(of.InputPath, of.Info)
		}
		grp.Files = append(grp.Files, entry)

		objects = append(objects, premisObject{
			Type: "representation",
			Identifier: objectIdentifier{
				Value: fmt.Sprintf("%s_%s", name, format),
				Type:  "LOCAL",
			},
			Characteristics: characteristics{
				Size:   of.Size,
				Format: formatDesig{Name: format},
				Date:   creationDate{DateCreated: now},
			},
		})
	}

	return &Document{
		XMLName:        xml.Name{Local: "mets"},
		NS:             metsNS,
		XlinkNS:        xlinkNS,
		XsiNS:          xsiNS,
		SchemaLocation: metsSchema,
		ObjID:          "MET_" + upper,
		Agent:          agent{Role: "CREATOR", Type: "ORGANIZATION", Name: b.Organization},
		Header: header{
			CreateDate:  now,
			LastModDate: now,
			Agent:       agent{Role: "CREATOR", Type: "OTHER", OtherType: "SOFTWARE", Name: b.Creator},
		},
		FileSec: fileSec{Groups: []fileGrp{grp}},
		AmdSec: amdSec{Premis: &premisMD{
			ID: "PREMIS_" + upper,
			Wrap: mdWrap{
				MDType: "PREMIS",
				Data: xmlData{Premis: &premisDoc{
					NS:      premisNS,
					Version: "3.0",
					Objects: objects,
				}},
			},
		}},
	}
}

func imageAttrs(info imageinfo.Info) *imageDetail {
	if info.WidthPx == 0 && info.Pages == 0 && info.Compression == "" {
		return nil
	}
	d := &imageDetail{
		Width:       info.WidthPx,
		Height:      info.HeightPx,
		Pages:       info.Pages,
		Compression: info.Compression,
	}
	if info.DPIX > 0 {
		d.DPIX = fmt.Sprintf("%g", info.DPIX)
	}
	if info.DPIY > 0 {
		d.DPIY = fmt.Sprintf("%g", info.DPIY)
	}
	return d
}

func fileAttrs(path string, info imageinfo.Info) *fileDetail {
	d := &fileDetail{
		Name:      filepath.Base(path),
		Extension: filepath.Ext(path),
		SizeBytes: info.SizeBytes,
		SizeMB:    fmt.Sprintf("%.2f", float64(info.SizeBytes)/(1024*1024)),
	}
	if !info.Modified.IsZero() {
		d.Modified = info.Modified.Format(timeLayout)
	}
	return d
}

// Encode writes the document as indented XML with a declaration.
func (d *Document) Encode(w io.Writer) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encoding MET document: %w", err)
	}
	return enc.Flush()
}

// WriteFile writes the document to path, creating parent directories.
func (d *Document) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metadata dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := d.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
