// Package pdf_writer emits multi-page PDFs by hand. JPEG page images go
// straight into DCTDecode streams without recompression, and every byte is
// counted as it is written so callers can split output against a size
// budget before a page is committed.
package pdf_writer

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"tiffmill/ocr"
)

type PDFWriter struct {
	objects []int64
	pages   []pageInfo
	bw      *bufio.Writer
	cw      *countingWriter
	objNum  int

	pagesObjID   int64
	fontObjID    int64
	pageIDs      []int64
	catalogObjID int64
}

type pageInfo struct {
	imgID    int64
	widthPx  int
	heightPx int
	scale    float64 // points per pixel
	text     []ocr.Region
}

type countingWriter struct {
	w      io.Writer
	offset int64
}

func NewPDFWriter(dst io.Writer) (*PDFWriter, error) {
	cw := &countingWriter{
		w: dst,
	}
	pw := &PDFWriter{
		cw: cw,
		bw: bufio.NewWriterSize(cw, 8*1024*1024), // 8MB buffer
	}

	if _, err := pw.bw.WriteString("%PDF-1.7\n%\xFF\xFF\xFF\xFF\n"); err != nil {
		return nil, fmt.Errorf("error writing PDF header: %v", err)
	}
	return pw, nil
}

func (cw *countingWriter) Write(p []byte) (n int, err error) {
	n, err = cw.w.Write(p)
	if err == nil {
		cw.offset += int64(n)
	}
	return n, err
}

func (pw *PDFWriter) getOffset() int64 {
	return pw.cw.offset + int64(pw.bw.Buffered())
}

// BytesWritten reports how many bytes the document occupies so far,
// including buffered data. The trailer written by Finish adds a fixed
// amount on top; see PageOverhead.
func (pw *PDFWriter) BytesWritten() int64 {
	return pw.getOffset()
}

// PageCount reports how many pages have been added so far.
func (pw *PDFWriter) PageCount() int {
	return len(pw.pages)
}

// PageOverhead is a conservative upper bound on the non-image bytes one
// page adds to the finished document: its content stream with the text
// layer, the page object and its share of xref and document structure.
const PageOverhead = 4 * 1024

// EstimatePageCost bounds the bytes a page would add to the finished
// document: its image data, its content stream with the text layer, and
// PageOverhead for the surrounding objects.
func (pw *PDFWriter) EstimatePageCost(dataLen, widthPx, heightPx int, dpi float64, text []ocr.Region) int64 {
	if dpi <= 0 {
		dpi = 300
	}
	p := pageInfo{
		widthPx:  widthPx,
		heightPx: heightPx,
		scale:    72.0 / dpi,
		text:     text,
	}
	content := len(pw.buildContent("img_000", p))
	return int64(dataLen) + int64(content) + PageOverhead
}

func (pw *PDFWriter) newObject() int64 {
	pw.objNum++
	pw.objects = append(pw.objects, pw.getOffset())
	pw.bw.WriteString(fmt.Sprintf("%d 0 obj\n", pw.objNum))
	return int64(pw.objNum)
}

// AddJPEGPage appends one page backed by already-encoded JPEG data. The
// page is sized so the image prints at dpi; text regions (pixel
// coordinates on the same image) become an invisible selectable layer.
func (pw *PDFWriter) AddJPEGPage(data []byte, widthPx, heightPx int, gray bool, dpi float64, text []ocr.Region) error {
	if dpi <= 0 {
		dpi = 300
	}
	colorSpace := "/DeviceRGB"
	if gray {
		colorSpace = "/DeviceGray"
	}

	imgID := pw.newObject()
	pw.pages = append(pw.pages, pageInfo{
		imgID:    imgID,
		widthPx:  widthPx,
		heightPx: heightPx,
		scale:    72.0 / dpi,
		text:     text,
	})

	pw.bw.WriteString("<<\n/Type /XObject\n/Subtype /Image\n")
	pw.bw.WriteString(fmt.Sprintf("/Width %d\n/Height %d\n", widthPx, heightPx))
	pw.bw.WriteString(fmt.Sprintf("/ColorSpace %s\n/BitsPerComponent 8\n", colorSpace))
	pw.bw.WriteString("/Filter /DCTDecode\n")

	pw.bw.WriteString(fmt.Sprintf("/Length %d\n", len(data)))
	pw.bw.WriteString(">>\nstream\n")
	pw.bw.Write(data)
	pw.bw.WriteString("\nendstream\nendobj\n")
	return nil
}

// escapeText guards the characters PDF string literals treat specially.
func escapeText(s string) string {
	r := strings.NewReplacer("\\", "\\\\", "(", "\\(", ")", "\\)")
	return r.Replace(s)
}

func (pw *PDFWriter) buildContent(imgName string, p pageInfo) string {
	wPt := float64(p.widthPx) * p.scale
	hPt := float64(p.heightPx) * p.scale

	var sb strings.Builder
	fmt.Fprintf(&sb, "q\n%.2f 0 0 %.2f 0 0 cm\n/%s Do\nQ\n", wPt, hPt, imgName)

	if len(p.text) > 0 {
		// rendering mode 3: text is selectable but never inked
		sb.WriteString("BT\n3 Tr\n")
		for _, region := range p.text {
			boxH := float64(region.Bottom-region.Top) * p.scale
			if boxH <= 0 {
				continue
			}
			x := float64(region.Left) * p.scale
			y := hPt - float64(region.Bottom)*p.scale
			fmt.Fprintf(&sb, "/F1 %.2f Tf\n", boxH)
			fmt.Fprintf(&sb, "1 0 0 1 %.2f %.2f Tm\n", x, y)
			fmt.Fprintf(&sb, "(%s) Tj\n", escapeText(region.Text))
		}
		sb.WriteString("ET\n")
	}
	return sb.String()
}

func (pw *PDFWriter) writeContent(imgName string, p pageInfo) int64 {
	content := []byte(pw.buildContent(imgName, p))
	objID := pw.newObject()
	pw.bw.WriteString("<<\n")
	pw.bw.WriteString(fmt.Sprintf("/Length %d\n", len(content)))
	pw.bw.WriteString(">>\n")
	pw.bw.WriteString("stream\n")
	pw.bw.Write(content)
	pw.bw.WriteString("endstream\nendobj\n")
	return objID
}

func (pw *PDFWriter) writePage(imgName string, p pageInfo, contentID int64) int64 {
	wPt := float64(p.widthPx) * p.scale
	hPt := float64(p.heightPx) * p.scale

	objID := pw.newObject()
	pw.bw.WriteString("<<\n")
	pw.bw.WriteString("/Type /Page\n")
	pw.bw.WriteString(fmt.Sprintf("/Parent %d 0 R\n", pw.pagesObjID))
	pw.bw.WriteString(fmt.Sprintf("/MediaBox [0 0 %.2f %.2f]\n", wPt, hPt))
	pw.bw.WriteString(fmt.Sprintf(
		"/Resources << /XObject << /%s %d 0 R >> /Font << /F1 %d 0 R >> >>\n",
		imgName, p.imgID, pw.fontObjID))
	pw.bw.WriteString(fmt.Sprintf("/Contents %d 0 R\n", contentID))
	pw.bw.WriteString(">>\nendobj\n")
	return objID
}

func (pw *PDFWriter) writeFont() int64 {
	objID := pw.newObject()
	pw.bw.WriteString("<<\n")
	pw.bw.WriteString("/Type /Font\n/Subtype /Type1\n/BaseFont /Helvetica\n/Encoding /WinAnsiEncoding\n")
	pw.bw.WriteString(">>\nendobj\n")
	return objID
}

func (pw *PDFWriter) createDocumentStructure() error {
	if err := pw.bw.Flush(); err != nil {
		return fmt.Errorf("error flushing buffer before creating structure: %v", err)
	}

	pw.fontObjID = pw.writeFont()

	// placeholder Pages object; rewritten below once the kids are known
	pw.pagesObjID = pw.newObject()

	pw.bw.WriteString("<<\n")
	pw.bw.WriteString("/Type /Pages\n")
	pw.bw.WriteString("/Count 0\n")
	pw.bw.WriteString("/Kids []\n")
	pw.bw.WriteString(">>\nendobj\n")

	for i, p := range pw.pages {
		imgName := fmt.Sprintf("img_%d", i)

		contentID := pw.writeContent(imgName, p)
		pageID := pw.writePage(imgName, p, contentID)
		pw.pageIDs = append(pw.pageIDs, pageID)
	}

	// point the xref at the rewritten Pages object
	pw.objects[pw.pagesObjID-1] = pw.getOffset()

	pw.bw.WriteString(fmt.Sprintf("%d 0 obj\n", pw.pagesObjID))
	pw.bw.WriteString("<<\n")
	pw.bw.WriteString("/Type /Pages\n")
	pw.bw.WriteString(fmt.Sprintf("/Count %d\n", len(pw.pageIDs)))
	pw.bw.WriteString("/Kids [\n")
	for _, id := range pw.pageIDs {
		pw.bw.WriteString(fmt.Sprintf("%d 0 R ", id))
	}
	pw.bw.WriteString("]\n>>\nendobj\n")

	pw.catalogObjID = pw.newObject()
	pw.bw.WriteString("<<\n")
	pw.bw.WriteString(fmt.Sprintf("/Type /Catalog\n/Pages %d 0 R\n", pw.pagesObjID))
	pw.bw.WriteString(">>\nendobj\n")

	if err := pw.bw.Flush(); err != nil {
		return fmt.Errorf("error flushing buffer after creating structure: %v", err)
	}

	return nil
}

func (pw *PDFWriter) Finish() error {
	if err := pw.createDocumentStructure(); err != nil {
		return fmt.Errorf("failed to create document structure before finishing: %v", err)
	}

	startXref := pw.cw.offset
	total := len(pw.objects) + 1

	if _, err := fmt.Fprintf(pw.cw.w, "xref\n0 %d\n", total); err != nil {
		return fmt.Errorf("error writing xref header: %v", err)
	}
	if _, err := fmt.Fprintf(pw.cw.w, "%010d %05d f \n", 0, 65535); err != nil {
		return fmt.Errorf("error writing free object xref entry: %v", err)
	}
	for _, off := range pw.objects {
		if _, err := fmt.Fprintf(pw.cw.w, "%010d %05d n \n", off, 0); err != nil {
			return fmt.Errorf("error writing object xref entry: %v", err)
		}
	}

	if _, err := fmt.Fprintf(pw.cw.w,
		"trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF",
		total, pw.catalogObjID, startXref,
	); err != nil {
		return fmt.Errorf("error writing trailer and startxref: %v", err)
	}

	return nil
}
