package contracts

// ProcessingUnit is one subfolder that contains a "TIFF" directory. The
// TIFF files are kept in stable sort order by lowercased filename so that
// page sequence survives filesystem enumeration order.
type ProcessingUnit struct {
	Name          string
	Path          string
	TIFFDir       string
	TIFFFiles     []string
	TIFFFilesSize int64
}
