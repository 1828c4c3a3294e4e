package converter

// EncodedImage is one page after resampling and JPEG compression, ready
// to be written out or embedded into a PDF stream.
type EncodedImage struct {
	Data     []byte
	WidthPx  int
	HeightPx int
	Gray     bool
	DPI      float64
}

// Encoder resamples a source TIFF to a target resolution and compresses
// it as JPEG. targetDPI 0 keeps the source resolution; sources below the
// target are never upscaled.
type Encoder interface {
	EncodeJPEG(inputPath string, targetDPI, quality int, progressive bool) (EncodedImage, error)
}
