//go:build !cgo

package converter

// NewEncoder returns the in-process encoder when the build has no cgo.
func NewEncoder() Encoder {
	return &goEncoder{}
}
