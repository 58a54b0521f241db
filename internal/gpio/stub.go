//go:build !linux

package gpio

// RealWriter is not available on non-Linux platforms.
type RealWriter struct{}

// NewRealWriter returns ErrNotSupported on non-Linux platforms.
func NewRealWriter(chip string, offset int) (*RealWriter, error) {
	return nil, ErrNotSupported
}

// Set is not implemented on non-Linux platforms.
func (w *RealWriter) Set(high bool) error {
	return ErrNotSupported
}

// Close is not implemented on non-Linux platforms.
func (w *RealWriter) Close() error {
	return nil
}
