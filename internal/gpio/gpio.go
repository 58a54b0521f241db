// Package gpio provides a GPIO output line with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "errors"

// ErrNotSupported is returned where no GPIO character device exists.
var ErrNotSupported = errors.New("gpio: not supported on this platform (requires Linux)")

// Writer drives a single GPIO output line.
type Writer interface {
	// Set drives the line high (true) or low (false).
	Set(high bool) error

	// Close drives the line low and releases it.
	Close() error
}

// Defaults for the mirrored output line.
const (
	DefaultChip = "gpiochip0"
	DefaultLine = -1 // disabled
)
