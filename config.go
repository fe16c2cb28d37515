package ledmatrix

import (
	"errors"
	"time"

	"github.com/bodgit/ledmatrix/internal/logging"
)

// Config holds the runtime settings.
type Config struct {
	Width  int
	Height int

	// MaxUploadSize caps the size of a single upload in bytes
	MaxUploadSize int64

	Listen        string
	FrameInterval time.Duration
	LogLevel      string
}

// DefaultConfig returns the settings for a 64x32 panel.
func DefaultConfig() Config {
	return Config{
		Width:         64,
		Height:        32,
		MaxUploadSize: 64 << 10,
		Listen:        ":8080",
		FrameInterval: 50 * time.Millisecond,
		LogLevel:      "info",
	}
}

// Validate checks c for nonsensical values.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return errors.New("ledmatrix: panel dimensions must be positive")
	}
	if c.Width > 255 || c.Height > 255 {
		return errors.New("ledmatrix: panel dimensions must fit in a byte")
	}
	if c.MaxUploadSize <= 0 {
		return errors.New("ledmatrix: maximum upload size must be positive")
	}
	if c.FrameInterval <= 0 {
		return errors.New("ledmatrix: frame interval must be positive")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}
