/*
Package ledmatrix is a library for maintaining and rendering the pages shown
on an RGB565 LED matrix.

Pages, bitmaps and animations live in a store.Store. Bitmaps are accepted as
24-bit uploads and converted on the fly to the 16-bit layout the renderer
blits from.
*/
package ledmatrix

import (
	"context"
	"time"

	"github.com/bodgit/ledmatrix/internal/logging"
	"github.com/bodgit/ledmatrix/store"
)

// Matrix ties a store to the renderer and the upload surface.
type Matrix struct {
	store   store.Store
	config  Config
	logger  *logging.Logger
	display *Display
}

// New returns a Matrix serving s. A nil logger discards everything.
func New(s store.Store, config Config, logger *logging.Logger) (*Matrix, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &Matrix{
		store:   s,
		config:  config,
		logger:  logger,
		display: NewDisplay(s, logger),
	}, nil
}

// Store returns the underlying store.
func (m *Matrix) Store() store.Store {
	return m.store
}

// Config returns the configuration.
func (m *Matrix) Config() Config {
	return m.config
}

// Display returns the renderer.
func (m *Matrix) Display() *Display {
	return m.display
}

// Run shows page 0 and renders a frame on s every FrameInterval until ctx
// is done. flush is called after each frame to push it to the panel.
func (m *Matrix) Run(ctx context.Context, s Surface, flush func() error) error {
	_ = m.display.ChangePage(0, time.Now())

	ticker := time.NewTicker(m.config.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			m.display.Update(s, now)
			if flush == nil {
				continue
			}
			if err := flush(); err != nil {
				return err
			}
		}
	}
}
