package ledmatrix

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/bodgit/ledmatrix/bmp"
	"github.com/bodgit/ledmatrix/store"
)

// Content types accepted for uploads.
const (
	ContentTypeBitmap = "image/bmp"
	ContentTypeRaw    = "application/octet-stream"
)

// Upload errors.
var (
	ErrUnsupportedMediaType = errors.New("ledmatrix: unsupported media type")
	ErrTooLarge             = errors.New("ledmatrix: upload too large")
	ErrNothingUploaded      = errors.New("ledmatrix: nothing uploaded")
	ErrUploadFinished       = errors.New("ledmatrix: upload already finished")
	ErrUnexpectedMessage    = errors.New("ledmatrix: unexpected message")
)

// ConversionError is returned when an uploaded bitmap cannot be converted.
type ConversionError struct {
	Name string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("ledmatrix: converting %s: %v", e.Name, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// StatusCode maps an upload error to an HTTP status.
func StatusCode(err error) int {
	var ce *ConversionError
	switch {
	case err == nil:
		return http.StatusCreated
	case errors.Is(err, ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &ce), errors.Is(err, ErrNothingUploaded), errors.Is(err, ErrUnexpectedMessage), errors.Is(err, store.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// Upload is a file being written to the store. Bitmaps are converted to
// 16 bits per pixel as the chunks arrive.
type Upload struct {
	m     *Matrix
	name  string
	w     io.WriteCloser
	conv  *bmp.Converter
	n     int64
	limit int64
	done  bool
}

// StartUpload begins writing to uri. If uri is an existing directory the
// file is created in it as filename. size is the announced length of the
// upload or -1 if unknown.
func (m *Matrix) StartUpload(uri, filename, contentType string, size int64) (*Upload, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMediaType, contentType)
	}

	var conv *bmp.Converter
	switch strings.ToLower(mediaType) {
	case ContentTypeBitmap:
		conv = bmp.NewConverter()
	case ContentTypeRaw:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMediaType, mediaType)
	}

	if size > m.config.MaxUploadSize {
		return nil, ErrTooLarge
	}

	name, err := store.Clean(uri)
	if err != nil {
		return nil, err
	}
	if store.IsDir(m.store, name) {
		base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
		if base == "." || base == "/" || base == ".." {
			return nil, store.ErrInvalidName
		}
		name = path.Join(name, base)
		m.logger.Debug("Adding %s to the directory", base)
	} else if store.Exists(m.store, name) {
		m.logger.Debug("Overwriting existing file %s", name)
	}

	w, err := m.store.Create(name)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("Opened %s for saving", name)

	return &Upload{
		m:     m,
		name:  name,
		w:     w,
		conv:  conv,
		limit: m.config.MaxUploadSize,
	}, nil
}

// Name returns the store name the upload is written to.
func (u *Upload) Name() string {
	return u.name
}

// Write implements io.Writer. After an error the upload should be aborted.
func (u *Upload) Write(p []byte) (int, error) {
	if u.done {
		return 0, ErrUploadFinished
	}

	u.n += int64(len(p))
	if u.n > u.limit {
		return 0, ErrTooLarge
	}

	if u.conv == nil {
		return u.w.Write(p)
	}
	if err := u.conv.Chunk(p, u.w); err != nil {
		return 0, &ConversionError{u.name, err}
	}
	return len(p), nil
}

// Close completes the upload. If the bitmap turns out to be incomplete the
// partial file is removed.
func (u *Upload) Close() error {
	if u.done {
		return ErrUploadFinished
	}

	if u.conv != nil {
		if err := u.conv.Finish(); err != nil {
			u.Abort()
			return &ConversionError{u.name, err}
		}
	}

	u.done = true
	if err := u.w.Close(); err != nil {
		_ = u.m.store.Remove(u.name)
		return err
	}
	u.m.logger.Info("Saved %s", u.name)
	return nil
}

// Abort discards the upload and removes the partial file.
func (u *Upload) Abort() {
	if u.done {
		return
	}
	u.done = true

	_ = u.w.Close()
	if err := u.m.store.Remove(u.name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		u.m.logger.Error("Failed to remove %s: %v", u.name, err)
	}
	u.m.logger.Debug("Upload of %s aborted", u.name)
}
