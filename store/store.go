/*
Package store implements the file storage the LED matrix reads its pages,
bitmaps and animations from and writes uploads to.

Names follow the device convention of absolute slash separated paths such as
/pages/0/config; the leading slash is optional.
*/
package store

import (
	"errors"
	"io"
	"io/fs"
	"path"
	"strings"
)

// ErrInvalidName is returned for names that escape the store.
var ErrInvalidName = errors.New("store: invalid name")

// Store is a writable file system.
type Store interface {
	fs.StatFS
	fs.ReadDirFS

	// Create opens name for writing, truncating any existing file and
	// creating missing parent directories. The file is only guaranteed to
	// be visible once Close returns without error.
	Create(name string) (io.WriteCloser, error)

	// Remove deletes name and, if it is a directory, everything below it.
	Remove(name string) error
}

// Clean converts a device path into an fs.FS name.
func Clean(name string) (string, error) {
	if strings.Contains(name, "\\") {
		return "", ErrInvalidName
	}
	for _, elem := range strings.Split(name, "/") {
		if elem == ".." {
			return "", ErrInvalidName
		}
	}
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if name == "" {
		return ".", nil
	}
	return name, nil
}

// Exists returns true if name can be stat'd.
func Exists(fsys fs.StatFS, name string) bool {
	_, err := fsys.Stat(name)
	return err == nil
}

// IsDir returns true if name is a directory.
func IsDir(fsys fs.StatFS, name string) bool {
	fi, err := fsys.Stat(name)
	return err == nil && fi.IsDir()
}
