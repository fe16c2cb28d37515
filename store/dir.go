package store

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Dir is a Store backed by a directory on the local file system.
type Dir struct {
	root string
	fsys fs.FS
}

// NewDir returns a Store rooted at root, which is created if necessary.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, err
	}
	return &Dir{
		root: root,
		fsys: os.DirFS(root),
	}, nil
}

func (d *Dir) native(name string) (string, error) {
	clean, err := Clean(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.root, filepath.FromSlash(clean)), nil
}

func pathError(op, name string, err error) error {
	return &fs.PathError{Op: op, Path: name, Err: err}
}

// Open implements fs.FS.
func (d *Dir) Open(name string) (fs.File, error) {
	clean, err := Clean(name)
	if err != nil {
		return nil, pathError("open", name, err)
	}
	return d.fsys.Open(clean)
}

// Stat implements fs.StatFS.
func (d *Dir) Stat(name string) (fs.FileInfo, error) {
	clean, err := Clean(name)
	if err != nil {
		return nil, pathError("stat", name, err)
	}
	return fs.Stat(d.fsys, clean)
}

// ReadDir implements fs.ReadDirFS.
func (d *Dir) ReadDir(name string) ([]fs.DirEntry, error) {
	clean, err := Clean(name)
	if err != nil {
		return nil, pathError("readdir", name, err)
	}
	return fs.ReadDir(d.fsys, clean)
}

// Create implements Store.
func (d *Dir) Create(name string) (io.WriteCloser, error) {
	file, err := d.native(name)
	if err != nil {
		return nil, pathError("create", name, err)
	}
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return nil, err
	}
	return os.Create(file)
}

// Remove implements Store.
func (d *Dir) Remove(name string) error {
	file, err := d.native(name)
	if err != nil {
		return pathError("remove", name, err)
	}
	if file == filepath.Clean(d.root) {
		return pathError("remove", name, ErrInvalidName)
	}
	if _, err := os.Lstat(file); err != nil {
		return err
	}
	return os.RemoveAll(file)
}
