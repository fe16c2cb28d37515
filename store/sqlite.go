package store

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite is a Store kept in a single SQLite database file. Directories are
// not stored, they exist for as long as a file below them does.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates the database at file.
func NewSQLite(file string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=5000", file))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS file (name TEXT PRIMARY KEY NOT NULL, data BLOB NOT NULL, modified INTEGER NOT NULL)"); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{
		db: db,
	}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

type fileInfo struct {
	name    string
	size    int64
	modTime time.Time
	dir     bool
}

func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return fi.size }
func (fi *fileInfo) ModTime() time.Time { return fi.modTime }
func (fi *fileInfo) IsDir() bool        { return fi.dir }
func (fi *fileInfo) Sys() interface{}   { return nil }

func (fi *fileInfo) Mode() fs.FileMode {
	if fi.dir {
		return fs.ModeDir | 0755
	}
	return 0644
}

func (fi *fileInfo) Type() fs.FileMode          { return fi.Mode().Type() }
func (fi *fileInfo) Info() (fs.FileInfo, error) { return fi, nil }

type file struct {
	*bytes.Reader
	info *fileInfo
}

func (f *file) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *file) Close() error               { return nil }

type dir struct {
	info    *fileInfo
	entries []fs.DirEntry
}

func (d *dir) Stat() (fs.FileInfo, error) { return d.info, nil }
func (d *dir) Close() error               { return nil }

func (d *dir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.info.name, Err: errors.New("is a directory")}
}

func (d *dir) ReadDir(n int) ([]fs.DirEntry, error) {
	if n <= 0 {
		entries := d.entries
		d.entries = nil
		return entries, nil
	}
	if len(d.entries) == 0 {
		return nil, io.EOF
	}
	if n > len(d.entries) {
		n = len(d.entries)
	}
	entries := d.entries[:n]
	d.entries = d.entries[n:]
	return entries, nil
}

func prefixOf(name string) string {
	if name == "." {
		return ""
	}
	return name + "/"
}

// children lists the immediate children of the directory name, sorted.
func (s *SQLite) children(name string) ([]fs.DirEntry, error) {
	prefix := prefixOf(name)

	rows, err := s.db.Query("SELECT name, length(data), modified FROM file WHERE substr(name, 1, length(?)) = ? ORDER BY name", prefix, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := make(map[string]*fileInfo)
	for rows.Next() {
		var (
			n        string
			size     int64
			modified int64
		)
		if err := rows.Scan(&n, &size, &modified); err != nil {
			return nil, err
		}

		fi := &fileInfo{name: strings.TrimPrefix(n, prefix), size: size, modTime: time.Unix(modified, 0)}
		if i := strings.IndexByte(fi.name, '/'); i >= 0 {
			fi.name, fi.size, fi.dir = fi.name[:i], 0, true
		}
		if prev, ok := seen[fi.name]; ok {
			if fi.modTime.After(prev.modTime) {
				prev.modTime = fi.modTime
			}
			continue
		}
		seen[fi.name] = fi
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	entries := make([]fs.DirEntry, 0, len(seen))
	for _, fi := range seen {
		entries = append(entries, fi)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	return entries, nil
}

func (s *SQLite) lookup(op, name string) (*fileInfo, []byte, error) {
	clean, err := Clean(name)
	if err != nil {
		return nil, nil, pathError(op, name, err)
	}

	if clean != "." {
		var (
			data     []byte
			modified int64
		)
		err := s.db.QueryRow("SELECT data, modified FROM file WHERE name = ?", clean).Scan(&data, &modified)
		switch {
		case err == sql.ErrNoRows:
		case err != nil:
			return nil, nil, err
		default:
			return &fileInfo{name: path.Base(clean), size: int64(len(data)), modTime: time.Unix(modified, 0)}, data, nil
		}
	}

	var (
		count    int
		modified sql.NullInt64
	)
	prefix := prefixOf(clean)
	if err := s.db.QueryRow("SELECT count(*), max(modified) FROM file WHERE substr(name, 1, length(?)) = ?", prefix, prefix).Scan(&count, &modified); err != nil {
		return nil, nil, err
	}
	if count == 0 && clean != "." {
		return nil, nil, pathError(op, name, fs.ErrNotExist)
	}

	return &fileInfo{name: path.Base(clean), modTime: time.Unix(modified.Int64, 0), dir: true}, nil, nil
}

// Open implements fs.FS.
func (s *SQLite) Open(name string) (fs.File, error) {
	fi, data, err := s.lookup("open", name)
	if err != nil {
		return nil, err
	}
	if !fi.dir {
		return &file{Reader: bytes.NewReader(data), info: fi}, nil
	}

	clean, _ := Clean(name)
	entries, err := s.children(clean)
	if err != nil {
		return nil, err
	}
	return &dir{info: fi, entries: entries}, nil
}

// Stat implements fs.StatFS.
func (s *SQLite) Stat(name string) (fs.FileInfo, error) {
	fi, _, err := s.lookup("stat", name)
	if err != nil {
		return nil, err
	}
	return fi, nil
}

// ReadDir implements fs.ReadDirFS.
func (s *SQLite) ReadDir(name string) ([]fs.DirEntry, error) {
	fi, _, err := s.lookup("readdir", name)
	if err != nil {
		return nil, err
	}
	if !fi.dir {
		return nil, pathError("readdir", name, errors.New("not a directory"))
	}
	clean, _ := Clean(name)
	return s.children(clean)
}

type writer struct {
	s    *SQLite
	name string
	buf  bytes.Buffer
}

func (w *writer) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *writer) Close() error {
	data := w.buf.Bytes()
	if data == nil {
		// A nil slice would be stored as NULL
		data = []byte{}
	}
	_, err := w.s.db.Exec("INSERT OR REPLACE INTO file (name, data, modified) VALUES (?, ?, ?)", w.name, data, time.Now().Unix())
	return err
}

// Create implements Store. Nothing is written until Close.
func (s *SQLite) Create(name string) (io.WriteCloser, error) {
	clean, err := Clean(name)
	if err != nil || clean == "." {
		return nil, pathError("create", name, ErrInvalidName)
	}
	return &writer{s: s, name: clean}, nil
}

// Remove implements Store.
func (s *SQLite) Remove(name string) error {
	clean, err := Clean(name)
	if err != nil || clean == "." {
		return pathError("remove", name, ErrInvalidName)
	}

	prefix := prefixOf(clean)
	res, err := s.db.Exec("DELETE FROM file WHERE name = ? OR substr(name, 1, length(?)) = ?", clean, prefix, prefix)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return pathError("remove", name, fs.ErrNotExist)
	}
	return nil
}
