package store

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name, want string
		err        error
	}{
		{"/pages/0/config", "pages/0/config", nil},
		{"pages/0/config", "pages/0/config", nil},
		{"/", ".", nil},
		{"", ".", nil},
		{"//bg//a.bmp", "bg/a.bmp", nil},
		{"/pages/./1", "pages/1", nil},
		{"/../etc/passwd", "", ErrInvalidName},
		{"a\\b", "", ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Clean(tt.name)
			assert.Equal(t, tt.err, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func write(t *testing.T, s Store, name, data string) {
	t.Helper()
	w, err := s.Create(name)
	require.NoError(t, err)
	_, err = io.WriteString(w, data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func names(entries []fs.DirEntry) []string {
	var s []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() {
			n += "/"
		}
		s = append(s, n)
	}
	return s
}

func testStore(t *testing.T, s Store) {
	write(t, s, "/pages/0/config", "page zero")
	write(t, s, "/pages/1/config", "page one")
	write(t, s, "/pages/1/bg.bmp", "BM")
	write(t, s, "/empty", "")

	t.Run("read", func(t *testing.T) {
		b, err := fs.ReadFile(s, "/pages/0/config")
		require.NoError(t, err)
		assert.Equal(t, "page zero", string(b))

		b, err = fs.ReadFile(s, "empty")
		require.NoError(t, err)
		assert.Empty(t, b)
	})

	t.Run("overwrite", func(t *testing.T) {
		write(t, s, "/pages/0/config", "zero")
		b, err := fs.ReadFile(s, "pages/0/config")
		require.NoError(t, err)
		assert.Equal(t, "zero", string(b))
	})

	t.Run("stat", func(t *testing.T) {
		fi, err := s.Stat("/pages/1/bg.bmp")
		require.NoError(t, err)
		assert.Equal(t, "bg.bmp", fi.Name())
		assert.Equal(t, int64(2), fi.Size())
		assert.False(t, fi.IsDir())

		fi, err = s.Stat("/pages")
		require.NoError(t, err)
		assert.True(t, fi.IsDir())

		_, err = s.Stat("/nope")
		assert.True(t, errors.Is(err, fs.ErrNotExist))

		assert.True(t, Exists(s, "/pages/1"))
		assert.True(t, IsDir(s, "/pages/1"))
		assert.False(t, IsDir(s, "/pages/1/config"))
		assert.False(t, Exists(s, "/pages/2"))
	})

	t.Run("readdir", func(t *testing.T) {
		entries, err := s.ReadDir("/")
		require.NoError(t, err)
		assert.Equal(t, []string{"empty", "pages/"}, names(entries))

		entries, err = s.ReadDir("/pages/1")
		require.NoError(t, err)
		assert.Equal(t, []string{"bg.bmp", "config"}, names(entries))

		entries, err = fs.ReadDir(s, "pages")
		require.NoError(t, err)
		assert.Equal(t, []string{"0/", "1/"}, names(entries))

		_, err = s.ReadDir("/nope")
		assert.Error(t, err)
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, s.Remove("/pages/1"))
		assert.False(t, Exists(s, "/pages/1/config"))
		assert.True(t, Exists(s, "/pages/0/config"))

		require.NoError(t, s.Remove("/empty"))
		assert.False(t, Exists(s, "/empty"))

		assert.Error(t, s.Remove("/nope"))
		assert.Error(t, s.Remove("/"))
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := s.Create("/../escape")
		assert.True(t, errors.Is(err, ErrInvalidName))
		_, err = s.Open("/../escape")
		assert.True(t, errors.Is(err, ErrInvalidName))
	})
}

func TestDir(t *testing.T) {
	s, err := NewDir(filepath.Join(t.TempDir(), "store"))
	require.NoError(t, err)
	testStore(t, s)
}

func TestSQLite(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	defer s.Close()
	testStore(t, s)
}
