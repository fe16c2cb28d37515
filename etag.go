package ledmatrix

import (
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"
	"strings"
)

func crcFile(fsys fs.FS, name string) (string, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := crc32.NewIEEE()
	if _, err = io.Copy(h, f); err != nil {
		return "", err
	}

	return fmt.Sprintf("%.*X", crc32.Size<<1, h.Sum(nil)), nil
}

// etag returns the strong entity tag for the file at name.
func etag(fsys fs.FS, name string) (string, error) {
	crc, err := crcFile(fsys, name)
	if err != nil {
		return "", err
	}
	return `"` + crc + `"`, nil
}

// etagMatch reports whether an If-None-Match header value matches tag.
func etagMatch(header, tag string) bool {
	for _, v := range strings.Split(header, ",") {
		v = strings.TrimSpace(v)
		if v == "*" || strings.TrimPrefix(v, "W/") == tag {
			return true
		}
	}
	return false
}
