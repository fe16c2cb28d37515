package page

import "bytes"

// setCString copies s into b, truncating it so that at least one
// terminating NUL always remains, and zeroes the rest of b.
func setCString(b []byte, s string) {
	n := copy(b[:len(b)-1], s)
	for i := n; i < len(b); i++ {
		b[i] = 0
	}
}

// cString returns the bytes of b up to the first NUL.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// Label is the text of a text sprite, at most 17 bytes.
type Label [18]byte

// NewLabel returns s as a Label, truncated if necessary.
func NewLabel(s string) (l Label) {
	setCString(l[:], s)
	return
}

func (l Label) String() string { return cString(l[:]) }

// Format is a strftime(3) format of a time sprite, at most 15 bytes.
type Format [16]byte

// NewFormat returns s as a Format, truncated if necessary.
func NewFormat(s string) (f Format) {
	setCString(f[:], s)
	return
}

func (f Format) String() string { return cString(f[:]) }

// Path is a file path used by backgrounds and file sprites, at most 15
// bytes.
type Path [16]byte

// NewPath returns s as a Path, truncated if necessary.
func NewPath(s string) (p Path) {
	setCString(p[:], s)
	return
}

func (p Path) String() string { return cString(p[:]) }

// FramePath is the path of an animation frame, at most 17 bytes.
type FramePath [18]byte

// NewFramePath returns s as a FramePath, truncated if necessary.
func NewFramePath(s string) (p FramePath) {
	setCString(p[:], s)
	return
}

func (p FramePath) String() string { return cString(p[:]) }
