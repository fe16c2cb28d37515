package page

import (
	"encoding/binary"
	"io"
	"path"
	"time"
)

const (
	// AnimationSignature identifies an animation record.
	AnimationSignature = 0x4150

	// AnimationSize is the length of an animation record.
	AnimationSize = 2 + MaxFrames*frameSize

	// MaxFrames is the number of frames an animation can list.
	MaxFrames = 12

	frameSize = 20
)

// Frame is one image of an animation.
type Frame struct {
	Path     FramePath
	Duration uint16 // milliseconds
}

// Animation is a decoded animation record. The frame list ends at the first
// frame with an empty path.
type Animation struct {
	Frames [MaxFrames]Frame
}

// Len returns the number of frames in use.
func (a *Animation) Len() int {
	for i, f := range a.Frames {
		if f.Path[0] == 0 {
			return i
		}
	}
	return MaxFrames
}

// Next returns the index of the frame following i, wrapping to the first
// frame.
func (a *Animation) Next(i int) int {
	n := a.Len()
	if n == 0 {
		return 0
	}
	return (i + 1) % n
}

// Duration returns how long frame i is shown for.
func (a *Animation) Duration(i int) time.Duration {
	if i < 0 || i >= MaxFrames {
		return 0
	}
	return time.Duration(a.Frames[i].Duration) * time.Millisecond
}

// FramePath resolves the path of frame i. Relative paths are relative to
// the directory holding the animation record at name.
func (a *Animation) FramePath(name string, i int) string {
	p := a.Frames[i].Path.String()
	if path.IsAbs(p) {
		return p
	}
	return path.Join(path.Dir(name), p)
}

// MarshalBinary encodes the animation into a record.
func (a *Animation) MarshalBinary() ([]byte, error) {
	b := make([]byte, AnimationSize)
	binary.LittleEndian.PutUint16(b, AnimationSignature)
	for i, f := range a.Frames {
		off := 2 + i*frameSize
		copy(b[off:], f.Path[:])
		binary.LittleEndian.PutUint16(b[off+len(f.Path):], f.Duration)
	}
	return b, nil
}

// UnmarshalBinary decodes the animation from a record.
func (a *Animation) UnmarshalBinary(b []byte) error {
	if len(b) < AnimationSize {
		return ErrShortRecord
	}
	if binary.LittleEndian.Uint16(b) != AnimationSignature {
		return ErrInvalidSignature
	}
	for i := range a.Frames {
		off := 2 + i*frameSize
		f := &a.Frames[i]
		copy(f.Path[:], b[off:])
		f.Duration = binary.LittleEndian.Uint16(b[off+len(f.Path):])
	}
	return nil
}

// Read decodes an animation record from r.
func (a *Animation) Read(r io.Reader) error {
	b := make([]byte, AnimationSize)
	if _, err := io.ReadFull(r, b); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return ErrShortRecord
		}
		return err
	}
	return a.UnmarshalBinary(b)
}
