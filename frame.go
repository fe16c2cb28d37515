package ledmatrix

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/bodgit/ledmatrix/bmp"
	"github.com/bodgit/ledmatrix/page"
	"github.com/bodgit/ledmatrix/store"
)

// ErrUnknownFrameSource is returned when a path names a file that is
// neither a bitmap nor an animation record.
var ErrUnknownFrameSource = errors.New("ledmatrix: not a bitmap or animation")

// Weather is substituted for $W until a forecast source exists.
const Weather = "sunny"

func season(m time.Month) string {
	switch {
	case m >= time.March && m <= time.May:
		return "spring"
	case m >= time.June && m <= time.August:
		return "summer"
	case m >= time.September && m <= time.November:
		return "fall"
	}
	return "winter"
}

// ExpandPath substitutes the path variables in raw:
//
//	$M  month in lower case, e.g. "january"
//	$S  season, one of "winter", "spring", "summer" or "fall"
//	$W  weather
//
// An unknown variable is replaced by its letter and reported as an error
// alongside the expanded path.
func ExpandPath(raw string, t time.Time) (string, error) {
	var (
		sb  strings.Builder
		err error
	)
	for i := 0; i < len(raw); i++ {
		if raw[i] != '$' {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		if i == len(raw) {
			break
		}
		switch raw[i] {
		case 'M':
			sb.WriteString(strings.ToLower(t.Month().String()))
		case 'S':
			sb.WriteString(season(t.Month()))
		case 'W':
			sb.WriteString(Weather)
		default:
			sb.WriteByte(raw[i])
			if err == nil {
				err = fmt.Errorf("ledmatrix: unknown path variable $%c", raw[i])
			}
		}
	}
	return sb.String(), err
}

// frameState tracks which frame of a background or sprite is showing.
type frameState struct {
	index int
	last  time.Time
}

func (st *frameState) reset(now time.Time) {
	st.index, st.last = 0, now
}

// due reports whether interval has passed since the last frame change and
// if so restarts the interval.
func (st *frameState) due(interval time.Duration, now time.Time) bool {
	if interval <= 0 || now.Sub(st.last) < interval {
		return false
	}
	st.last = now
	return true
}

func signature(fsys fs.FS, name string) (uint16, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var b [2]byte
	if _, err := io.ReadFull(f, b[:]); err != nil {
		return 0, fmt.Errorf("%s: %w", name, ErrUnknownFrameSource)
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

// resolveFrame returns the name of the bitmap to show for raw, which may be
// a bitmap, an animation record or a directory of bitmaps named 0.bmp,
// 1.bmp, and so on. Once interval has passed the next frame is selected;
// for animations a zero interval uses the duration of the current frame.
func resolveFrame(fsys fs.FS, raw string, st *frameState, interval time.Duration, now time.Time) (string, error) {
	expanded, err := ExpandPath(raw, now)
	if err != nil {
		return "", err
	}
	name, err := store.Clean(expanded)
	if err != nil {
		return "", err
	}

	fi, err := fs.Stat(fsys, name)
	if err != nil {
		return "", err
	}

	if fi.IsDir() {
		frame := func(i int) string {
			return path.Join(name, fmt.Sprintf("%d.bmp", i))
		}
		if st.due(interval, now) {
			st.index++
		}
		if _, err := fs.Stat(fsys, frame(st.index)); err != nil {
			st.index = 0
		}
		return frame(st.index), nil
	}

	sig, err := signature(fsys, name)
	if err != nil {
		return "", err
	}

	switch sig {
	case bmp.Signature:
		return name, nil
	case page.AnimationSignature:
		f, err := fsys.Open(name)
		if err != nil {
			return "", err
		}
		defer f.Close()

		var a page.Animation
		if err := a.Read(f); err != nil {
			return "", fmt.Errorf("%s: %w", name, err)
		}
		if a.Len() == 0 {
			return "", fmt.Errorf("%s: animation has no frames", name)
		}
		if st.index >= a.Len() {
			st.index = 0
		}

		d := interval
		if d == 0 {
			d = a.Duration(st.index)
		}
		if st.due(d, now) {
			st.index = a.Next(st.index)
		}
		return store.Clean(a.FramePath(name, st.index))
	}

	return "", fmt.Errorf("%s: %w", name, ErrUnknownFrameSource)
}
