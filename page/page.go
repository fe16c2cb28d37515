/*
Package page implements the binary records describing what the LED matrix
displays.

A page is stored as a 256 byte record at /pages/<id>/config:

	0   signature           uint16  0x5034 ("4P")
	2   reserved            uint8
	3   next                uint8   page shown once duration runs out
	4   duration            uint16  milliseconds, 0 to show forever
	6   background          [16]    path starting with '/', or a zero
	                                flag byte, a pad byte and a color
	22  background duration uint16  milliseconds per background frame
	24  analog clock        [14]
	38  pad                 [2]
	40  sprites             [9][24]

Every sprite record ends with its type, x and y in bytes 21, 22 and 23; the
first 21 bytes depend on the type. Animations are stored as a separate 242
byte record listing up to 12 frames. All values are little-endian and
bitfields are packed from the least significant bit.
*/
package page

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/bodgit/ledmatrix/rgb565"
)

const (
	// Signature identifies a page record.
	Signature = 0x5034

	// Size is the length of a page record.
	Size = 256

	// MaxSprites is the number of sprite slots on a page.
	MaxSprites = 9

	backgroundSize = 16
	analogOffset   = 24
	spritesOffset  = 40
)

// Errors returned when decoding records.
var (
	ErrInvalidSignature  = errors.New("page: invalid signature")
	ErrShortRecord       = errors.New("page: record too short")
	ErrUnknownSpriteType = errors.New("page: unknown sprite type")
)

// ConfigPath returns the path of the record for page id.
func ConfigPath(id uint8) string {
	return fmt.Sprintf("/pages/%d/config", id)
}

// Background is either a flat color or a path to a bitmap, animation or
// directory of numbered bitmaps.
type Background struct {
	Path  Path
	Color rgb565.Color
}

// ColorBackground returns a background filled with c.
func ColorBackground(c rgb565.Color) Background {
	return Background{Color: c}
}

// FileBackground returns a background drawn from path, which is made
// absolute if necessary.
func FileBackground(path string) Background {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return Background{Path: NewPath(path)}
}

// UsesFile returns true if the background is drawn from a file.
func (b Background) UsesFile() bool {
	return b.Path[0] == '/'
}

func (b Background) marshal(p []byte) {
	if b.UsesFile() {
		copy(p, b.Path[:])
		return
	}
	p[0], p[1] = 0, 0
	binary.LittleEndian.PutUint16(p[2:], uint16(b.Color))
}

func (b *Background) unmarshal(p []byte) {
	*b = Background{}
	if p[0] == '/' {
		copy(b.Path[:], p[:backgroundSize])
		return
	}
	b.Color = rgb565.Color(binary.LittleEndian.Uint16(p[2:]))
}

// Page is a decoded page record. It implements the
// encoding.BinaryMarshaler and encoding.BinaryUnmarshaler interfaces.
type Page struct {
	Next               uint8
	Duration           uint16
	Background         Background
	BackgroundDuration uint16
	Analog             AnalogClock
	Sprites            [MaxSprites]Sprite
}

// Default returns the page shown when no page could be loaded.
func Default() *Page {
	p := &Page{
		Background: ColorBackground(rgb565.FromRGB888(38, 13, 30)),
		Analog:     AnalogClock{CenterX: Hidden, CenterY: Hidden},
	}
	p.Sprites[0] = Sprite{X: 7, Y: 7, Payload: NewTextSprite("FS FAIL?")}
	return p
}

// HasNext returns true if the page is replaced by page Next once its
// duration runs out.
func (p *Page) HasNext() bool {
	return p.Duration != 0
}

// MarshalBinary encodes the page into a record.
func (p *Page) MarshalBinary() ([]byte, error) {
	b := make([]byte, Size)

	binary.LittleEndian.PutUint16(b[0:], Signature)
	b[3] = p.Next
	binary.LittleEndian.PutUint16(b[4:], p.Duration)
	p.Background.marshal(b[6 : 6+backgroundSize])
	binary.LittleEndian.PutUint16(b[22:], p.BackgroundDuration)
	p.Analog.marshal(b[analogOffset : analogOffset+analogSize])

	for i, s := range p.Sprites {
		off := spritesOffset + i*SpriteSize
		s.marshal(b[off : off+SpriteSize])
	}

	return b, nil
}

// UnmarshalBinary decodes the page from a record. On error p is left
// untouched.
func (p *Page) UnmarshalBinary(b []byte) error {
	if len(b) < Size {
		return ErrShortRecord
	}
	if binary.LittleEndian.Uint16(b) != Signature {
		return ErrInvalidSignature
	}

	var n Page
	n.Next = b[3]
	n.Duration = binary.LittleEndian.Uint16(b[4:])
	n.Background.unmarshal(b[6 : 6+backgroundSize])
	n.BackgroundDuration = binary.LittleEndian.Uint16(b[22:])
	n.Analog.unmarshal(b[analogOffset : analogOffset+analogSize])

	for i := range n.Sprites {
		off := spritesOffset + i*SpriteSize
		if err := n.Sprites[i].unmarshal(b[off : off+SpriteSize]); err != nil {
			return fmt.Errorf("sprite %d: %w", i, err)
		}
	}

	*p = n
	return nil
}

// Read decodes a page record from r. On error p is left untouched.
func (p *Page) Read(r io.Reader) error {
	b := make([]byte, Size)
	if _, err := io.ReadFull(r, b); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return ErrShortRecord
		}
		return err
	}
	return p.UnmarshalBinary(b)
}

// LoadFile replaces p with the page record stored at name. A leading slash
// is accepted. If the record cannot be opened or is invalid an error is
// returned and p is left as it was.
func LoadFile(fsys fs.FS, name string, p *Page) error {
	f, err := fsys.Open(strings.TrimPrefix(name, "/"))
	if err != nil {
		return err
	}
	defer f.Close()

	if err := p.Read(f); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Load replaces p with the record for page id.
func Load(fsys fs.FS, id uint8, p *Page) error {
	return LoadFile(fsys, ConfigPath(id), p)
}
