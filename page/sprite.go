package page

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bodgit/ledmatrix/rgb565"
)

const (
	// SpriteSize is the length of a sprite record.
	SpriteSize = 24

	payloadSize = 21
	typeOffset  = 21
)

// Type identifies the kind of a sprite.
type Type uint8

// Sprite types, in on-disk order.
const (
	TypeNone Type = iota
	TypeText
	TypeTime
	TypeTemperature
	TypeImage
	TypeAnimation
	TypeCustomChar
)

var typeNames = map[Type]string{
	TypeNone:        "none",
	TypeText:        "text",
	TypeTime:        "time",
	TypeTemperature: "temperature",
	TypeImage:       "image",
	TypeAnimation:   "animation",
	TypeCustomChar:  "custom-char",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Payload is the type specific part of a sprite. It is implemented by
// *TextSprite, *TimeSprite, *TemperatureSprite, *ImageSprite,
// *AnimationSprite and *CustomCharSprite.
type Payload interface {
	Type() Type
	marshal(b []byte)
	unmarshal(b []byte)
}

// Sprite is an element drawn on top of the page background. A nil Payload
// is an unused slot.
type Sprite struct {
	X, Y    uint8
	Payload Payload
}

// Type returns the type of the sprite payload.
func (s Sprite) Type() Type {
	if s.Payload == nil {
		return TypeNone
	}
	return s.Payload.Type()
}

func (s Sprite) marshal(b []byte) {
	for i := range b {
		b[i] = 0
	}
	if s.Payload == nil {
		return
	}
	s.Payload.marshal(b[:payloadSize])
	b[typeOffset] = byte(s.Payload.Type())
	b[typeOffset+1] = s.X
	b[typeOffset+2] = s.Y
}

func (s *Sprite) unmarshal(b []byte) error {
	*s = Sprite{}

	var p Payload
	switch t := Type(b[typeOffset]); t {
	case TypeNone:
		return nil
	case TypeText:
		p = new(TextSprite)
	case TypeTime:
		p = new(TimeSprite)
	case TypeTemperature:
		p = new(TemperatureSprite)
	case TypeImage:
		p = new(ImageSprite)
	case TypeAnimation:
		p = new(AnimationSprite)
	case TypeCustomChar:
		p = new(CustomCharSprite)
	default:
		return fmt.Errorf("%w %d", ErrUnknownSpriteType, t)
	}
	p.unmarshal(b[:payloadSize])

	s.X, s.Y = b[typeOffset+1], b[typeOffset+2]
	s.Payload = p
	return nil
}

func bit(b byte, n uint) bool {
	return b>>n&1 != 0
}

func setBit(v bool, n uint) byte {
	if v {
		return 1 << n
	}
	return 0
}

func field(b byte, shift, width uint) uint8 {
	return b >> shift & (1<<width - 1)
}

func setField(v uint8, shift, width uint) byte {
	return (v & (1<<width - 1)) << shift
}

// TextSprite draws fixed text.
type TextSprite struct {
	Text    Label
	Color   rgb565.Color
	Font    uint8 // 4 bits
	DotSize uint8 // 2 bits, 0 to use the font
}

// NewTextSprite returns white text.
func NewTextSprite(text string) *TextSprite {
	return &TextSprite{Text: NewLabel(text), Color: rgb565.White}
}

// Type implements Payload.
func (*TextSprite) Type() Type { return TypeText }

func (s *TextSprite) marshal(b []byte) {
	copy(b, s.Text[:])
	binary.LittleEndian.PutUint16(b[18:], uint16(s.Color))
	b[20] = setField(s.Font, 0, 4) | setField(s.DotSize, 4, 2)
}

func (s *TextSprite) unmarshal(b []byte) {
	copy(s.Text[:], b)
	s.Color = rgb565.Color(binary.LittleEndian.Uint16(b[18:]))
	s.Font = field(b[20], 0, 4)
	s.DotSize = field(b[20], 4, 2)
}

// TimeSprite draws the current time formatted with strftime(3).
type TimeSprite struct {
	Format     Format
	UseUTC     bool
	BlinkColon bool // blank colons for half of each second
	BothColons bool // blink every colon rather than just the last
	BlinkSlow  bool // toggle colons every second instead

	ColonWidthStart    uint8 // 4 bits
	ColonMinusAdvanceX uint8 // 4 bits

	Color   rgb565.Color
	Font    uint8
	DotSize uint8
}

// NewTimeSprite returns white local time with slowly blinking colons.
func NewTimeSprite(format string) *TimeSprite {
	return &TimeSprite{
		Format:     NewFormat(format),
		BlinkColon: true,
		BothColons: true,
		BlinkSlow:  true,
		Color:      rgb565.White,
	}
}

// Type implements Payload.
func (*TimeSprite) Type() Type { return TypeTime }

func (s *TimeSprite) marshal(b []byte) {
	copy(b, s.Format[:])
	b[16] = setBit(s.UseUTC, 0) | setBit(s.BlinkColon, 1) | setBit(s.BothColons, 2) | setBit(s.BlinkSlow, 3)
	b[17] = setField(s.ColonWidthStart, 0, 4) | setField(s.ColonMinusAdvanceX, 4, 4)
	binary.LittleEndian.PutUint16(b[18:], uint16(s.Color))
	b[20] = setField(s.Font, 0, 4) | setField(s.DotSize, 4, 2)
}

func (s *TimeSprite) unmarshal(b []byte) {
	copy(s.Format[:], b)
	s.UseUTC = bit(b[16], 0)
	s.BlinkColon = bit(b[16], 1)
	s.BothColons = bit(b[16], 2)
	s.BlinkSlow = bit(b[16], 3)
	s.ColonWidthStart = field(b[17], 0, 4)
	s.ColonMinusAdvanceX = field(b[17], 4, 4)
	s.Color = rgb565.Color(binary.LittleEndian.Uint16(b[18:]))
	s.Font = field(b[20], 0, 4)
	s.DotSize = field(b[20], 4, 2)
}

// Unit is a temperature scale.
type Unit uint8

// Temperature units.
const (
	Kelvin Unit = iota
	Celsius
	Fahrenheit
)

var unitNames = [...]string{"kelvin", "celsius", "fahrenheit"}

func (u Unit) String() string {
	if int(u) < len(unitNames) {
		return unitNames[u]
	}
	return fmt.Sprintf("Unit(%d)", uint8(u))
}

// Symbol returns the single letter abbreviation of the unit.
func (u Unit) Symbol() string {
	switch u {
	case Kelvin:
		return "K"
	case Fahrenheit:
		return "F"
	}
	return "C"
}

// FromCelsius converts c to the unit.
func (u Unit) FromCelsius(c float64) float64 {
	switch u {
	case Kelvin:
		return c + 273.15
	case Fahrenheit:
		return c*9/5 + 32
	}
	return c
}

// Source selects where a temperature reading comes from.
type Source uint8

// Temperature sources.
const (
	SourceLocal Source = iota
	SourceOnlineHour
	SourceOnlineDay
	SourceOnlineNight
)

var sourceNames = [...]string{"local", "online-hour", "online-day", "online-night"}

func (s Source) String() string {
	if int(s) < len(sourceNames) {
		return sourceNames[s]
	}
	return fmt.Sprintf("Source(%d)", uint8(s))
}

// TemperatureSprite draws a temperature colored along a three point
// gradient. References should be kept sorted.
type TemperatureSprite struct {
	References [3]float32
	Colors     [3]rgb565.Color

	ShowUnit   bool
	ShowDegree bool // only with ShowUnit
	Unit       Unit
	Precision  uint8 // 2 bits

	PadLeft  bool  // add a space to single digit readings
	Source   Source
	InFuture uint8 // 5 bits, forecast steps ahead for online sources

	Font       uint8
	DotSize    uint8
	DegreeSize uint8
}

// NewTemperatureSprite returns a sprite showing local Celsius readings with
// one decimal, blue at 5, green at 15 and red at 25 degrees.
func NewTemperatureSprite() *TemperatureSprite {
	return &TemperatureSprite{
		References: [3]float32{5, 15, 25},
		Colors:     [3]rgb565.Color{rgb565.Blue, rgb565.Green, rgb565.Red},
		ShowUnit:   true,
		ShowDegree: true,
		Unit:       Celsius,
		Precision:  1,
	}
}

// Type implements Payload.
func (*TemperatureSprite) Type() Type { return TypeTemperature }

// SetSingleColor uses c regardless of the reading.
func (s *TemperatureSprite) SetSingleColor(c rgb565.Color) {
	s.Colors = [3]rgb565.Color{c, c, c}
}

// SetGradient uses a two point gradient.
func (s *TemperatureSprite) SetGradient(t0 float32, c0 rgb565.Color, t1 float32, c1 rgb565.Color) {
	s.References[0], s.Colors[0] = t0, c0
	s.References[1], s.Colors[1], s.Colors[2] = t1, c1, c1
}

// InterpolateColor returns the color for a reading. Readings at or below
// the first reference and above the last one are clamped, anything between
// is interpolated in HSL space between the neighbouring references.
func (s *TemperatureSprite) InterpolateColor(v float32) rgb565.Color {
	if v <= s.References[0] {
		return s.Colors[0]
	}
	if v > s.References[2] {
		return s.Colors[2]
	}

	i := 2
	if v <= s.References[1] {
		i = 1
	}

	lo, hi := s.References[i-1], s.References[i]
	if hi == lo {
		return s.Colors[i]
	}
	return rgb565.Interpolate(s.Colors[i-1], s.Colors[i], float64((v-lo)/(hi-lo)))
}

// Text formats a reading given in Celsius.
func (s *TemperatureSprite) Text(celsius float64) string {
	v := s.Unit.FromCelsius(celsius)

	num := strconv.FormatFloat(v, 'f', int(s.Precision), 64)

	var sb strings.Builder
	if s.PadLeft {
		whole := num
		if i := strings.IndexByte(num, '.'); i >= 0 {
			whole = num[:i]
		}
		if len(whole) == 1 {
			sb.WriteByte(' ')
		}
	}
	sb.WriteString(num)
	if s.ShowUnit {
		if s.ShowDegree {
			sb.WriteByte('\'')
		}
		sb.WriteString(s.Unit.Symbol())
	}
	return sb.String()
}

func (s *TemperatureSprite) marshal(b []byte) {
	for i, r := range s.References {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(r))
	}
	for i, c := range s.Colors {
		binary.LittleEndian.PutUint16(b[12+i*2:], uint16(c))
	}
	b[18] = setBit(s.ShowUnit, 0) | setBit(s.ShowDegree, 1) | setField(uint8(s.Unit), 2, 2) | setField(s.Precision, 4, 2)
	b[19] = setBit(s.PadLeft, 0) | setField(uint8(s.Source), 1, 2) | setField(s.InFuture, 3, 5)
	b[20] = setField(s.Font, 0, 4) | setField(s.DotSize, 4, 2) | setField(s.DegreeSize, 6, 2)
}

func (s *TemperatureSprite) unmarshal(b []byte) {
	for i := range s.References {
		s.References[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	for i := range s.Colors {
		s.Colors[i] = rgb565.Color(binary.LittleEndian.Uint16(b[12+i*2:]))
	}
	s.ShowUnit = bit(b[18], 0)
	s.ShowDegree = bit(b[18], 1)
	s.Unit = Unit(field(b[18], 2, 2))
	s.Precision = field(b[18], 4, 2)
	s.PadLeft = bit(b[19], 0)
	s.Source = Source(field(b[19], 1, 2))
	s.InFuture = field(b[19], 3, 5)
	s.Font = field(b[20], 0, 4)
	s.DotSize = field(b[20], 4, 2)
	s.DegreeSize = field(b[20], 6, 2)
}

// File is the payload shared by image and animation sprites. Path may be a
// bitmap, an animation record or a directory of numbered bitmaps and may
// contain the variables understood by the renderer.
type File struct {
	Path             Path
	TransparentColor rgb565.Color // 0 for none
	FrameDuration    uint16       // milliseconds, 0 to use the animation's
}

func (f *File) marshal(b []byte) {
	copy(b, f.Path[:])
	binary.LittleEndian.PutUint16(b[16:], uint16(f.TransparentColor))
	binary.LittleEndian.PutUint16(b[18:], f.FrameDuration)
}

func (f *File) unmarshal(b []byte) {
	copy(f.Path[:], b)
	f.TransparentColor = rgb565.Color(binary.LittleEndian.Uint16(b[16:]))
	f.FrameDuration = binary.LittleEndian.Uint16(b[18:])
}

// ImageSprite draws a still image.
type ImageSprite struct {
	File
}

// Type implements Payload.
func (*ImageSprite) Type() Type { return TypeImage }

// AnimationSprite draws a sequence of frames.
type AnimationSprite struct {
	File
}

// Type implements Payload.
func (*AnimationSprite) Type() Type { return TypeAnimation }

// CustomCharSprite is an inline 1-bit image. Bits are read row by row from
// the least significant bit of each byte.
type CustomCharSprite struct {
	Data  [18]byte
	Color rgb565.Color
	Width uint8
}

// Type implements Payload.
func (*CustomCharSprite) Type() Type { return TypeCustomChar }

// Height is derived from the width so that the glyph fills Data.
func (s *CustomCharSprite) Height() int {
	if s.Width == 0 {
		return 0
	}
	return len(s.Data) * 8 / int(s.Width)
}

// Each calls fn with the coordinates of every set bit.
func (s *CustomCharSprite) Each(fn func(x, y int)) {
	w, h := int(s.Width), s.Height()
	for i := 0; i < w*h; i++ {
		if s.Data[i/8]>>(i%8)&1 != 0 {
			fn(i%w, i/w)
		}
	}
}

func (s *CustomCharSprite) marshal(b []byte) {
	copy(b, s.Data[:])
	binary.LittleEndian.PutUint16(b[18:], uint16(s.Color))
	b[20] = s.Width
}

func (s *CustomCharSprite) unmarshal(b []byte) {
	copy(s.Data[:], b)
	s.Color = rgb565.Color(binary.LittleEndian.Uint16(b[18:]))
	s.Width = b[20]
}
