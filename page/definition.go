package page

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bodgit/ledmatrix/rgb565"
	"gopkg.in/yaml.v2"
)

// Color is a color as written in a definition, either "#rrggbb" or a raw
// packed value such as "0xf800".
type Color string

// Parse returns the packed color. An empty Color is black.
func (c Color) Parse() (rgb565.Color, error) {
	s := string(c)
	switch {
	case s == "":
		return rgb565.Black, nil
	case strings.HasPrefix(s, "#") && len(s) == 7:
		b, err := hex.DecodeString(s[1:])
		if err != nil {
			return 0, fmt.Errorf("page: invalid color %q", s)
		}
		return rgb565.FromRGB888(b[0], b[1], b[2]), nil
	case strings.HasPrefix(s, "0x"):
		v, err := strconv.ParseUint(s[2:], 16, 16)
		if err != nil {
			return 0, fmt.Errorf("page: invalid color %q", s)
		}
		return rgb565.Color(v), nil
	}
	return 0, fmt.Errorf("page: invalid color %q", s)
}

func colorOf(c rgb565.Color) Color {
	r, g, b := c.RGB888()
	return Color(fmt.Sprintf("#%02x%02x%02x", r, g, b))
}

// BackgroundDefinition is either a color or a path.
type BackgroundDefinition struct {
	Color    Color  `yaml:"color,omitempty"`
	Path     string `yaml:"path,omitempty"`
	Duration uint16 `yaml:"duration,omitempty"`
}

// AnalogDefinition describes the analog clock hands.
type AnalogDefinition struct {
	X           uint8          `yaml:"x"`
	Y           uint8          `yaml:"y"`
	CenterColor Color          `yaml:"center_color,omitempty"`
	Hour        HandDefinition `yaml:"hour"`
	Minute      HandDefinition `yaml:"minute"`
	Second      HandDefinition `yaml:"second,omitempty"`
}

// HandDefinition is the color and length of one clock hand.
type HandDefinition struct {
	Color  Color `yaml:"color,omitempty"`
	Length uint8 `yaml:"length,omitempty"`
}

// SpriteDefinition holds the union of every sprite's settings; only those
// relevant to Type are used.
type SpriteDefinition struct {
	Type string `yaml:"type"`
	X    uint8  `yaml:"x"`
	Y    uint8  `yaml:"y"`

	Text    string `yaml:"text,omitempty"`
	Format  string `yaml:"format,omitempty"`
	Color   Color  `yaml:"color,omitempty"`
	Font    uint8  `yaml:"font,omitempty"`
	DotSize uint8  `yaml:"dot_size,omitempty"`

	UTC                bool  `yaml:"utc,omitempty"`
	BlinkColon         *bool `yaml:"blink_colon,omitempty"`
	BothColons         *bool `yaml:"both_colons,omitempty"`
	BlinkSlow          *bool `yaml:"blink_slow,omitempty"`
	ColonWidthStart    uint8 `yaml:"colon_width_start,omitempty"`
	ColonMinusAdvanceX uint8 `yaml:"colon_minus_advance_x,omitempty"`

	References []float32 `yaml:"references,omitempty"`
	Colors     []Color   `yaml:"colors,omitempty"`
	Unit       string    `yaml:"unit,omitempty"`
	Precision  *uint8    `yaml:"precision,omitempty"`
	ShowUnit   *bool     `yaml:"show_unit,omitempty"`
	ShowDegree *bool     `yaml:"show_degree,omitempty"`
	PadLeft    bool      `yaml:"pad_left,omitempty"`
	Source     string    `yaml:"source,omitempty"`
	InFuture   uint8     `yaml:"in_future,omitempty"`
	DegreeSize uint8     `yaml:"degree_size,omitempty"`

	Path          string `yaml:"path,omitempty"`
	Transparent   Color  `yaml:"transparent,omitempty"`
	FrameDuration uint16 `yaml:"frame_duration,omitempty"`

	Data  string `yaml:"data,omitempty"` // hex
	Width uint8  `yaml:"width,omitempty"`
}

// Definition is the human editable form of a page.
type Definition struct {
	Next       uint8                `yaml:"next,omitempty"`
	Duration   uint16               `yaml:"duration,omitempty"`
	Background BackgroundDefinition `yaml:"background"`
	Analog     *AnalogDefinition    `yaml:"analog,omitempty"`
	Sprites    []SpriteDefinition   `yaml:"sprites,omitempty"`
}

// AnimationDefinition is the human editable form of an animation.
type AnimationDefinition struct {
	Frames []struct {
		Path     string `yaml:"path"`
		Duration uint16 `yaml:"duration"`
	} `yaml:"frames"`
}

// ReadDefinition decodes a page definition from r.
func ReadDefinition(r io.Reader) (*Definition, error) {
	d := new(Definition)
	if err := yaml.NewDecoder(r).Decode(d); err != nil {
		return nil, err
	}
	return d, nil
}

// ReadAnimationDefinition decodes an animation definition from r.
func ReadAnimationDefinition(r io.Reader) (*AnimationDefinition, error) {
	d := new(AnimationDefinition)
	if err := yaml.NewDecoder(r).Decode(d); err != nil {
		return nil, err
	}
	return d, nil
}

// Compile builds the animation record.
func (d *AnimationDefinition) Compile() (*Animation, error) {
	if len(d.Frames) > MaxFrames {
		return nil, fmt.Errorf("page: more than %d frames", MaxFrames)
	}
	a := new(Animation)
	for i, f := range d.Frames {
		if f.Path == "" {
			return nil, fmt.Errorf("page: frame %d has no path", i)
		}
		a.Frames[i] = Frame{Path: NewFramePath(f.Path), Duration: f.Duration}
	}
	return a, nil
}

type colorTarget struct {
	dst *rgb565.Color
	src Color
}

func parseColors(targets ...colorTarget) error {
	for _, t := range targets {
		c, err := t.src.Parse()
		if err != nil {
			return err
		}
		*t.dst = c
	}
	return nil
}

func boolOr(b *bool, v bool) bool {
	if b == nil {
		return v
	}
	return *b
}

// Compile builds the page record.
func (d *Definition) Compile() (*Page, error) {
	if len(d.Sprites) > MaxSprites {
		return nil, fmt.Errorf("page: more than %d sprites", MaxSprites)
	}

	p := &Page{
		Next:               d.Next,
		Duration:           d.Duration,
		BackgroundDuration: d.Background.Duration,
		Analog:             AnalogClock{CenterX: Hidden, CenterY: Hidden},
	}

	if d.Background.Path != "" {
		p.Background = FileBackground(d.Background.Path)
	} else if err := parseColors(colorTarget{&p.Background.Color, d.Background.Color}); err != nil {
		return nil, err
	}

	if a := d.Analog; a != nil {
		p.Analog = AnalogClock{
			CenterX:      a.X,
			CenterY:      a.Y,
			HourLength:   a.Hour.Length,
			MinuteLength: a.Minute.Length,
			SecondLength: a.Second.Length,
		}
		if err := parseColors(
			colorTarget{&p.Analog.CenterColor, a.CenterColor},
			colorTarget{&p.Analog.HourColor, a.Hour.Color},
			colorTarget{&p.Analog.MinuteColor, a.Minute.Color},
			colorTarget{&p.Analog.SecondColor, a.Second.Color},
		); err != nil {
			return nil, err
		}
	}

	for i, sd := range d.Sprites {
		payload, err := sd.compile()
		if err != nil {
			return nil, fmt.Errorf("page: sprite %d: %w", i, err)
		}
		p.Sprites[i] = Sprite{X: sd.X, Y: sd.Y, Payload: payload}
	}

	return p, nil
}

func (sd *SpriteDefinition) color(dflt rgb565.Color) (rgb565.Color, error) {
	if sd.Color == "" {
		return dflt, nil
	}
	return sd.Color.Parse()
}

func (sd *SpriteDefinition) compile() (Payload, error) {
	switch sd.Type {
	case TypeText.String():
		s := NewTextSprite(sd.Text)
		s.Font, s.DotSize = sd.Font, sd.DotSize
		var err error
		s.Color, err = sd.color(rgb565.White)
		return s, err
	case TypeTime.String():
		s := NewTimeSprite(sd.Format)
		s.UseUTC = sd.UTC
		s.BlinkColon = boolOr(sd.BlinkColon, true)
		s.BothColons = boolOr(sd.BothColons, true)
		s.BlinkSlow = boolOr(sd.BlinkSlow, true)
		s.ColonWidthStart, s.ColonMinusAdvanceX = sd.ColonWidthStart, sd.ColonMinusAdvanceX
		s.Font, s.DotSize = sd.Font, sd.DotSize
		var err error
		s.Color, err = sd.color(rgb565.White)
		return s, err
	case TypeTemperature.String():
		return sd.compileTemperature()
	case TypeImage.String(), TypeAnimation.String():
		f := File{Path: NewPath(sd.Path), FrameDuration: sd.FrameDuration}
		if sd.Transparent != "" {
			c, err := sd.Transparent.Parse()
			if err != nil {
				return nil, err
			}
			f.TransparentColor = c
		}
		if sd.Type == TypeImage.String() {
			return &ImageSprite{f}, nil
		}
		return &AnimationSprite{f}, nil
	case TypeCustomChar.String():
		s := &CustomCharSprite{Width: sd.Width}
		data, err := hex.DecodeString(sd.Data)
		if err != nil {
			return nil, err
		}
		if len(data) > len(s.Data) {
			return nil, fmt.Errorf("more than %d bytes of data", len(s.Data))
		}
		if sd.Width == 0 {
			return nil, fmt.Errorf("zero width")
		}
		copy(s.Data[:], data)
		s.Color, err = sd.color(rgb565.White)
		return s, err
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownSpriteType, sd.Type)
}

func (sd *SpriteDefinition) compileTemperature() (Payload, error) {
	s := NewTemperatureSprite()

	switch {
	case len(sd.References) == 0:
	case len(sd.References) == len(sd.Colors) && len(sd.References) <= 3:
		var colors [3]rgb565.Color
		for i, c := range sd.Colors {
			v, err := c.Parse()
			if err != nil {
				return nil, err
			}
			colors[i] = v
		}
		switch len(sd.References) {
		case 1:
			s.SetSingleColor(colors[0])
		case 2:
			s.SetGradient(sd.References[0], colors[0], sd.References[1], colors[1])
		case 3:
			copy(s.References[:], sd.References)
			s.Colors = colors
		}
	default:
		return nil, fmt.Errorf("references and colors must pair up, at most 3")
	}

	if sd.Color != "" {
		c, err := sd.Color.Parse()
		if err != nil {
			return nil, err
		}
		s.SetSingleColor(c)
	}

	if sd.Unit != "" {
		u, ok := lookup(unitNames[:], sd.Unit)
		if !ok {
			return nil, fmt.Errorf("unknown unit %q", sd.Unit)
		}
		s.Unit = Unit(u)
	}
	if sd.Source != "" {
		src, ok := lookup(sourceNames[:], sd.Source)
		if !ok {
			return nil, fmt.Errorf("unknown source %q", sd.Source)
		}
		s.Source = Source(src)
	}
	if sd.Precision != nil {
		s.Precision = *sd.Precision
	}
	s.ShowUnit = boolOr(sd.ShowUnit, true)
	s.ShowDegree = boolOr(sd.ShowDegree, true)
	s.PadLeft = sd.PadLeft
	s.InFuture = sd.InFuture
	s.Font, s.DotSize, s.DegreeSize = sd.Font, sd.DotSize, sd.DegreeSize

	return s, nil
}

func lookup(names []string, s string) (int, bool) {
	for i, n := range names {
		if strings.EqualFold(n, s) {
			return i, true
		}
	}
	return 0, false
}

func boolPtr(b bool) *bool { return &b }

// Describe returns the definition of p, the inverse of Compile.
func Describe(p *Page) *Definition {
	d := &Definition{
		Next:     p.Next,
		Duration: p.Duration,
		Background: BackgroundDefinition{
			Duration: p.BackgroundDuration,
		},
	}

	if p.Background.UsesFile() {
		d.Background.Path = p.Background.Path.String()
	} else {
		d.Background.Color = colorOf(p.Background.Color)
	}

	if a := p.Analog; a.Visible() {
		d.Analog = &AnalogDefinition{
			X:           a.CenterX,
			Y:           a.CenterY,
			CenterColor: colorOf(a.CenterColor),
			Hour:        HandDefinition{colorOf(a.HourColor), a.HourLength},
			Minute:      HandDefinition{colorOf(a.MinuteColor), a.MinuteLength},
			Second:      HandDefinition{colorOf(a.SecondColor), a.SecondLength},
		}
	}

	for _, s := range p.Sprites {
		if s.Payload == nil {
			continue
		}
		sd := SpriteDefinition{Type: s.Type().String(), X: s.X, Y: s.Y}
		switch v := s.Payload.(type) {
		case *TextSprite:
			sd.Text = v.Text.String()
			sd.Color = colorOf(v.Color)
			sd.Font, sd.DotSize = v.Font, v.DotSize
		case *TimeSprite:
			sd.Format = v.Format.String()
			sd.Color = colorOf(v.Color)
			sd.Font, sd.DotSize = v.Font, v.DotSize
			sd.UTC = v.UseUTC
			sd.BlinkColon = boolPtr(v.BlinkColon)
			sd.BothColons = boolPtr(v.BothColons)
			sd.BlinkSlow = boolPtr(v.BlinkSlow)
			sd.ColonWidthStart, sd.ColonMinusAdvanceX = v.ColonWidthStart, v.ColonMinusAdvanceX
		case *TemperatureSprite:
			sd.References = v.References[:]
			for _, c := range v.Colors {
				sd.Colors = append(sd.Colors, colorOf(c))
			}
			sd.Unit = v.Unit.String()
			sd.Source = v.Source.String()
			precision := v.Precision
			sd.Precision = &precision
			sd.ShowUnit = boolPtr(v.ShowUnit)
			sd.ShowDegree = boolPtr(v.ShowDegree)
			sd.PadLeft = v.PadLeft
			sd.InFuture = v.InFuture
			sd.Font, sd.DotSize, sd.DegreeSize = v.Font, v.DotSize, v.DegreeSize
		case *ImageSprite:
			describeFile(&sd, &v.File)
		case *AnimationSprite:
			describeFile(&sd, &v.File)
		case *CustomCharSprite:
			sd.Data = hex.EncodeToString(v.Data[:])
			sd.Width = v.Width
			sd.Color = colorOf(v.Color)
		}
		d.Sprites = append(d.Sprites, sd)
	}

	return d
}

func describeFile(sd *SpriteDefinition, f *File) {
	sd.Path = f.Path.String()
	sd.FrameDuration = f.FrameDuration
	if f.TransparentColor != 0 {
		sd.Transparent = Color(fmt.Sprintf("0x%04x", uint16(f.TransparentColor)))
	}
}

// WriteDefinition encodes d as YAML to w.
func WriteDefinition(w io.Writer, d *Definition) error {
	b, err := yaml.Marshal(d)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
