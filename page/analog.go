package page

import (
	"encoding/binary"
	"image"
	"math"
	"time"

	"github.com/bodgit/ledmatrix/rgb565"
)

const (
	analogSize = 14

	// Hidden as either center coordinate disables the analog clock.
	Hidden = 255
)

// AnalogClock describes clock hands drawn over the sprites.
type AnalogClock struct {
	CenterX, CenterY uint8
	CenterColor      rgb565.Color

	HourColor, MinuteColor, SecondColor    rgb565.Color
	HourLength, MinuteLength, SecondLength uint8 // SecondLength 0 hides the second hand
}

// Visible returns true if the clock is drawn.
func (a AnalogClock) Visible() bool {
	return a.CenterX != Hidden && a.CenterY != Hidden
}

// Center returns the pivot of the hands.
func (a AnalogClock) Center() image.Point {
	return image.Pt(int(a.CenterX), int(a.CenterY))
}

// Hand is a line from the center of the clock.
type Hand struct {
	End   image.Point
	Color rgb565.Color
}

func hand(center image.Point, length uint8, turns float64, c rgb565.Color) Hand {
	a := 2 * math.Pi * turns
	return Hand{
		End: center.Add(image.Pt(
			int(math.Round(float64(length)*math.Sin(a))),
			-int(math.Round(float64(length)*math.Cos(a))),
		)),
		Color: c,
	}
}

// Hands returns the hour, minute and, if enabled, second hands for t.
func (a AnalogClock) Hands(t time.Time) []Hand {
	c := a.Center()
	s := float64(t.Second())
	m := float64(t.Minute()) + s/60
	h := float64(t.Hour()%12) + m/60

	hands := []Hand{
		hand(c, a.HourLength, h/12, a.HourColor),
		hand(c, a.MinuteLength, m/60, a.MinuteColor),
	}
	if a.SecondLength != 0 {
		hands = append(hands, hand(c, a.SecondLength, s/60, a.SecondColor))
	}
	return hands
}

func (a AnalogClock) marshal(b []byte) {
	b[0], b[1] = a.CenterX, a.CenterY
	binary.LittleEndian.PutUint16(b[2:], uint16(a.CenterColor))
	binary.LittleEndian.PutUint16(b[4:], uint16(a.HourColor))
	binary.LittleEndian.PutUint16(b[6:], uint16(a.MinuteColor))
	binary.LittleEndian.PutUint16(b[8:], uint16(a.SecondColor))
	b[10], b[11], b[12] = a.HourLength, a.MinuteLength, a.SecondLength
}

func (a *AnalogClock) unmarshal(b []byte) {
	a.CenterX, a.CenterY = b[0], b[1]
	a.CenterColor = rgb565.Color(binary.LittleEndian.Uint16(b[2:]))
	a.HourColor = rgb565.Color(binary.LittleEndian.Uint16(b[4:]))
	a.MinuteColor = rgb565.Color(binary.LittleEndian.Uint16(b[6:]))
	a.SecondColor = rgb565.Color(binary.LittleEndian.Uint16(b[8:]))
	a.HourLength, a.MinuteLength, a.SecondLength = b[10], b[11], b[12]
}
