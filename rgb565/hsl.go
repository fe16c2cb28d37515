package rgb565

import "math"

// HSL is a color in the hue, saturation, lightness space. H is in degrees,
// S and L are percentages.
type HSL struct {
	H, S, L float64
}

// ToHSL converts an 8-bit per channel color to HSL.
func ToHSL(r, g, b uint8) HSL {
	rf := float64(r) / 255
	gf := float64(g) / 255
	bf := float64(b) / 255

	max := math.Max(rf, math.Max(gf, bf))
	min := math.Min(rf, math.Min(gf, bf))

	var h, s float64
	l := (max + min) / 2

	if max != min {
		d := max - min
		if l > 0.5 {
			s = d / (2 - max - min)
		} else {
			s = d / (max + min)
		}
		switch max {
		case rf:
			h = (gf - bf) / d
			if gf < bf {
				h += 6
			}
		case gf:
			h = (bf-rf)/d + 2
		default:
			h = (rf-gf)/d + 4
		}
		h *= 60
	}

	return HSL{H: h, S: s * 100, L: l * 100}
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 1.0/2:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	}
	return p
}

func to8(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, v*255)))
}

// RGB888 converts c back to 8 bits per channel, truncating any fraction.
func (c HSL) RGB888() (r, g, b uint8) {
	h := c.H / 360
	s := c.S / 100
	l := c.L / 100

	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q

	return to8(hueToRGB(p, q, h+1.0/3)), to8(hueToRGB(p, q, h)), to8(hueToRGB(p, q, h-1.0/3))
}

// RGB565 converts c to a packed pixel.
func (c HSL) RGB565() Color {
	return FromRGB888(c.RGB888())
}

// InterpolateHSL linearly interpolates each HSL component between a and b.
// The hue is not wrapped, so the path always runs through the numerically
// intermediate hues.
func InterpolateHSL(a, b HSL, ratio float64) HSL {
	return HSL{
		H: a.H + (b.H-a.H)*ratio,
		S: a.S + (b.S-a.S)*ratio,
		L: a.L + (b.L-a.L)*ratio,
	}
}

// Interpolate blends two packed colors through HSL space.
func Interpolate(a, b Color, ratio float64) Color {
	return InterpolateHSL(ToHSL(a.RGB888()), ToHSL(b.RGB888()), ratio).RGB565()
}
