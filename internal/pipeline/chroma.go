package pipeline

import (
	"image"
	"math"
)

// Green detection thresholds in HSV space. The synthesis prompt asks for a
// flat #00FF00 background; the core band is cut to full transparency and a
// wider edge band gets partial alpha so edges stay anti-aliased.
const (
	greenHueMin = 80.0
	greenHueMax = 160.0
	greenSatMin = 0.4
	greenValMin = 0.3

	edgeHueMin = 70.0
	edgeHueMax = 170.0
	edgeSatMin = 0.25
	edgeValMin = 0.2
)

func rgbToHSV(r, g, b uint8) (hue, sat, val float64) {
	rf, gf, bf := float64(r), float64(g), float64(b)
	max := math.Max(rf, math.Max(gf, bf))
	min := math.Min(rf, math.Min(gf, bf))
	delta := max - min

	if max == 0 {
		return 0, 0, 0
	}
	sat = delta / max
	val = max / 255

	if delta == 0 {
		return 0, 0, val
	}
	switch max {
	case gf:
		hue = 60 * ((bf-rf)/delta + 2)
	case rf:
		hue = 60 * math.Mod((gf-bf)/delta, 6)
	default:
		hue = 60 * ((rf-gf)/delta + 4)
	}
	if hue < 0 {
		hue += 360
	}
	return hue, sat, val
}

// RemoveGreenBackground converts chroma-key green pixels to transparency.
// Non-green pixels are untouched, so an image with no green is returned
// pixel-identical.
func RemoveGreenBackground(src image.Image) *image.NRGBA {
	bounds := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := dst.NRGBAAt(x-bounds.Min.X, y-bounds.Min.Y)
			sr, sg, sb, sa := nrgbaAt(src, x, y)
			c.R, c.G, c.B, c.A = sr, sg, sb, sa

			hue, sat, val := rgbToHSV(c.R, c.G, c.B)
			switch {
			case hue >= greenHueMin && hue <= greenHueMax && sat > greenSatMin && val > greenValMin:
				c.A = 0
			case hue >= edgeHueMin && hue <= edgeHueMax && sat > edgeSatMin && val > edgeValMin:
				edge := math.Min(math.Abs(hue-120)/50, math.Min(1-sat, 1-val))
				c.A = uint8(math.Round(255 * math.Min(edge*3, 1)))
			}
			dst.SetNRGBA(x-bounds.Min.X, y-bounds.Min.Y, c)
		}
	}
	return dst
}

func nrgbaAt(src image.Image, x, y int) (r, g, b, a uint8) {
	if n, ok := src.(*image.NRGBA); ok {
		c := n.NRGBAAt(x, y)
		return c.R, c.G, c.B, c.A
	}
	r32, g32, b32, a32 := src.At(x, y).RGBA()
	if a32 == 0 {
		return 0, 0, 0, 0
	}
	// un-premultiply back to straight alpha
	r = uint8((r32 * 0xffff / a32) >> 8)
	g = uint8((g32 * 0xffff / a32) >> 8)
	b = uint8((b32 * 0xffff / a32) >> 8)
	a = uint8(a32 >> 8)
	return r, g, b, a
}
