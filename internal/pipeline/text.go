package pipeline

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
)

// PaletteColor pairs a fill with the stroke that keeps it readable.
type PaletteColor struct {
	Fill   color.NRGBA
	Stroke color.NRGBA
}

var white = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

// palette is the fixed sticker text palette. Repeated labels in one batch get
// visibly distinct colors via index rotation. Yellow carries a dark stroke.
var palette = []PaletteColor{
	{Fill: color.NRGBA{0xFF, 0x4B, 0x8B, 0xFF}, Stroke: white}, // hot pink
	{Fill: color.NRGBA{0xFF, 0x6B, 0x35, 0xFF}, Stroke: white}, // orange
	{Fill: color.NRGBA{0x4E, 0xCD, 0xC4, 0xFF}, Stroke: white}, // teal
	{Fill: color.NRGBA{0xFF, 0xD9, 0x3D, 0xFF}, Stroke: color.NRGBA{0x8B, 0x69, 0x14, 0xFF}}, // yellow
	{Fill: color.NRGBA{0x6C, 0x5C, 0xE7, 0xFF}, Stroke: white}, // purple
	{Fill: color.NRGBA{0x00, 0xB8, 0x94, 0xFF}, Stroke: white}, // green
	{Fill: color.NRGBA{0xE8, 0x43, 0x93, 0xFF}, Stroke: white}, // magenta
	{Fill: color.NRGBA{0x09, 0x84, 0xE3, 0xFF}, Stroke: white}, // blue
	{Fill: color.NRGBA{0xFF, 0x63, 0x48, 0xFF}, Stroke: white}, // red-orange
	{Fill: color.NRGBA{0xA2, 0x9B, 0xFE, 0xFF}, Stroke: white}, // lavender
}

// ColorByIndex rotates through the palette.
func ColorByIndex(index int) PaletteColor {
	if index < 0 {
		index = 0
	}
	return palette[index%len(palette)]
}

// fontSizeFor shrinks the glyph size as the label grows, with a floor per
// length bucket so short labels read large and long ones still fit.
func fontSizeFor(label string, canvasWidth int) float64 {
	length := len([]rune(label))
	base := float64(int(float64(canvasWidth) * 0.13))

	max := func(a, b float64) float64 {
		if a > b {
			return a
		}
		return b
	}
	switch {
	case length <= 2:
		return max(base+20, 68)
	case length <= 4:
		return max(base+12, 58)
	case length <= 6:
		return max(base+4, 50)
	case length <= 8:
		return max(base, 44)
	default:
		return max(base-6, 38)
	}
}

// drawLabel composites the three glyph layers over canvas: a wide soft-black
// pop shadow, a contrasting stroke sized to the glyph weight, then the solid
// palette fill. Strokes are emulated by stamping the glyphs over a filled
// disc of offsets, which keeps rendering deterministic for a given font.
func (p *Pipeline) drawLabel(canvas image.Image, label string, paletteIndex int, centerX, centerY float64) (image.Image, error) {
	fontSize := fontSizeFor(label, StampWidth)
	strokeWidth := fontSize / 8
	if strokeWidth < 4 {
		strokeWidth = 4
	}
	colors := ColorByIndex(paletteIndex)

	face, err := opentype.NewFace(p.font, &opentype.FaceOptions{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, err
	}
	defer face.Close()

	dc := gg.NewContextForImage(canvas)
	dc.SetFontFace(face)

	dc.SetColor(color.NRGBA{0, 0, 0, 0x4D})
	stampStroke(dc, label, centerX, centerY, int(strokeWidth)+3)

	dc.SetColor(colors.Stroke)
	stampStroke(dc, label, centerX, centerY, int(strokeWidth))

	dc.SetColor(colors.Fill)
	dc.DrawStringAnchored(label, centerX, centerY, 0.5, 0.5)

	return dc.Image(), nil
}

func stampStroke(dc *gg.Context, label string, x, y float64, width int) {
	for dy := -width; dy <= width; dy++ {
		for dx := -width; dx <= width; dx++ {
			if dx*dx+dy*dy > width*width {
				continue
			}
			dc.DrawStringAnchored(label, x+float64(dx), y+float64(dy), 0.5, 0.5)
		}
	}
}
