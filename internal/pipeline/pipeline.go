// Package pipeline turns a raw generated image into a finished sticker asset.
// The remote model renders in-image text unreliably, so generation is prompted
// against text on a flat green background; this package removes the green and
// composites the label deterministically from loaded glyph data.
//
// Process is a pure function of (image bytes, label, palette index): identical
// inputs produce byte-identical output, so it is safe to re-run on retry.
package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	_ "image/jpeg"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
)

// Sticker output dimensions for the target platform.
const (
	StampWidth  = 370
	StampHeight = 320

	// TextBandHeight is reserved at the bottom for the composited label.
	TextBandHeight = 70
)

// Auxiliary asset dimensions (batch main and tab images).
const (
	MainImageWidth  = 240
	MainImageHeight = 240
	TabImageWidth   = 96
	TabImageHeight  = 74
)

// Pipeline holds the parsed font. The font is read-only after construction,
// so one Pipeline is safe to share across concurrent continuations.
type Pipeline struct {
	font *opentype.Font
}

// New parses the label font. fontData guarantees identical rendering across
// environments; pass nil to fall back to the bundled Go bold face.
func New(fontData []byte) (*Pipeline, error) {
	if fontData == nil {
		fontData = gobold.TTF
	}
	f, err := opentype.Parse(fontData)
	if err != nil {
		return nil, fmt.Errorf("parse label font: %w", err)
	}
	return &Pipeline{font: f}, nil
}

// Process runs the full pipeline: chroma-key removal, subject placement above
// the text band, label compositing, and the final fit to the platform size.
func (p *Pipeline) Process(raw []byte, label string, paletteIndex int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode generated image: %w", err)
	}

	transparent := RemoveGreenBackground(src)

	subjectMaxHeight := StampHeight - TextBandHeight
	subject := imaging.Fit(transparent, StampWidth, subjectMaxHeight, imaging.Lanczos)

	canvas := image.NewNRGBA(image.Rect(0, 0, StampWidth, StampHeight))
	left := (StampWidth - subject.Bounds().Dx()) / 2
	draw.Draw(canvas, subject.Bounds().Add(image.Pt(left, 0)), subject, image.Point{}, draw.Over)

	centerX := float64(StampWidth) / 2
	centerY := float64(subjectMaxHeight) + float64(TextBandHeight)/2
	composited, err := p.drawLabel(canvas, label, paletteIndex, centerX, centerY)
	if err != nil {
		return nil, fmt.Errorf("composite label: %w", err)
	}

	final := imaging.Fit(composited, StampWidth, StampHeight, imaging.Lanczos)
	return encodePNG(final)
}

// ProcessAux prepares an auxiliary asset (main or tab image): chroma-key
// removal and a fit to the requested dimensions, no label.
func (p *Pipeline) ProcessAux(raw []byte, width, height int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode generated image: %w", err)
	}
	transparent := RemoveGreenBackground(src)
	fitted := imaging.Fit(transparent, width, height, imaging.Lanczos)
	return encodePNG(fitted)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
