package export

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// DefaultPNGSize is the edge length of rasterized downloads.
const DefaultPNGSize = 150

// Rasterize draws svg onto a size×size canvas and encodes it as PNG. The
// source's own dimensions are ignored. Unless transparent is set, the canvas is
// filled with opaque white first.
func Rasterize(svg []byte, size int, transparent bool) ([]byte, error) {
	if size <= 0 {
		size = DefaultPNGSize
	}
	vector, err := oksvg.ReadIconStream(bytes.NewReader(svg), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}
	vector.SetTarget(0, 0, float64(size), float64(size))

	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	if !transparent {
		draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	}
	scanner := rasterx.NewScannerGV(size, size, canvas, canvas.Bounds())
	vector.Draw(rasterx.NewDasher(size, size, scanner), 1)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
