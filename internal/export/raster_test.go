package export

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

const emptySVG = `<svg xmlns="http://www.w3.org/2000/svg" width="18" height="18" viewBox="0 0 18 18"></svg>`

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestRasterizeWhiteBackground(t *testing.T) {
	t.Parallel()

	data, err := Rasterize([]byte(emptySVG), 0, false)
	require.NoError(t, err)
	img := decodePNG(t, data)
	require.Equal(t, image.Rect(0, 0, DefaultPNGSize, DefaultPNGSize), img.Bounds())

	r, g, b, a := img.At(0, 0).RGBA()
	require.Equal(t, [4]uint32{0xffff, 0xffff, 0xffff, 0xffff}, [4]uint32{r, g, b, a})
}

func TestRasterizeTransparentBackground(t *testing.T) {
	t.Parallel()

	data, err := Rasterize([]byte(emptySVG), 32, true)
	require.NoError(t, err)
	img := decodePNG(t, data)
	require.Equal(t, image.Rect(0, 0, 32, 32), img.Bounds())

	_, _, _, a := img.At(16, 16).RGBA()
	require.Zero(t, a)
}

func TestRasterizeScalesToTarget(t *testing.T) {
	t.Parallel()

	data, err := Rasterize([]byte(squareSVG), 40, true)
	require.NoError(t, err)
	img := decodePNG(t, data)

	_, _, _, a := img.At(20, 20).RGBA()
	require.NotZero(t, a)
}

func TestRasterizeRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := Rasterize([]byte("<<<"), 10, false)
	require.Error(t, err)
}
