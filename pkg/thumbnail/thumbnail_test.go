package thumbnail_test

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/curator/pkg/thumbnail"
	"github.com/m-mizutani/gt"
)

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "asset.png")
	f, err := os.Create(path)
	gt.NoError(t, err)
	defer f.Close()
	gt.NoError(t, png.Encode(f, img))
	return path
}

func TestRenderBoundsLongestSide(t *testing.T) {
	path := writePNG(t, 400, 200)

	data, err := thumbnail.New(thumbnail.WithMaxDimension(100)).Render(path)
	gt.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(data))
	gt.NoError(t, err)
	gt.Equal(t, img.Bounds().Dx(), 100)
	gt.Equal(t, img.Bounds().Dy(), 50)
}

func TestRenderKeepsSmallImages(t *testing.T) {
	path := writePNG(t, 40, 30)

	data, err := thumbnail.New().Render(path)
	gt.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(data))
	gt.NoError(t, err)
	gt.Equal(t, img.Bounds().Dx(), 40)
	gt.Equal(t, img.Bounds().Dy(), 30)
}

func TestRenderUndecodable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jpg")
	gt.NoError(t, os.WriteFile(path, []byte("not an image"), 0644))

	_, err := thumbnail.New().Render(path)
	gt.Error(t, err)
}

func TestOrient(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	src.Set(0, 0, red)

	testCases := []struct {
		orientation int
		w, h        int
		redX, redY  int
	}{
		{1, 3, 2, 0, 0},
		{2, 3, 2, 2, 0},
		{3, 3, 2, 2, 1},
		{4, 3, 2, 0, 1},
		{5, 2, 3, 0, 0},
		{6, 2, 3, 1, 0},
		{7, 2, 3, 1, 2},
		{8, 2, 3, 0, 2},
	}

	for _, tc := range testCases {
		out := thumbnail.Orient(src, tc.orientation)
		gt.Equal(t, out.Bounds().Dx(), tc.w)
		gt.Equal(t, out.Bounds().Dy(), tc.h)
		r, _, _, _ := out.At(tc.redX, tc.redY).RGBA()
		gt.Equal(t, r, uint32(0xffff))
	}
}
