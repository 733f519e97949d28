package sprite

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// writeFrame writes a solid-color PNG and returns its path
func writeFrame(t *testing.T, dir string, index, w, h int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	path := filepath.Join(dir, fmt.Sprintf("frame_%06d.png", index))
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func readPNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func sameRGB(a, b color.Color) bool {
	ar, ag, ab, _ := a.RGBA()
	br, bg, bb, _ := b.RGBA()
	return ar>>8 == br>>8 && ag>>8 == bg>>8 && ab>>8 == bb>>8
}

type fakeExtractor struct {
	t      *testing.T
	count  int
	err    error
	called int
}

func (f *fakeExtractor) ExtractFrames(_ context.Context, _, outDir string, _ float64, w, h int) ([]string, error) {
	f.called++
	if f.err != nil {
		return nil, f.err
	}
	frames := make([]string, 0, f.count)
	for i := 0; i < f.count; i++ {
		frames = append(frames, writeFrame(f.t, outDir, i+1, w, h, color.White))
	}
	return frames, nil
}
