package sprite

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/ytsprites/api/internal/model"
)

// Packer tiles frames onto sprite sheets and encodes them to disk
type Packer struct {
	logger *zap.Logger
}

func NewPacker(logger *zap.Logger) *Packer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Packer{logger: logger}
}

// Pack writes ceil(len(frames)/capacity) sheets into outDir and returns their paths in order.
// Frames that cannot be decoded leave their cell blank.
func (p *Packer) Pack(frames []string, geom Geometry, format string, quality int, outDir string) ([]string, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}

	ext := model.SpriteOptions{Format: format}.Extension()
	capacity := geom.Capacity()
	count := geom.SheetCount(len(frames))
	paths := make([]string, 0, count)

	for s := 0; s < count; s++ {
		start := s * capacity
		end := start + capacity
		if end > len(frames) {
			end = len(frames)
		}

		canvas := p.newCanvas(geom)
		for i := start; i < end; i++ {
			_, x, y := geom.Cell(i)
			if err := p.place(canvas, frames[i], x, y, geom); err != nil {
				p.logger.Warn("skipping frame",
					zap.String("frame", frames[i]),
					zap.Int("index", i),
					zap.Error(err),
				)
			}
		}

		path := filepath.Join(outDir, SheetFileName(s, ext))
		if err := encodeSheet(path, canvas, ext, quality); err != nil {
			return nil, fmt.Errorf("encode %s: %w", filepath.Base(path), err)
		}
		paths = append(paths, path)
	}

	return paths, nil
}

func (p *Packer) newCanvas(geom Geometry) *image.RGBA {
	w, h := geom.SheetSize()
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, xdraw.Src)
	return canvas
}

func (p *Packer) place(canvas *image.RGBA, framePath string, x, y int, geom Geometry) error {
	f, err := os.Open(framePath)
	if err != nil {
		return err
	}
	defer f.Close()

	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	dst := image.Rect(x, y, x+geom.TileWidth, y+geom.TileHeight)
	b := img.Bounds()
	if b.Dx() == geom.TileWidth && b.Dy() == geom.TileHeight {
		xdraw.Draw(canvas, dst, img, b.Min, xdraw.Src)
		return nil
	}
	xdraw.CatmullRom.Scale(canvas, dst, img, b, xdraw.Src, nil)
	return nil
}

func encodeSheet(path string, img image.Image, ext string, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)

	switch ext {
	case model.FormatPNG:
		err = png.Encode(w, img)
	default:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
