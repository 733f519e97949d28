// Package sprite turns sampled video frames into tiled sprite sheets and the
// WebVTT cue track that maps playback time onto tile regions.
package sprite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ytsprites/api/internal/model"
)

var (
	ErrCanceled = errors.New("job canceled")
	ErrNoFrames = errors.New("no frames extracted")
)

// Signal is returned by a progress callback to tell the engine whether to go on
type Signal int

const (
	Continue Signal = iota
	Canceled
)

// ProgressFunc is invoked at every stage boundary. Returning Canceled stops the run.
type ProgressFunc func(percent int, message string) Signal

// FrameExtractor samples a video into equally sized frames, sorted by time
type FrameExtractor interface {
	ExtractFrames(ctx context.Context, videoPath, outDir string, stepSec float64, tileWidth, tileHeight int) ([]string, error)
}

// Request describes one engine run
type Request struct {
	VideoPath string
	WorkDir   string
	Options   model.SpriteOptions
}

// Output is what a successful run leaves behind in the work dir
type Output struct {
	SheetPaths []string
	VTT        string
	FrameCount int
}

// Engine runs extraction, packing and cue generation for a job
type Engine struct {
	extractor  FrameExtractor
	packer     *Packer
	tileWidth  int
	tileHeight int
	logger     *zap.Logger
}

func NewEngine(extractor FrameExtractor, tileWidth, tileHeight int, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		extractor:  extractor,
		packer:     NewPacker(logger),
		tileWidth:  tileWidth,
		tileHeight: tileHeight,
		logger:     logger,
	}
}

// Geometry returns the layout used for the given options
func (e *Engine) Geometry(opts model.SpriteOptions) Geometry {
	return Geometry{
		Columns:    opts.Columns,
		Rows:       opts.Rows,
		TileWidth:  e.tileWidth,
		TileHeight: e.tileHeight,
	}
}

// Run executes the pipeline. Cancellation is observed only at stage boundaries.
func (e *Engine) Run(ctx context.Context, req Request, progress ProgressFunc) (*Output, error) {
	if progress == nil {
		progress = func(int, string) Signal { return Continue }
	}
	geom := e.Geometry(req.Options)
	if err := geom.Validate(); err != nil {
		return nil, err
	}

	if progress(10, "Extracting frames") == Canceled {
		return nil, ErrCanceled
	}

	framesDir := filepath.Join(req.WorkDir, "frames")
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return nil, fmt.Errorf("create frames dir: %w", err)
	}

	frames, err := e.extractor.ExtractFrames(ctx, req.VideoPath, framesDir, req.Options.StepSec, geom.TileWidth, geom.TileHeight)
	if err != nil {
		return nil, fmt.Errorf("extract frames: %w", err)
	}
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	e.logger.Debug("frames extracted", zap.Int("count", len(frames)))

	if progress(40, "Frames extracted") == Canceled {
		return nil, ErrCanceled
	}

	sheets, err := e.packer.Pack(frames, geom, req.Options.Format, req.Options.Quality, req.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("pack sprites: %w", err)
	}

	if progress(80, "Sprites packed") == Canceled {
		return nil, ErrCanceled
	}

	vtt := BuildVTT(len(frames), req.Options.StepSec, geom, req.Options.Extension())

	if progress(95, "Finalizing") == Canceled {
		return nil, ErrCanceled
	}

	return &Output{
		SheetPaths: sheets,
		VTT:        vtt,
		FrameCount: len(frames),
	}, nil
}
