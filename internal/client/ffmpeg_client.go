package client

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ytsprites/api/internal/config"
)

const framePattern = "frame_%06d.jpg"

// FFmpegClient samples frames from a video with the ffmpeg binary
type FFmpegClient struct {
	binary  string
	timeout time.Duration
}

// NewFFmpegClient creates a new ffmpeg client
func NewFFmpegClient(cfg *config.FFmpegConfig) *FFmpegClient {
	binary := strings.TrimSpace(cfg.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegClient{binary: binary, timeout: cfg.Timeout}
}

// Check verifies the binary can be executed
func (c *FFmpegClient) Check(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, c.binary, "-hide_banner", "-version")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg check: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// ExtractFrames writes one frame every stepSec seconds into outDir, each letterboxed
// to tileWidth x tileHeight, and returns the frame paths in lexical order.
func (c *FFmpegClient) ExtractFrames(ctx context.Context, videoPath, outDir string, stepSec float64, tileWidth, tileHeight int) ([]string, error) {
	videoPath = strings.TrimSpace(videoPath)
	if videoPath == "" {
		return nil, errors.New("ffmpeg extract: empty path")
	}
	if stepSec <= 0 {
		return nil, fmt.Errorf("ffmpeg extract: invalid step %v", stepSec)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.binary, BuildExtractArgs(videoPath, outDir, stepSec, tileWidth, tileHeight)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg extract: %w: %s", err, tail(strings.TrimSpace(string(output)), 512))
	}

	frames, err := filepath.Glob(filepath.Join(outDir, "frame_*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	sort.Strings(frames)
	return frames, nil
}

// BuildExtractArgs returns the ffmpeg argument list for frame sampling
func BuildExtractArgs(videoPath, outDir string, stepSec float64, tileWidth, tileHeight int) []string {
	fps := strconv.FormatFloat(1/stepSec, 'f', -1, 64)
	filter := fmt.Sprintf(
		"fps=%s,scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black",
		fps, tileWidth, tileHeight, tileWidth, tileHeight,
	)
	return []string{
		"-hide_banner", "-loglevel", "error", "-nostdin", "-y",
		"-i", videoPath,
		"-vf", filter,
		"-q:v", "3",
		filepath.Join(outDir, framePattern),
	}
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
