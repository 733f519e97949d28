package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/ytsprites/api/internal/model"
	"github.com/ytsprites/api/internal/workspace"
)

// SubmitInput carries one uploaded video and its options
type SubmitInput struct {
	VideoID string
	Mime    string
	Size    int64
	Body    io.Reader
	Options model.SpriteOptions
}

// SpriteService handles sprite job management
type SpriteService struct {
	store     *JobStore
	workspace *workspace.Manager
	defaults  model.SpriteOptions
	logger    *zap.Logger
}

func NewSpriteService(store *JobStore, ws *workspace.Manager, defaults model.SpriteOptions, logger *zap.Logger) *SpriteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SpriteService{
		store:     store,
		workspace: ws,
		defaults:  defaults,
		logger:    logger,
	}
}

// Defaults returns the options applied to fields a submission leaves empty
func (s *SpriteService) Defaults() model.SpriteOptions {
	return s.defaults
}

// Submit stores the upload in a fresh workspace and queues a job for it
func (s *SpriteService) Submit(ctx context.Context, in SubmitInput) (*model.SubmitResponse, error) {
	if in.Body == nil || in.Size == 0 {
		return nil, fmt.Errorf("%w: empty video", ErrInvalidInput)
	}
	opts := in.Options.WithDefaults(s.defaults)
	if err := checkOptions(opts); err != nil {
		return nil, err
	}

	jobID, err := s.store.Reserve(in.VideoID, in.Mime, in.Size, opts)
	if err != nil {
		return nil, err
	}

	dir, err := s.workspace.Create(jobID)
	if err != nil {
		s.store.Discard(jobID)
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	videoPath, written, err := s.workspace.SaveInput(dir, in.Body)
	if err == nil && written == 0 {
		err = fmt.Errorf("%w: empty video", ErrInvalidInput)
	}
	if err == nil {
		err = s.store.Enqueue(jobID, dir, videoPath)
	}
	if err != nil {
		s.store.Discard(jobID)
		s.workspace.Cleanup(dir)
		if errors.Is(err, ErrInvalidInput) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to queue job: %w", err)
	}

	s.logger.Info("job submitted",
		zap.String("job_id", jobID),
		zap.String("video_id", in.VideoID),
		zap.String("mime", in.Mime),
		zap.Float64("size_mb", float64(written)/(1024*1024)),
	)

	return &model.SubmitResponse{
		JobID:         jobID,
		Accepted:      true,
		QueuePosition: s.store.QueuePosition(jobID),
	}, nil
}

// GetStatus returns the current status of a sprite job
func (s *SpriteService) GetStatus(ctx context.Context, jobID string) (*model.StatusResponse, error) {
	job, err := s.store.Get(jobID)
	if err != nil {
		return nil, err
	}

	return &model.StatusResponse{
		JobID:         job.ID,
		State:         job.State,
		Percent:       job.Percent,
		Message:       job.Message,
		QueuePosition: s.store.QueuePosition(jobID),
		CreatedAt:     job.CreatedAt,
		UpdatedAt:     job.UpdatedAt,
	}, nil
}

// GetResult returns the result of a completed sprite job
func (s *SpriteService) GetResult(ctx context.Context, jobID string) (*model.ResultResponse, error) {
	result, err := s.result(jobID)
	if err != nil {
		return nil, err
	}

	return &model.ResultResponse{
		JobID:      jobID,
		Sprites:    result.Sprites,
		VTT:        result.VTT,
		VideoID:    result.VideoID,
		ArchiveURL: result.ArchiveURL,
	}, nil
}

// GetSprite returns one sheet of a completed job
func (s *SpriteService) GetSprite(ctx context.Context, jobID, name string) (*model.SpriteFile, error) {
	result, err := s.result(jobID)
	if err != nil {
		return nil, err
	}
	sprite, ok := result.Sprite(name)
	if !ok {
		return nil, fmt.Errorf("%w: sprite %s", ErrJobNotFound, name)
	}
	return &sprite, nil
}

// GetVTT returns the cue track of a completed job
func (s *SpriteService) GetVTT(ctx context.Context, jobID string) (string, error) {
	result, err := s.result(jobID)
	if err != nil {
		return "", err
	}
	return result.VTT, nil
}

// Cancel requests cancellation of a job. A queued job never starts; a running
// job stops at its next stage boundary.
func (s *SpriteService) Cancel(ctx context.Context, jobID string) *model.CancelResponse {
	prev, found := s.store.CancelState(jobID)
	if !found {
		return &model.CancelResponse{JobID: jobID, Canceled: false}
	}

	job, err := s.store.Get(jobID)
	if err != nil {
		return &model.CancelResponse{JobID: jobID, Canceled: true}
	}

	// no worker owns a queued job, so its upload can go now
	if prev == model.JobStateQueued {
		s.workspace.Cleanup(job.WorkspaceDir)
	}
	if !prev.IsTerminal() {
		s.logger.Info("job canceled", zap.String("job_id", jobID), zap.String("previous_state", string(prev)))
	}

	return &model.CancelResponse{JobID: jobID, Canceled: true, State: job.State}
}

// Stats returns job counts per state
func (s *SpriteService) Stats() model.JobStats {
	return s.store.Stats()
}

// RunJanitor periodically drops finished jobs older than retention until ctx ends
func (s *SpriteService) RunJanitor(ctx context.Context, interval, retention time.Duration) error {
	if retention <= 0 {
		<-ctx.Done()
		return nil
	}
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.store.Sweep(retention); n > 0 {
				s.logger.Info("expired jobs removed", zap.Int("count", n))
			}
		}
	}
}

func (s *SpriteService) result(jobID string) (*model.JobResult, error) {
	job, err := s.store.Get(jobID)
	if err != nil {
		return nil, err
	}
	if job.State != model.JobStateDone || job.Result == nil {
		return nil, ErrJobNotReady
	}
	return job.Result, nil
}

func checkOptions(o model.SpriteOptions) error {
	switch {
	case o.StepSec <= 0:
		return fmt.Errorf("%w: stepSec must be positive", ErrInvalidInput)
	case o.Columns <= 0 || o.Rows <= 0:
		return fmt.Errorf("%w: columns and rows must be positive", ErrInvalidInput)
	case o.Quality < 1 || o.Quality > 100:
		return fmt.Errorf("%w: quality must be within 1..100", ErrInvalidInput)
	}
	if !model.IsValidFormat(o.Format) {
		return fmt.Errorf("%w: unsupported format %q", ErrInvalidInput, o.Format)
	}
	return nil
}
