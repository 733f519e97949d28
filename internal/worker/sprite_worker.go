package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ytsprites/api/internal/client"
	"github.com/ytsprites/api/internal/model"
	"github.com/ytsprites/api/internal/service"
	"github.com/ytsprites/api/internal/sprite"
	"github.com/ytsprites/api/internal/workspace"
)

// Runner turns a job's video into sprite sheets and a cue track
type Runner interface {
	Run(ctx context.Context, req sprite.Request, progress sprite.ProgressFunc) (*sprite.Output, error)
}

// Pool runs a fixed number of workers that drain the job store
type Pool struct {
	store       *service.JobStore
	engine      Runner
	workspace   *workspace.Manager
	storage     client.StorageClient
	prefix      string
	logger      *zap.Logger
	workers     int
	idleBackoff time.Duration

	wg   sync.WaitGroup
	once sync.Once
}

type Option func(*Pool)

func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithIdleBackoff(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.idleBackoff = d
		}
	}
}

// WithStorage archives finished results under prefix. A nil client disables archiving.
func WithStorage(s client.StorageClient, prefix string) Option {
	return func(p *Pool) {
		p.storage = s
		p.prefix = prefix
	}
}

// NewPool creates a new worker pool
func NewPool(store *service.JobStore, engine Runner, ws *workspace.Manager, logger *zap.Logger, opts ...Option) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{
		store:       store,
		engine:      engine,
		workspace:   ws,
		logger:      logger,
		workers:     2,
		idleBackoff: time.Second,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start launches the workers. They return once ctx is canceled.
func (p *Pool) Start(ctx context.Context) {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go func(workerID int) {
				defer p.wg.Done()
				p.loop(ctx, workerID)
			}(i + 1)
		}
	})
}

// Wait blocks until every worker has returned
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) loop(ctx context.Context, workerID int) {
	log := p.logger.With(zap.Int("worker_id", workerID))
	log.Info("worker started")
	defer log.Info("worker stopped")

	timer := time.NewTimer(p.idleBackoff)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		job, ok := p.store.PopNext()
		if ok {
			p.process(ctx, log, job)
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(p.idleBackoff)

		select {
		case <-ctx.Done():
			return
		case <-p.store.Ready():
		case <-timer.C:
		}
	}
}

// process runs one job to a terminal state. It never panics and always removes the workspace.
func (p *Pool) process(ctx context.Context, log *zap.Logger, job model.Job) {
	log = log.With(zap.String("job_id", job.ID))
	log.Info("picked job", zap.String("video_id", job.VideoID))

	defer p.workspace.Cleanup(job.WorkspaceDir)
	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", zap.Any("panic", r), zap.Stack("stack"))
			p.failJob(log, job.ID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if err := p.store.Update(job.ID, model.JobStateProcessing, 0, "Starting"); err != nil {
		log.Info("job not started", zap.Error(err))
		return
	}

	if err := checkInput(job); err != nil {
		p.failJob(log, job.ID, err.Error())
		return
	}

	out, err := p.engine.Run(ctx, sprite.Request{
		VideoPath: job.VideoPath,
		WorkDir:   job.WorkspaceDir,
		Options:   job.Options,
	}, p.progress(job.ID))
	if errors.Is(err, sprite.ErrCanceled) {
		log.Info("job canceled")
		return
	}
	if err != nil {
		p.failJob(log, job.ID, err.Error())
		return
	}

	result := &model.JobResult{
		Sprites: p.collect(log, out.SheetPaths),
		VTT:     out.VTT,
		VideoID: job.VideoID,
	}
	if p.storage != nil {
		url, err := p.publish(ctx, job.ID, result)
		if err != nil {
			log.Warn("failed to archive result", zap.Error(err))
		} else {
			result.ArchiveURL = url
		}
	}

	if err := p.store.Complete(job.ID, result); err != nil {
		if errors.Is(err, service.ErrInvalidTransition) {
			log.Info("job canceled before completion")
			return
		}
		log.Error("failed to save result", zap.Error(err))
		return
	}

	log.Info("job done",
		zap.Int("frames", out.FrameCount),
		zap.Int("sprites", len(result.Sprites)),
	)
}

// progress reports to the store and turns a cancel into a stop signal
func (p *Pool) progress(jobID string) sprite.ProgressFunc {
	return func(percent int, message string) sprite.Signal {
		job, err := p.store.Get(jobID)
		if err != nil || job.State == model.JobStateCanceled {
			return sprite.Canceled
		}
		if err := p.store.Update(jobID, model.JobStateProcessing, percent, message); err != nil {
			return sprite.Canceled
		}
		return sprite.Continue
	}
}

func (p *Pool) collect(log *zap.Logger, paths []string) []model.SpriteFile {
	sprites := make([]model.SpriteFile, 0, len(paths))
	for _, sheet := range paths {
		data, err := os.ReadFile(sheet)
		if err != nil {
			log.Warn("result file not found", zap.String("path", sheet), zap.Error(err))
			continue
		}
		sprites = append(sprites, model.SpriteFile{Name: filepath.Base(sheet), Data: data})
	}
	return sprites
}

// publish uploads sheets and the cue track and returns the cue track URL
func (p *Pool) publish(ctx context.Context, jobID string, result *model.JobResult) (string, error) {
	for _, s := range result.Sprites {
		key := path.Join(p.prefix, jobID, s.Name)
		if _, err := p.storage.Upload(ctx, key, bytes.NewReader(s.Data), contentType(s.Name)); err != nil {
			return "", err
		}
	}
	key := path.Join(p.prefix, jobID, "thumbnails.vtt")
	return p.storage.Upload(ctx, key, bytes.NewReader([]byte(result.VTT)), "text/vtt")
}

func (p *Pool) failJob(log *zap.Logger, jobID, msg string) {
	log.Error("job failed", zap.String("cause", msg))
	if err := p.store.Fail(jobID, msg); err != nil {
		log.Info("failure not recorded", zap.Error(err))
	}
}

func checkInput(job model.Job) error {
	if job.WorkspaceDir == "" || job.VideoPath == "" {
		return errors.New("video file or workspace lost")
	}
	if _, err := os.Stat(job.WorkspaceDir); err != nil {
		return fmt.Errorf("video file or workspace lost: %w", err)
	}
	if _, err := os.Stat(job.VideoPath); err != nil {
		return fmt.Errorf("video file or workspace lost: %w", err)
	}
	return nil
}

func contentType(name string) string {
	switch filepath.Ext(name) {
	case ".png":
		return "image/png"
	default:
		return "image/jpeg"
	}
}
