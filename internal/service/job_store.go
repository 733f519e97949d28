package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ytsprites/api/internal/model"
)

const (
	DefaultQueueSize = 100
	CanceledMessage  = "Canceled by user"
)

// JobStore holds every known job and the FIFO of pending ids.
// A single mutex guards both so that pop and cancel never interleave.
type JobStore struct {
	mu       sync.Mutex
	jobs     map[string]*model.Job
	queue    []string
	reserved int
	capacity int
	ready    chan struct{}
	now      func() time.Time
}

func NewJobStore(capacity int) *JobStore {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	return &JobStore{
		jobs:     make(map[string]*model.Job),
		capacity: capacity,
		ready:    make(chan struct{}, 1),
		now:      time.Now,
	}
}

// Ready fires after a job has been enqueued. Workers may select on it
// instead of sleeping out their full idle backoff.
func (s *JobStore) Ready() <-chan struct{} {
	return s.ready
}

// Reserve allocates an id and a queue slot in SUBMITTED state.
// The caller prepares the workspace and then calls Enqueue or Discard.
func (s *JobStore) Reserve(videoID, mime string, size int64, opts model.SpriteOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue)+s.reserved >= s.capacity {
		return "", ErrQueueFull
	}

	id := uuid.New().String()
	for s.jobs[id] != nil {
		id = uuid.New().String()
	}

	now := s.now()
	s.jobs[id] = &model.Job{
		ID:        id,
		VideoID:   videoID,
		VideoMime: mime,
		VideoSize: size,
		Options:   opts,
		State:     model.JobStateSubmitted,
		Message:   "Submitted",
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.reserved++
	return id, nil
}

// Enqueue moves a reserved job to QUEUED and appends it to the FIFO.
func (s *JobStore) Enqueue(id, workspaceDir, videoPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if job.State != model.JobStateSubmitted {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.State, model.JobStateQueued)
	}

	s.reserved--
	job.State = model.JobStateQueued
	job.Message = "Queued"
	job.WorkspaceDir = workspaceDir
	job.VideoPath = videoPath
	job.UpdatedAt = s.now()
	s.queue = append(s.queue, id)

	select {
	case s.ready <- struct{}{}:
	default:
	}
	return nil
}

// Discard forgets a reserved job that never made it into the queue.
func (s *JobStore) Discard(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.State != model.JobStateSubmitted {
		return
	}
	s.reserved--
	delete(s.jobs, id)
}

// Get returns a snapshot of the job
func (s *JobStore) Get(id string) (model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return model.Job{}, ErrJobNotFound
	}
	return *job, nil
}

// PopNext removes and returns the oldest pending job that has not been canceled.
// Canceled entries met on the way are dropped from the queue for good.
func (s *JobStore) PopNext() (model.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.queue) > 0 {
		id := s.queue[0]
		s.queue[0] = ""
		s.queue = s.queue[1:]

		job, ok := s.jobs[id]
		if !ok || job.State == model.JobStateCanceled {
			continue
		}
		return *job, true
	}
	return model.Job{}, false
}

// Cancel marks the job CANCELED unless it is already terminal.
// It reports whether the job exists.
func (s *JobStore) Cancel(id string) bool {
	_, found := s.CancelState(id)
	return found
}

// CancelState is Cancel that also returns the state the job had before the call.
func (s *JobStore) CancelState(id string) (model.JobState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return "", false
	}
	prev := job.State
	if prev.IsTerminal() {
		return prev, true
	}
	if prev == model.JobStateSubmitted {
		s.reserved--
	}
	job.State = model.JobStateCanceled
	job.Message = CanceledMessage
	job.UpdatedAt = s.now()
	return prev, true
}

// QueuePosition returns the 1-based position of a pending job, or 0.
// Canceled entries still waiting to be discarded are not counted.
func (s *JobStore) QueuePosition(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := 0
	for _, qid := range s.queue {
		job, ok := s.jobs[qid]
		if !ok || job.State == model.JobStateCanceled {
			continue
		}
		pos++
		if qid == id {
			return pos
		}
	}
	return 0
}

// Update records progress for a job. Terminal jobs are never overwritten.
func (s *JobStore) Update(id string, state model.JobState, percent int, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if !job.State.CanTransition(state) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.State, state)
	}

	job.State = state
	job.Percent = clampPercent(percent)
	job.Message = message
	job.UpdatedAt = s.now()
	return nil
}

// Complete attaches the result and moves the job to DONE
func (s *JobStore) Complete(id string, result *model.JobResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if !job.State.CanTransition(model.JobStateDone) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.State, model.JobStateDone)
	}

	job.State = model.JobStateDone
	job.Percent = 100
	job.Message = "Done"
	job.Result = result
	job.UpdatedAt = s.now()
	return nil
}

// Fail moves the job to FAILED with the given cause
func (s *JobStore) Fail(id string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if !job.State.CanTransition(model.JobStateFailed) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.State, model.JobStateFailed)
	}

	job.State = model.JobStateFailed
	job.Percent = 0
	job.Message = message
	job.UpdatedAt = s.now()
	return nil
}

// Stats counts jobs per state
func (s *JobStore) Stats() model.JobStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st model.JobStats
	for _, job := range s.jobs {
		switch job.State {
		case model.JobStateSubmitted:
			st.Submitted++
		case model.JobStateQueued:
			st.Queued++
		case model.JobStateProcessing:
			st.Processing++
		case model.JobStateDone:
			st.Done++
		case model.JobStateFailed:
			st.Failed++
		case model.JobStateCanceled:
			st.Canceled++
		}
	}
	st.QueueLength = len(s.queue)
	return st
}

// Sweep drops terminal jobs not updated within retention and returns how many were removed.
// Jobs still referenced by the queue are kept until PopNext discards them.
func (s *JobStore) Sweep(retention time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make(map[string]struct{}, len(s.queue))
	for _, id := range s.queue {
		pending[id] = struct{}{}
	}

	cutoff := s.now().Add(-retention)
	removed := 0
	for id, job := range s.jobs {
		if !job.State.IsTerminal() || job.UpdatedAt.After(cutoff) {
			continue
		}
		if _, ok := pending[id]; ok {
			continue
		}
		delete(s.jobs, id)
		removed++
	}
	return removed
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
