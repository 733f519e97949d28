package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ytsprites/api/internal/model"
)

var testOptions = model.SpriteOptions{StepSec: 2, Columns: 2, Rows: 2, Format: "jpg", Quality: 70}

// queueJob reserves a slot and enqueues it the way Submit does
func queueJob(s *JobStore, workspaceDir, videoPath string) (string, error) {
	id, err := s.Reserve("video", "video/mp4", 10, testOptions)
	if err != nil {
		return "", err
	}
	if err := s.Enqueue(id, workspaceDir, videoPath); err != nil {
		s.Discard(id)
		return "", err
	}
	return id, nil
}

func createJob(t *testing.T, s *JobStore) string {
	t.Helper()
	id, err := queueJob(s, "/tmp/ws", "/tmp/ws/input_video")
	if err != nil {
		t.Fatalf("queueJob() error = %v", err)
	}
	return id
}

func TestJobStore_CreateQueuesJob(t *testing.T) {
	s := NewJobStore(10)
	id := createJob(t, s)

	job, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if job.State != model.JobStateQueued {
		t.Errorf("state = %s, want QUEUED", job.State)
	}
	if job.Result != nil {
		t.Error("queued job must not carry a result")
	}
	if pos := s.QueuePosition(id); pos != 1 {
		t.Errorf("QueuePosition() = %d, want 1", pos)
	}
}

func TestJobStore_CapacityRejectsOverflow(t *testing.T) {
	const capacity = 5
	s := NewJobStore(capacity)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted, rejected := 0, 0
	for i := 0; i < capacity+3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := queueJob(s, "", "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, ErrQueueFull):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if accepted != capacity || rejected != 3 {
		t.Errorf("accepted=%d rejected=%d, want %d and 3", accepted, rejected, capacity)
	}
	if n := s.Stats().QueueLength; n != capacity {
		t.Errorf("queue length = %d, want %d", n, capacity)
	}
}

func TestJobStore_ReservedCountsTowardCapacity(t *testing.T) {
	s := NewJobStore(1)
	id, err := s.Reserve("v", "video/mp4", 1, testOptions)
	if err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	if _, err := s.Reserve("v", "video/mp4", 1, testOptions); !errors.Is(err, ErrQueueFull) {
		t.Errorf("second Reserve() error = %v, want ErrQueueFull", err)
	}

	s.Discard(id)
	if _, err := s.Get(id); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("discarded job still present: %v", err)
	}
	if _, err := s.Reserve("v", "video/mp4", 1, testOptions); err != nil {
		t.Errorf("Reserve() after Discard error = %v", err)
	}
}

func TestJobStore_UniqueIDs(t *testing.T) {
	s := NewJobStore(1000)
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := createJob(t, s)
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestJobStore_PopNextFIFOAndOnce(t *testing.T) {
	s := NewJobStore(10)
	a := createJob(t, s)
	b := createJob(t, s)

	job, ok := s.PopNext()
	if !ok || job.ID != a {
		t.Fatalf("first pop = %v %v, want %s", job.ID, ok, a)
	}
	job, ok = s.PopNext()
	if !ok || job.ID != b {
		t.Fatalf("second pop = %v %v, want %s", job.ID, ok, b)
	}
	if _, ok := s.PopNext(); ok {
		t.Error("pop on empty queue must report false")
	}
}

func TestJobStore_PopNextConcurrentExactlyOnce(t *testing.T) {
	s := NewJobStore(200)
	for i := 0; i < 200; i++ {
		createJob(t, s)
	}

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, ok := s.PopNext()
				if !ok {
					return
				}
				mu.Lock()
				seen[job.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != 200 {
		t.Errorf("popped %d distinct jobs, want 200", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("job %s popped %d times", id, n)
		}
	}
}

func TestJobStore_CancelQueuedIsSkipped(t *testing.T) {
	s := NewJobStore(10)
	a := createJob(t, s)
	b := createJob(t, s)

	if !s.Cancel(a) {
		t.Fatal("Cancel() of existing job returned false")
	}

	job, _ := s.Get(a)
	if job.State != model.JobStateCanceled || job.Message != CanceledMessage {
		t.Errorf("canceled job = %s %q", job.State, job.Message)
	}

	// canceled entry is not counted, but still holds its slot
	if pos := s.QueuePosition(b); pos != 1 {
		t.Errorf("QueuePosition(b) = %d, want 1", pos)
	}
	if pos := s.QueuePosition(a); pos != 0 {
		t.Errorf("QueuePosition(canceled) = %d, want 0", pos)
	}
	if n := s.Stats().QueueLength; n != 2 {
		t.Errorf("queue length = %d, want 2 until popped", n)
	}

	got, ok := s.PopNext()
	if !ok || got.ID != b {
		t.Fatalf("PopNext() = %s %v, want %s", got.ID, ok, b)
	}
	if _, ok := s.PopNext(); ok {
		t.Error("canceled job must never be popped")
	}
}

func TestJobStore_CancelUnknownAndTerminal(t *testing.T) {
	s := NewJobStore(10)
	if s.Cancel("missing") {
		t.Error("Cancel() of unknown job must report false")
	}

	id := createJob(t, s)
	s.PopNext()
	if err := s.Update(id, model.JobStateProcessing, 0, "Starting"); err != nil {
		t.Fatal(err)
	}
	if err := s.Complete(id, &model.JobResult{VTT: "WEBVTT"}); err != nil {
		t.Fatal(err)
	}

	prev, found := s.CancelState(id)
	if !found || prev != model.JobStateDone {
		t.Errorf("CancelState() = %s %v", prev, found)
	}
	job, _ := s.Get(id)
	if job.State != model.JobStateDone {
		t.Errorf("cancel overwrote terminal state: %s", job.State)
	}
}

func TestJobStore_CancelWinsOverLateWrites(t *testing.T) {
	s := NewJobStore(10)
	id := createJob(t, s)
	s.PopNext()
	if err := s.Update(id, model.JobStateProcessing, 40, "Frames extracted"); err != nil {
		t.Fatal(err)
	}

	s.Cancel(id)

	if err := s.Update(id, model.JobStateProcessing, 80, "Sprites packed"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Update() after cancel error = %v", err)
	}
	if err := s.Complete(id, &model.JobResult{}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Complete() after cancel error = %v", err)
	}
	if err := s.Fail(id, "boom"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fail() after cancel error = %v", err)
	}

	job, _ := s.Get(id)
	if job.State != model.JobStateCanceled || job.Result != nil {
		t.Errorf("job = %s result=%v, want CANCELED without result", job.State, job.Result)
	}
}

func TestJobStore_CompleteAndFail(t *testing.T) {
	s := NewJobStore(10)
	a := createJob(t, s)
	b := createJob(t, s)
	s.PopNext()
	s.PopNext()
	_ = s.Update(a, model.JobStateProcessing, 0, "Starting")
	_ = s.Update(b, model.JobStateProcessing, 0, "Starting")

	if err := s.Complete(a, &model.JobResult{VTT: "WEBVTT"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Fail(b, "no frames extracted"); err != nil {
		t.Fatal(err)
	}

	done, _ := s.Get(a)
	if done.State != model.JobStateDone || done.Percent != 100 || done.Message != "Done" || done.Result == nil {
		t.Errorf("done job = %+v", done)
	}
	failed, _ := s.Get(b)
	if failed.State != model.JobStateFailed || failed.Percent != 0 || failed.Result != nil {
		t.Errorf("failed job = %+v", failed)
	}

	st := s.Stats()
	if st.Done != 1 || st.Failed != 1 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestJobStore_Sweep(t *testing.T) {
	s := NewJobStore(10)
	now := time.Now()
	s.now = func() time.Time { return now }

	old := createJob(t, s)
	s.PopNext()
	_ = s.Update(old, model.JobStateProcessing, 0, "Starting")
	_ = s.Fail(old, "boom")

	queuedCanceled := createJob(t, s)
	s.Cancel(queuedCanceled)
	active := createJob(t, s)

	s.now = func() time.Time { return now.Add(2 * time.Hour) }
	if n := s.Sweep(time.Hour); n != 1 {
		t.Errorf("Sweep() removed %d, want 1", n)
	}
	if _, err := s.Get(old); !errors.Is(err, ErrJobNotFound) {
		t.Error("expired job should be gone")
	}
	if _, err := s.Get(queuedCanceled); err != nil {
		t.Error("canceled job still in queue must be kept")
	}
	if _, err := s.Get(active); err != nil {
		t.Error("active job must be kept")
	}
}

func TestJobStore_ReadySignalsEnqueue(t *testing.T) {
	s := NewJobStore(10)
	createJob(t, s)

	select {
	case <-s.Ready():
	default:
		t.Error("Ready() should fire after enqueue")
	}
}
