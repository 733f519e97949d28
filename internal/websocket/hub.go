package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"github.com/ytsprites/api/internal/model"
	"github.com/ytsprites/api/internal/service"
)

// StatusSource is polled for job status
type StatusSource interface {
	GetStatus(ctx context.Context, jobID string) (*model.StatusResponse, error)
}

// Hub serves status streams. Every watcher polls the source on its own
// ticker, so a slow client never delays anyone else.
type Hub struct {
	source   StatusSource
	interval time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	watchers map[string]int
}

// NewHub creates a new Hub
func NewHub(source StatusSource, interval time.Duration, logger *zap.Logger) *Hub {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		source:   source,
		interval: interval,
		logger:   logger,
		watchers: make(map[string]int),
	}
}

// WatcherCount returns the number of open streams for a job, or for all jobs when jobID is empty
func (h *Hub) WatcherCount(jobID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if jobID != "" {
		return h.watchers[jobID]
	}
	total := 0
	for _, n := range h.watchers {
		total += n
	}
	return total
}

func (h *Hub) register(jobID string) {
	h.mu.Lock()
	h.watchers[jobID]++
	h.mu.Unlock()
	h.logger.Debug("watcher registered", zap.String("job_id", jobID))
}

func (h *Hub) unregister(jobID string) {
	h.mu.Lock()
	if h.watchers[jobID] <= 1 {
		delete(h.watchers, jobID)
	} else {
		h.watchers[jobID]--
	}
	h.mu.Unlock()
	h.logger.Debug("watcher unregistered", zap.String("job_id", jobID))
}

// Watch sends a status message every interval until the job is terminal.
// An unknown job produces a single NOT_FOUND error message.
func (h *Hub) Watch(ctx context.Context, jobID string, send func([]byte) error) error {
	h.register(jobID)
	defer h.unregister(jobID)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		status, err := h.source.GetStatus(ctx, jobID)
		if errors.Is(err, service.ErrJobNotFound) {
			return send(errorMessage(jobID, "NOT_FOUND", "Job not found"))
		}
		if err != nil {
			return err
		}

		if err := send(statusMessage(status)); err != nil {
			return err
		}
		if status.State.IsTerminal() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// HandleConnection streams status to a WebSocket client and answers its pings
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var writeMu sync.Mutex
	send := func(data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return c.WriteMessage(websocket.TextMessage, data)
	}

	// Reader loop
	go func() {
		defer cancel()
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.Warn("websocket read error", zap.String("job_id", jobID), zap.Error(err))
				}
				return
			}

			var msg model.WSMessage
			if err := json.Unmarshal(message, &msg); err != nil {
				continue
			}
			if msg.Type == model.WSMessageTypePing {
				data, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
				if err := send(data); err != nil {
					return
				}
			}
		}
	}()

	if err := h.Watch(ctx, jobID, send); err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Debug("status stream ended", zap.String("job_id", jobID), zap.Error(err))
	}

	writeMu.Lock()
	_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	writeMu.Unlock()
}

func statusMessage(s *model.StatusResponse) []byte {
	data, _ := json.Marshal(model.WSStatusMessage{
		Type:    model.WSMessageTypeStatus,
		JobID:   s.JobID,
		State:   s.State,
		Percent: s.Percent,
		Message: s.Message,
	})
	return data
}

func errorMessage(jobID, code, message string) []byte {
	data, _ := json.Marshal(model.WSErrorMessage{
		Type:  model.WSMessageTypeError,
		JobID: jobID,
		Error: model.WSError{
			Code:    code,
			Message: message,
		},
	})
	return data
}
