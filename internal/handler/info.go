package handler

import (
	"net"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ytsprites/api/internal/model"
	"github.com/ytsprites/api/pkg/response"
)

const AppName = "YTSprites-srv"

// StatsSource reports job counts
type StatsSource interface {
	Stats() model.JobStats
}

type InfoHandler struct {
	stats    StatsSource
	version  string
	port     string
	labels   map[string]string
	started  time.Time
	watchers func() int
}

func NewInfoHandler(stats StatsSource, version, port string, labels map[string]string, watchers func() int) *InfoHandler {
	if labels == nil {
		labels = map[string]string{}
	}
	return &InfoHandler{
		stats:    stats,
		version:  version,
		port:     port,
		labels:   labels,
		started:  time.Now(),
		watchers: watchers,
	}
}

// Health handles GET /health
// @Summary      Health check
// @Tags         System
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       /health [get]
func (h *InfoHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
	})
}

// Info handles GET /info
// @Summary      Instance information
// @Tags         System
// @Produce      json
// @Success      200 {object} model.InfoResponse
// @Router       /info [get]
func (h *InfoHandler) Info(c *fiber.Ctx) error {
	hostname, _ := os.Hostname()
	uptime := time.Since(h.started)
	st := h.stats.Stats()

	metrics := map[string]float64{
		"uptime_sec":      uptime.Seconds(),
		"jobs_queued":     float64(st.Queued),
		"jobs_processing": float64(st.Processing),
		"jobs_done":       float64(st.Done),
		"jobs_failed":     float64(st.Failed),
		"jobs_canceled":   float64(st.Canceled),
		"queue_length":    float64(st.QueueLength),
	}
	if h.watchers != nil {
		metrics["status_watchers"] = float64(h.watchers())
	}

	return response.OK(c, model.InfoResponse{
		AppName:    AppName,
		InstanceID: hostname,
		Host:       net.JoinHostPort(localIP(), h.port),
		Version:    h.version,
		Uptime:     int64(uptime.Seconds()),
		Labels:     h.labels,
		Metrics:    metrics,
	})
}

// localIP returns the first non-loopback IPv4 address
func localIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				return ip4.String()
			}
		}
	}
	return "127.0.0.1"
}
