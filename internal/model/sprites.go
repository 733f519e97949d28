package model

import "time"

// SubmitRequest holds the form fields of a submission
type SubmitRequest struct {
	VideoID string        `json:"videoId" validate:"max=256"`
	Options SpriteOptions `json:"options"`
}

// SubmitResponse represents the response when submitting a video
type SubmitResponse struct {
	JobID         string `json:"jobId"`
	Accepted      bool   `json:"accepted"`
	QueuePosition int    `json:"queuePosition"`
}

// StatusResponse represents the status of a sprite job
type StatusResponse struct {
	JobID         string    `json:"jobId"`
	State         JobState  `json:"state"`
	Percent       int       `json:"percent"`
	Message       string    `json:"message"`
	QueuePosition int       `json:"queuePosition"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ResultResponse represents the result of a completed job
type ResultResponse struct {
	JobID      string       `json:"jobId"`
	Sprites    []SpriteFile `json:"sprites"`
	VTT        string       `json:"vtt"`
	VideoID    string       `json:"videoId"`
	ArchiveURL string       `json:"archiveUrl,omitempty"`
}

// CancelResponse represents the response when canceling a job
type CancelResponse struct {
	JobID    string   `json:"jobId"`
	Canceled bool     `json:"canceled"`
	State    JobState `json:"state,omitempty"`
}

// InfoResponse describes the running instance
type InfoResponse struct {
	AppName    string             `json:"appName"`
	InstanceID string             `json:"instanceId"`
	Host       string             `json:"host"`
	Version    string             `json:"version"`
	Uptime     int64              `json:"uptime"`
	Labels     map[string]string  `json:"labels"`
	Metrics    map[string]float64 `json:"metrics"`
}
