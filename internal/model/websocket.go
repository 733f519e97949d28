package model

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSStatusMessage represents one status sample pushed to a watcher
type WSStatusMessage struct {
	Type    string   `json:"type"`
	JobID   string   `json:"jobId"`
	State   JobState `json:"state"`
	Percent int      `json:"percent"`
	Message string   `json:"message"`
}

// WSErrorMessage represents an error
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
