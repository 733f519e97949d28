package model

// JobState is the lifecycle state of a sprite job
type JobState string

const (
	JobStateSubmitted  JobState = "JOB_STATE_SUBMITTED"
	JobStateQueued     JobState = "JOB_STATE_QUEUED"
	JobStateProcessing JobState = "JOB_STATE_PROCESSING"
	JobStateDone       JobState = "JOB_STATE_DONE"
	JobStateFailed     JobState = "JOB_STATE_FAILED"
	JobStateCanceled   JobState = "JOB_STATE_CANCELED"
)

var ValidJobStates = []JobState{
	JobStateSubmitted, JobStateQueued, JobStateProcessing,
	JobStateDone, JobStateFailed, JobStateCanceled,
}

// IsTerminal reports whether no further transition is possible.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateDone, JobStateFailed, JobStateCanceled:
		return true
	case JobStateSubmitted, JobStateQueued, JobStateProcessing:
		return false
	default:
		return false
	}
}

// CanTransition enforces the job state machine edges.
// PROCESSING -> PROCESSING is allowed so progress updates reuse the same path.
func (s JobState) CanTransition(to JobState) bool {
	switch s {
	case JobStateSubmitted:
		return to == JobStateQueued || to == JobStateCanceled
	case JobStateQueued:
		return to == JobStateProcessing || to == JobStateCanceled
	case JobStateProcessing:
		return to == JobStateProcessing || to == JobStateDone || to == JobStateFailed || to == JobStateCanceled
	case JobStateDone, JobStateFailed, JobStateCanceled:
		return false
	default:
		return false
	}
}

// Output image formats
const (
	FormatJPG  = "jpg"
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
)

var ValidFormats = []string{FormatJPG, FormatJPEG, FormatPNG}

// IsValidFormat reports whether f is a supported sheet format
func IsValidFormat(f string) bool {
	for _, v := range ValidFormats {
		if f == v {
			return true
		}
	}
	return false
}

// WebSocket message types
const (
	WSMessageTypeStatus = "status"
	WSMessageTypeError  = "error"
	WSMessageTypePing   = "ping"
	WSMessageTypePong   = "pong"
)
