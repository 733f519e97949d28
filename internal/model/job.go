package model

import "time"

// SpriteOptions controls frame sampling and sheet layout for a job
type SpriteOptions struct {
	StepSec float64 `json:"stepSec" validate:"gt=0"`
	Columns int     `json:"columns" validate:"gt=0"`
	Rows    int     `json:"rows" validate:"gt=0"`
	Format  string  `json:"format" validate:"oneof=jpg jpeg png"`
	Quality int     `json:"quality" validate:"min=1,max=100"`
}

// WithDefaults fills zero-valued fields from defaults.
func (o SpriteOptions) WithDefaults(defaults SpriteOptions) SpriteOptions {
	if o.StepSec == 0 {
		o.StepSec = defaults.StepSec
	}
	if o.Columns == 0 {
		o.Columns = defaults.Columns
	}
	if o.Rows == 0 {
		o.Rows = defaults.Rows
	}
	if o.Format == "" {
		o.Format = defaults.Format
	}
	if o.Quality == 0 {
		o.Quality = defaults.Quality
	}
	return o
}

// Extension returns the file extension used for sheets of this format
func (o SpriteOptions) Extension() string {
	if o.Format == FormatPNG {
		return FormatPNG
	}
	return FormatJPG
}

// Job represents a sprite generation job held by the job store
type Job struct {
	ID        string        `json:"id"`
	VideoID   string        `json:"videoId"`
	VideoMime string        `json:"videoMime"`
	VideoSize int64         `json:"videoSize"`
	Options   SpriteOptions `json:"options"`
	State     JobState      `json:"state"`
	Percent   int           `json:"percent"`
	Message   string        `json:"message"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Result    *JobResult    `json:"-"` // set only in JOB_STATE_DONE

	WorkspaceDir string `json:"-"`
	VideoPath    string `json:"-"`
}

// JobResult is the immutable output of a finished job
type JobResult struct {
	Sprites    []SpriteFile
	VTT        string
	VideoID    string
	ArchiveURL string
}

// SpriteFile is one encoded sprite sheet
type SpriteFile struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// Sprite returns the sheet with the given file name
func (r *JobResult) Sprite(name string) (SpriteFile, bool) {
	for _, s := range r.Sprites {
		if s.Name == name {
			return s, true
		}
	}
	return SpriteFile{}, false
}

// JobStats summarizes the job store
type JobStats struct {
	Submitted   int `json:"submitted"`
	Queued      int `json:"queued"`
	Processing  int `json:"processing"`
	Done        int `json:"done"`
	Failed      int `json:"failed"`
	Canceled    int `json:"canceled"`
	QueueLength int `json:"queueLength"`
}
