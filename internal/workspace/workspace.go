// Package workspace manages the job-scoped temporary directories that hold
// an uploaded video and the intermediate frames and sheets produced from it.
package workspace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

const (
	dirPrefix = "ytsprites_"
	// InputName is the file name the uploaded video is stored under
	InputName = "input_video"
)

// Manager creates and removes job workspaces under a base directory
type Manager struct {
	baseDir string
	logger  *zap.Logger
}

// NewManager returns a Manager rooted at baseDir, or the system temp dir when empty.
func NewManager(baseDir string, logger *zap.Logger) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{baseDir: baseDir, logger: logger}
}

// BaseDir returns the directory workspaces are created in
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// Path returns the workspace path for a job without touching the filesystem
func (m *Manager) Path(jobID string) string {
	return filepath.Join(m.baseDir, dirPrefix+jobID)
}

// Create makes the workspace directory for a job
func (m *Manager) Create(jobID string) (string, error) {
	dir := m.Path(jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	return dir, nil
}

// SaveInput streams the uploaded video into the workspace and returns its path
// and the number of bytes written.
func (m *Manager) SaveInput(dir string, r io.Reader) (string, int64, error) {
	path := filepath.Join(dir, InputName)
	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create input file: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", 0, fmt.Errorf("write input file: %w", err)
	}
	return path, n, nil
}

// Cleanup removes the workspace recursively. Failures are logged, never returned.
func (m *Manager) Cleanup(dir string) {
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		m.logger.Warn("failed to remove workspace", zap.String("dir", dir), zap.Error(err))
		return
	}
	m.logger.Debug("workspace removed", zap.String("dir", dir))
}
