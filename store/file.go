package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dailyyoga/datakit/logger"
	"go.uber.org/zap"
)

// File persists one JSON blob per namespace under a directory. Writes go
// through a temp file and rename so a crash never leaves a half-written
// record.
type File struct {
	log logger.Logger
	dir string
}

// NewFile creates a file backend rooted at dir, creating it if needed.
func NewFile(log logger.Logger, dir string) (*File, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, ErrInvalidDir(dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ErrOpenDir(dir, err)
	}
	return &File{log: log, dir: dir}, nil
}

func (s *File) Get(namespace string, out any) bool {
	data, err := os.ReadFile(s.path(namespace))
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.log.Warn("failed to decode record, treating as absent",
			zap.String("namespace", namespace),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (s *File) Set(namespace string, value any) {
	if value == nil {
		s.Remove(namespace)
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		s.log.Error("failed to encode record",
			zap.String("namespace", namespace),
			zap.Error(err),
		)
		return
	}

	path := s.path(namespace)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		s.log.Error("failed to write record",
			zap.String("namespace", namespace),
			zap.Error(err),
		)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		s.log.Error("failed to commit record",
			zap.String("namespace", namespace),
			zap.Error(err),
		)
	}
}

func (s *File) Remove(namespace string) {
	if err := os.Remove(s.path(namespace)); err != nil && !os.IsNotExist(err) {
		s.log.Warn("failed to remove record",
			zap.String("namespace", namespace),
			zap.Error(err),
		)
	}
}

var filenameReplacer = strings.NewReplacer("/", "_", "\\", "_")

func (s *File) path(namespace string) string {
	return filepath.Join(s.dir, filenameReplacer.Replace(namespace)+".json")
}
