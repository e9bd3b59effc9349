// Package alert provides the operational sink for unattended failures.
// Scheduled runs report here instead of surfacing errors to a user.
package alert

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Sink records operational alerts as JSON lines in an append-only file.
type Sink struct {
	log  *logrus.Logger
	file *os.File
}

// NewSink opens (creating if needed) the alerts file at path.
func NewSink(path string) (*Sink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create alerts directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open alerts file: %w", err)
	}

	log := logrus.New()
	log.SetOutput(file)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)

	return &Sink{log: log, file: file}, nil
}

// NewDiscardSink returns a sink that drops everything (useful for testing).
func NewDiscardSink() *Sink {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Sink{log: log}
}

// Failure records a failed unattended operation.
func (s *Sink) Failure(operation string, err error, fields map[string]any) {
	entry := s.log.WithField("operation", operation)
	for k, v := range fields {
		entry = entry.WithField(k, v)
	}
	entry.WithError(err).Error("operation failed")
}

// Notice records a non-fatal operational event worth reviewing.
func (s *Sink) Notice(operation, msg string, fields map[string]any) {
	entry := s.log.WithField("operation", operation)
	for k, v := range fields {
		entry = entry.WithField(k, v)
	}
	entry.Warn(msg)
}

// Close releases the underlying file, if any.
func (s *Sink) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}
