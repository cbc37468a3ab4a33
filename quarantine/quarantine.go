// Copyright (c) 2024 Neomantra Corp

// Package quarantine implements the append-only Quarantine Sink: rows
// the Rule Engine's validator rejects at ERROR severity are written here
// as JSON lines, one file per schema per day, for later inspection.
package quarantine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/marketdata-eng/histfeed/models"
)

// Entry is one quarantined row, with enough context to diagnose and
// potentially reprocess it later.
type Entry struct {
	JobID     string               `json:"job_id"`
	ChunkID   string               `json:"chunk_id"`
	Schema    models.Schema        `json:"schema"`
	Reason    string               `json:"reason"`
	Errors    []models.Diagnostic  `json:"errors"`
	RawRecord map[string]any       `json:"raw_record"`
	QuarantinedAt time.Time        `json:"quarantined_at"`
}

// Sink is a mutex-serialized append-only JSONL store, partitioned
// by schema and UTC date: dlq/validation_failures/<schema>-<date>.jsonl.
type Sink struct {
	baseDir string
	mu      sync.Mutex
	files   map[string]*os.File
}

// NewSink creates a Sink rooted at baseDir (typically
// "dlq/validation_failures").
func NewSink(baseDir string) (*Sink, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("quarantine: create base dir: %w", err)
	}
	return &Sink{
		baseDir: baseDir,
		files:   make(map[string]*os.File),
	}, nil
}

// Write appends entry to its schema/date-rotated file. Concurrent
// writers are serialized by the Sink's mutex, matching the "internal
// lock or single writer goroutine" requirement for the sink.
func (s *Sink) Write(entry Entry) error {
	if entry.QuarantinedAt.IsZero() {
		entry.QuarantinedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fileFor(entry.Schema, entry.QuarantinedAt)
	if err != nil {
		return err
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("quarantine: marshal entry: %w", err)
	}
	line = append(line, '\n')
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("quarantine: write entry: %w", err)
	}
	return nil
}

func (s *Sink) fileFor(schema models.Schema, at time.Time) (*os.File, error) {
	key := fmt.Sprintf("%s-%s", schema, at.Format("2006-01-02"))
	if f, ok := s.files[key]; ok {
		return f, nil
	}
	path := filepath.Join(s.baseDir, key+".jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("quarantine: open %s: %w", path, err)
	}
	s.files[key] = f
	return f, nil
}

// Close flushes and closes every open file the Sink has written to.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, f := range s.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.files = make(map[string]*os.File)
	return firstErr
}
