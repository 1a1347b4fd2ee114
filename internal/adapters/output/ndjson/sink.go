// Package ndjson appends finished encounter records to a file, one JSON
// document per line, rotating by size.
package ndjson

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/okian/fightlog/internal/domain/encounter"
	"github.com/okian/fightlog/pkg/metrics"
)

const (
	defaultBufSize    = 64 * 1024
	defaultMaxBackups = 9
)

// Option configures a Sink.
type Option func(*Sink)

// WithMaxSize sets the file size in bytes at which rotation triggers.
// Zero disables rotation.
func WithMaxSize(bytes int64) Option {
	return func(s *Sink) {
		if bytes >= 0 {
			s.maxSize = bytes
		}
	}
}

// WithMaxBackups sets how many rotated files ({path}.1 ... {path}.N) are kept.
func WithMaxBackups(n int) Option {
	return func(s *Sink) {
		if n > 0 {
			s.maxBackups = n
		}
	}
}

// WithBufSize sets the write buffer size.
func WithBufSize(bytes int) Option {
	return func(s *Sink) {
		if bytes > 0 {
			s.bufSize = bytes
		}
	}
}

// Sink writes records as NDJSON with buffered I/O.
type Sink struct {
	mu         sync.Mutex
	path       string
	f          *os.File
	w          *bufio.Writer
	written    int64
	maxSize    int64
	maxBackups int
	bufSize    int
}

// New opens (or creates) path for appending.
func New(path string, opts ...Option) (*Sink, error) {
	s := &Sink{
		path:       path,
		maxBackups: defaultMaxBackups,
		bufSize:    defaultBufSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

// Write appends rec as one line.
func (s *Sink) Write(_ context.Context, rec encounter.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("ndjson: marshal %s: %w", rec.ID, err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return fmt.Errorf("ndjson: write %s: %w", rec.ID, fs.ErrClosed)
	}
	if s.maxSize > 0 && s.written > 0 && s.written+int64(len(data)) > s.maxSize {
		if err := s.rotate(); err != nil {
			metrics.RecordErrorByComponent("output", "rotate")
			return fmt.Errorf("ndjson: rotate: %w", err)
		}
	}
	n, err := s.w.Write(data)
	s.written += int64(n)
	if err != nil {
		metrics.RecordErrorByComponent("output", "write")
		return fmt.Errorf("ndjson: write: %w", err)
	}
	metrics.RecordRecordStored("ndjson")
	return nil
}

// Flush writes buffered lines to the file.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return nil
	}
	return s.w.Flush()
}

// Close flushes and closes the file. Closing twice is a no-op.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	f := s.f
	s.f = nil
	if err := s.w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("ndjson: flush: %w", err)
	}
	return f.Close()
}

func (s *Sink) open() error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("ndjson: open %s: %w", s.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("ndjson: stat %s: %w", s.path, err)
	}
	s.f = f
	s.w = bufio.NewWriterSize(f, s.bufSize)
	s.written = info.Size()
	return nil
}

// rotate shifts {path}.i to {path}.i+1, moves the live file to {path}.1 and
// reopens. The oldest backup beyond maxBackups is removed.
func (s *Sink) rotate() error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	if err := s.f.Close(); err != nil {
		return err
	}
	s.f = nil

	oldest := fmt.Sprintf("%s.%d", s.path, s.maxBackups)
	if err := os.Remove(oldest); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	for i := s.maxBackups - 1; i >= 1; i-- {
		from := fmt.Sprintf("%s.%d", s.path, i)
		to := fmt.Sprintf("%s.%d", s.path, i+1)
		if err := os.Rename(from, to); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	if err := os.Rename(s.path, s.path+".1"); err != nil {
		return err
	}
	return s.open()
}
