package gvas

import (
	"context"
	"log/slog"
	"sync"
)

// Session guards one SaveFile for a host such as a UI: decodes run outside
// the lock and the finished file is swapped in, edits take the write lock,
// reads and encodes share the read lock.
type Session struct {
	mu   sync.RWMutex
	file *SaveFile
	opts DecodeOptions
	log  *slog.Logger
}

func NewSession(opts DecodeOptions) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{opts: opts, log: logger}
}

// Open decodes data and replaces the current file. On error the previous
// file stays in place.
func (s *Session) Open(ctx context.Context, data []byte) error {
	file, err := ReadContext(ctx, data, s.opts)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.file = file
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the value at path.
func (s *Session) Get(p Path) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.file == nil {
		return nil, false
	}
	v, ok := s.file.Get(p)
	if !ok {
		return nil, false
	}
	return CloneValue(v), true
}

func (s *Session) Set(p Path, v Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return ErrNotOpen
	}
	before := len(s.file.Diagnostics)
	if err := s.file.Set(p, v); err != nil {
		return err
	}
	for _, diag := range s.file.Diagnostics[before:] {
		s.log.Warn("set-warning", "path", diag.Path, "type", diag.Type, "error", diag.Err)
	}
	return nil
}

func (s *Session) Write() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.file == nil {
		return nil, ErrNotOpen
	}
	return s.file.Write()
}

// Snapshot returns a deep copy of the current file, or nil.
func (s *Session) Snapshot() *SaveFile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.file == nil {
		return nil
	}
	return s.file.Clone()
}

// Properties returns a copy of the top-level properties in stream order.
func (s *Session) Properties() []Property {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.file == nil {
		return nil
	}
	return s.file.Properties.Clone().All()
}

func (s *Session) Diagnostics() []Diagnostic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.file == nil {
		return nil
	}
	return append([]Diagnostic(nil), s.file.Diagnostics...)
}
