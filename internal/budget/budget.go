// Package budget enforces a per-run cap on external LLM calls.
//
// The gate is injected into every LLM-calling component so a single counter
// covers extraction, clustering, merge, fusion, and report generation. A cap
// of 0 means unlimited.
package budget

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
)

// Gate answers whether another external call may be made.
type Gate interface {
	// CanCall reports whether a call is allowed under the current cap.
	CanCall() bool
	// RecordCall increments the persisted call count by n.
	RecordCall(n int)
	// Remaining returns calls left and whether a cap is in effect.
	Remaining() (int, bool)
}

type state struct {
	Count int `json:"count"`
}

// FileStore persists the call counter as a small JSON file so sequential CLI
// invocations share one budget.
type FileStore struct {
	mu   sync.Mutex
	path string
	cap  int
}

// NewFileStore creates a file-backed gate. cap <= 0 disables the limit.
func NewFileStore(path string, cap int) *FileStore {
	return &FileStore{path: path, cap: cap}
}

func (s *FileStore) read() state {
	var st state
	data, err := os.ReadFile(s.path)
	if err != nil {
		return state{}
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return state{}
	}
	return st
}

func (s *FileStore) write(st state) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return eris.Wrap(err, "budget: create state dir")
	}
	data, err := json.Marshal(st)
	if err != nil {
		return eris.Wrap(err, "budget: marshal state")
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return eris.Wrap(err, "budget: write state")
	}
	return nil
}

func (s *FileStore) CanCall() bool {
	if s.cap <= 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().Count < s.cap
}

func (s *FileStore) RecordCall(n int) {
	if s.cap <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.read()
	st.Count += n
	// Best-effort persistence; a failed write never blocks the pipeline.
	_ = s.write(st)
}

func (s *FileStore) Remaining() (int, bool) {
	if s.cap <= 0 {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	left := s.cap - s.read().Count
	if left < 0 {
		left = 0
	}
	return left, true
}

// MemStore is an in-memory gate for tests.
type MemStore struct {
	mu    sync.Mutex
	count int
	cap   int
}

// NewMemStore creates an in-memory gate. cap <= 0 disables the limit.
func NewMemStore(cap int) *MemStore {
	return &MemStore{cap: cap}
}

func (s *MemStore) CanCall() bool {
	if s.cap <= 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count < s.cap
}

func (s *MemStore) RecordCall(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count += n
}

func (s *MemStore) Remaining() (int, bool) {
	if s.cap <= 0 {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	left := s.cap - s.count
	if left < 0 {
		left = 0
	}
	return left, true
}
