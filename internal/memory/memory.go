// Package memory manages the agent's long-lived markdown memory files.
// Each kind is a single file in the workspace, guarded by its own mutex
// so concurrent loops never interleave writes.
package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Kind identifies one memory blob.
type Kind string

const (
	KindIdentity     Kind = "AGENT.md"        // who the agent is
	KindUser         Kind = "SOUL.md"         // what it knows about its human
	KindPersonality  Kind = "PERSONALITY.md"  // tone and behavioral style
	KindSubconscious Kind = "SUBCONSCIOUS.md" // background ideas and experiments
	KindConscious    Kind = "CONSCIOUS.md"    // current active focus
)

// Kinds lists all memory blobs in prompt-assembly order.
var Kinds = []Kind{KindIdentity, KindUser, KindPersonality, KindSubconscious, KindConscious}

// Store reads and writes memory blobs under one directory.
type Store struct {
	dir string

	mu    sync.Mutex // guards locks map
	locks map[Kind]*sync.Mutex
}

func NewStore(dir string) *Store {
	return &Store{
		dir:   dir,
		locks: make(map[Kind]*sync.Mutex),
	}
}

// Dir returns the directory holding the memory files.
func (s *Store) Dir() string { return s.dir }

func (s *Store) lock(kind Kind) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[kind]
	if !ok {
		l = &sync.Mutex{}
		s.locks[kind] = l
	}
	return l
}

func (s *Store) path(kind Kind) string {
	return filepath.Join(s.dir, string(kind))
}

// Read returns the blob's content. A missing file reads as empty.
func (s *Store) Read(kind Kind) (string, error) {
	l := s.lock(kind)
	l.Lock()
	defer l.Unlock()
	return s.readLocked(kind)
}

func (s *Store) readLocked(kind Kind) (string, error) {
	data, err := os.ReadFile(s.path(kind))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w", kind, err)
	}
	return string(data), nil
}

// Write replaces the blob's content.
func (s *Store) Write(kind Kind, content string) error {
	l := s.lock(kind)
	l.Lock()
	defer l.Unlock()
	return s.writeLocked(kind, content)
}

func (s *Store) writeLocked(kind Kind, content string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}
	if err := os.WriteFile(s.path(kind), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", kind, err)
	}
	return nil
}

// Append adds content to the end of the blob, separated by a blank line.
func (s *Store) Append(kind Kind, content string) error {
	l := s.lock(kind)
	l.Lock()
	defer l.Unlock()

	existing, err := s.readLocked(kind)
	if err != nil {
		return err
	}
	combined := strings.TrimRight(existing, "\n")
	if combined != "" {
		combined += "\n\n"
	}
	combined += strings.TrimSpace(content) + "\n"
	return s.writeLocked(kind, combined)
}
