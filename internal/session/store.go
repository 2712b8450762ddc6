// Package session persists booking wizard snapshots between requests.
// A session is one wizard instance; abandoning it (TTL expiry) discards
// the selection, like navigating away from the booking page.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/odontosys/booking-wizard/internal/wizard"
)

// ErrNotFound indicates the session id is unknown or expired.
var ErrNotFound = errors.New("session: not found")

// Store persists wizard snapshots keyed by session id.
type Store interface {
	Save(ctx context.Context, id string, snap *wizard.Snapshot) error
	Load(ctx context.Context, id string) (*wizard.Snapshot, error)
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is the default single-process store. Snapshots are kept as
// JSON blobs so Load always returns an independent copy.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	clock   func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		clock:   time.Now,
	}
}

func (s *MemoryStore) Save(ctx context.Context, id string, snap *wizard.Snapshot) error {
	if snap == nil {
		return errors.New("session: nil snapshot")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("session: marshal snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.entries[id] = memoryEntry{data: data, expiresAt: s.clock().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, id string) (*wizard.Snapshot, error) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok || s.clock().After(entry.expiresAt) {
		return nil, ErrNotFound
	}

	var snap wizard.Snapshot
	if err := json.Unmarshal(entry.data, &snap); err != nil {
		return nil, fmt.Errorf("session: decode snapshot: %w", err)
	}
	return &snap, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

func (s *MemoryStore) sweepLocked() {
	now := s.clock()
	for id, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, id)
		}
	}
}
