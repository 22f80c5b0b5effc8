// Package locations implements the location-resolution cache: a map from a
// normalized place-name query to either a resolved Record or a negative
// marker, loaded from and flushed to a durable Backend.
package locations

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Backend is durable storage for the whole cache. A nil *Record in the map is
// a negative marker.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Load returns everything stored. It returns an empty map when nothing has
	// been stored yet and an error wrapping ErrStorageCorrupt when stored data
	// cannot be parsed.
	Load(ctx context.Context) (map[string]*Record, error)
	// Save replaces all stored data with snapshot. Readers never see a partially
	// written snapshot.
	Save(ctx context.Context, snapshot map[string]*Record) error
}

// Store is the in-memory cache. It is safe for concurrent use.
type Store struct {
	backend Backend
	logger  *zerolog.Logger

	mu      sync.RWMutex
	entries map[string]*Record
	version uint64 // bumped on every mutation
	synced  uint64 // version last written to the backend

	// syncMu serializes backend writes so an older snapshot never lands after a newer one.
	syncMu sync.Mutex
}

// NewStore returns an empty Store backed by backend. Call Load before use to
// pick up previously stored data.
func NewStore(backend Backend, logger *zerolog.Logger) *Store {
	return &Store{
		backend: backend,
		logger:  logger,
		entries: make(map[string]*Record),
	}
}

// Load replaces the in-memory contents with what the backend holds.
func (s *Store) Load(ctx context.Context) error {
	loaded, err := s.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load locations from %s: %w", s.backend.Name(), err)
	}
	if loaded == nil {
		loaded = make(map[string]*Record)
	}

	s.mu.Lock()
	s.entries = loaded
	s.version++
	s.synced = s.version
	s.mu.Unlock()

	s.logger.Info().
		Str("backend", s.backend.Name()).
		Int("entries", len(loaded)).
		Msg("Location store loaded")

	return nil
}

// Get reports whether key was never looked up, looked up without result, or resolved.
func (s *Store) Get(key string) Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.entries[key]
	switch {
	case !ok:
		return Entry{Status: Missing}
	case rec == nil:
		return Entry{Status: Negative}
	default:
		return Entry{Status: Found, Record: *rec}
	}
}

// Put stores a resolved record under key, replacing whatever was there.
func (s *Store) Put(key string, rec Record) {
	s.set(key, &rec)
}

// PutNegative records that key was looked up and nothing was found.
func (s *Store) PutNegative(key string) {
	s.set(key, nil)
}

func (s *Store) set(key string, rec *Record) {
	s.mu.Lock()
	s.entries[key] = rec
	s.version++
	s.mu.Unlock()
}

// Len returns the number of cached keys, negative markers included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Dirty reports whether there are mutations not yet written by Sync.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version != s.synced
}

// Sync writes a consistent snapshot to the backend. It does nothing when the
// store has not changed since the last successful Sync. After a failed write
// the store stays dirty and the next Sync writes again.
func (s *Store) Sync(ctx context.Context) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	s.mu.RLock()
	if s.version == s.synced {
		s.mu.RUnlock()
		return nil
	}
	version := s.version
	snapshot := make(map[string]*Record, len(s.entries))
	for k, rec := range s.entries {
		// Records are never modified after insertion, so sharing the pointer is safe.
		snapshot[k] = rec
	}
	s.mu.RUnlock()

	start := time.Now()
	if err := s.backend.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to save locations to %s: %w", s.backend.Name(), err)
	}

	s.mu.Lock()
	if version > s.synced {
		s.synced = version
	}
	s.mu.Unlock()

	s.logger.Debug().
		Str("backend", s.backend.Name()).
		Int("entries", len(snapshot)).
		Dur("duration", time.Since(start)).
		Msg("Location store synced")

	return nil
}

// BackendName returns the name of the durable backend.
func (s *Store) BackendName() string {
	return s.backend.Name()
}
