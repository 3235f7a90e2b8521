package jsonfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bnema/scenefetch/internal/domain"
	"github.com/bnema/scenefetch/internal/port"
)

// Store keeps session history in a single JSON file, rewritten atomically on
// every change. Suited to small deployments without a database.
type Store struct {
	mu       sync.RWMutex
	path     string
	sessions map[string]*domain.Session
}

func NewStore(dataDir string) (*Store, error) {
	path := filepath.Join(dataDir, "history.json")

	store := &Store{
		path:     path,
		sessions: make(map[string]*domain.Session),
	}

	if err := store.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	return store, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	if len(data) == 0 {
		return nil
	}

	var list []*domain.Session
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}

	for _, sess := range list {
		s.sessions[sess.ID] = sess
	}

	return nil
}

func (s *Store) save() error {
	tmpPath := s.path + ".tmp"

	data, err := json.MarshalIndent(s.sorted(), "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmpPath, s.path)
}

// sorted returns sessions newest first. Callers hold the lock.
func (s *Store) sorted() []*domain.Session {
	list := make([]*domain.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
	}
	sort.Slice(list, func(i, j int) bool {
		ei, ej := endedAt(list[i]), endedAt(list[j])
		if ei.Equal(ej) {
			return list[i].ID < list[j].ID
		}
		return ei.After(ej)
	})
	return list
}

func endedAt(s *domain.Session) time.Time {
	if !s.EndedAt.IsZero() {
		return s.EndedAt
	}
	return s.CreatedAt
}

func (s *Store) Record(_ context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = sess.Clone()
	return s.save()
}

func (s *Store) Get(_ context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	return sess.Clone(), nil
}

// List returns up to limit sessions, newest first. A limit <= 0 returns all.
func (s *Store) List(_ context.Context, limit int) ([]*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.sorted()
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	out := make([]*domain.Session, len(list))
	for i, sess := range list {
		out[i] = sess.Clone()
	}
	return out, nil
}

func (s *Store) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, sess := range s.sessions {
		if endedAt(sess).Before(cutoff) {
			delete(s.sessions, id)
			deleted++
		}
	}
	if deleted == 0 {
		return 0, nil
	}
	return deleted, s.save()
}

func (s *Store) Close() error {
	return nil
}

var _ port.SessionHistory = (*Store)(nil)
