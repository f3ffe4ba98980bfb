package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/amoylab/grimrelay/internal/common/cnst"

	"go.uber.org/zap"
)

// MemoryStore implements Store using in-memory storage
type MemoryStore struct {
	logger   *zap.Logger
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory session store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		logger:   logger.Named("session.store.memory"),
		sessions: make(map[string]*Session),
	}
}

// Create implements Store.Create
func (s *MemoryStore) Create(_ context.Context, sess *Session) error {
	if len(sess.Roster) == 0 {
		return fmt.Errorf("create session %s: %w", sess.ID, cnst.ErrEmptyRoster)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.ID]; !exists {
		s.order = append(s.order, sess.ID)
	} else {
		s.logger.Debug("replacing existing session", zap.String("session_id", sess.ID))
	}
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

// Update implements Store.Update
func (s *MemoryStore) Update(_ context.Context, sess *Session) error {
	if len(sess.Roster) == 0 {
		return fmt.Errorf("update session %s: %w", sess.ID, cnst.ErrEmptyRoster)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.ID]; !exists {
		return cnst.ErrSessionNotFound
	}
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

// Get implements Store.Get
func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, cnst.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// Delete implements Store.Delete
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return nil
	}
	delete(s.sessions, id)
	for i, sid := range s.order {
		if sid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// ListPublicActive implements Store.ListPublicActive
func (s *MemoryStore) ListPublicActive(_ context.Context) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*Session, 0, len(s.order))
	for _, id := range s.order {
		if sess := s.sessions[id]; sess.Listed() {
			list = append(list, sess.Clone())
		}
	}
	return list, nil
}

// Count implements Store.Count
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}

// Close implements Store.Close
func (s *MemoryStore) Close() error {
	return nil
}
