package server

import (
	"context"
	"sync"
	"time"

	"github.com/CK6170/Leocal-go/modern"
	"github.com/google/uuid"
)

type SessionRecord struct {
	ID     string
	Opened time.Time
	Sess   *modern.Session

	// watch loop of this session, if running
	mu          sync.Mutex
	watchCancel context.CancelFunc
}

func (r *SessionRecord) stopWatch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watchCancel != nil {
		r.watchCancel()
		r.watchCancel = nil
	}
}

// SessionStore keeps open calibration sessions in memory, keyed by a random
// UUID handed out to the client.
type SessionStore struct {
	mu sync.RWMutex
	m  map[string]*SessionRecord
}

func NewSessionStore() *SessionStore {
	return &SessionStore{m: make(map[string]*SessionRecord)}
}

func (s *SessionStore) Put(sess *modern.Session) *SessionRecord {
	rec := &SessionRecord{ID: uuid.NewString(), Opened: time.Now(), Sess: sess}
	s.mu.Lock()
	s.m[rec.ID] = rec
	s.mu.Unlock()
	return rec
}

func (s *SessionStore) Get(id string) (*SessionRecord, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.m[id]
	return r, ok
}

func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	rec, ok := s.m[id]
	delete(s.m, id)
	s.mu.Unlock()
	if ok {
		rec.stopWatch()
	}
	return ok
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
