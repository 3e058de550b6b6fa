package server

import (
	"sync"
	"time"

	"github.com/straja-ai/placeholder/internal/events"
	"github.com/straja-ai/placeholder/internal/placeholder"
)

// requestStore keeps recent detection results so callers can fetch them by
// request ID until they expire. An ID is claimed with reserve before the
// detection runs; a live ID cannot be claimed again, by any client.
type requestStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	data map[string]requestEntry
	// expiry holds IDs in reservation order. The TTL is fixed, so that is
	// also expiry order and a sweep stops at the first live entry.
	expiry []expiringID
}

type requestEntry struct {
	clientID  string
	pending   bool
	outcome   events.Outcome
	verdict   *placeholder.Verdict
	createdAt time.Time
	expiresAt time.Time
}

type expiringID struct {
	id        string
	expiresAt time.Time
}

func newRequestStore(ttl time.Duration) *requestStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &requestStore{
		ttl:  ttl,
		now:  time.Now,
		data: make(map[string]requestEntry),
	}
}

// reserve claims requestID for clientID. It reports false when the ID is
// held by a live entry, pending or complete.
func (s *requestStore) reserve(requestID, clientID string) bool {
	if s == nil || requestID == "" {
		return false
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(now)
	if _, ok := s.data[requestID]; ok {
		return false
	}
	expiresAt := now.Add(s.ttl)
	s.data[requestID] = requestEntry{
		clientID:  clientID,
		pending:   true,
		createdAt: now.UTC(),
		expiresAt: expiresAt,
	}
	s.expiry = append(s.expiry, expiringID{id: requestID, expiresAt: expiresAt})
	return true
}

// complete records the verdict for a reserved ID. A nil verdict is a no-match.
func (s *requestStore) complete(requestID string, v *placeholder.Verdict) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.data[requestID]
	if !ok || !entry.pending {
		return
	}
	entry.pending = false
	entry.verdict = v
	entry.outcome = events.OutcomeNoMatch
	if v != nil {
		entry.outcome = events.OutcomeMatch
	}
	s.data[requestID] = entry
}

// release drops a reservation whose detection failed.
func (s *requestStore) release(requestID string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.data[requestID]; ok && entry.pending {
		delete(s.data, requestID)
	}
}

func (s *requestStore) get(requestID string) (requestEntry, bool) {
	if s == nil || requestID == "" {
		return requestEntry{}, false
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.data[requestID]
	if !ok || entry.pending {
		return requestEntry{}, false
	}
	if now.After(entry.expiresAt) {
		delete(s.data, requestID)
		return requestEntry{}, false
	}
	return entry, true
}

func (s *requestStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

func (s *requestStore) sweepLocked(now time.Time) {
	n := 0
	for n < len(s.expiry) && now.After(s.expiry[n].expiresAt) {
		e := s.expiry[n]
		// The ID may have been released and claimed again since.
		if entry, ok := s.data[e.id]; ok && entry.expiresAt.Equal(e.expiresAt) {
			delete(s.data, e.id)
		}
		n++
	}
	if n > 0 {
		clear(s.expiry[:n])
		s.expiry = s.expiry[n:]
	}
}
