package main

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// downloadTTL bounds how long a generated deck waits for its download.
const downloadTTL = 10 * time.Minute

type download struct {
	filename string
	runID    string
	data     []byte
	expires  time.Time
}

// downloadStore holds generated decks for the confirmation page. Each
// token can be fetched once.
type downloadStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]download
}

func newDownloadStore(ttl time.Duration) *downloadStore {
	return &downloadStore{ttl: ttl, now: time.Now, items: make(map[string]download)}
}

// put stores a deck and returns its token.
func (s *downloadStore) put(filename, runID string, data []byte) string {
	token := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.evict()
	s.items[token] = download{
		filename: filename,
		runID:    runID,
		data:     data,
		expires:  s.now().Add(s.ttl),
	}
	return token
}

// take removes and returns the deck for token.
func (s *downloadStore) take(token string) (download, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evict()
	d, ok := s.items[token]
	if ok {
		delete(s.items, token)
	}
	return d, ok
}

func (s *downloadStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// evict drops expired entries. Callers hold mu.
func (s *downloadStore) evict() {
	now := s.now()
	for token, d := range s.items {
		if !now.Before(d.expires) {
			delete(s.items, token)
		}
	}
}
