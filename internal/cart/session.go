package cart

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const DefaultSessionCacheSize = 10000

// Sessions hands out one Store per shopping session. Stores are opened from
// durable storage on first use and kept in a bounded LRU; an evicted store
// has already been written through, so it is simply reopened on next use.
type Sessions struct {
	stores    *lru.Cache[string, *Store]
	opening   singleflight.Group
	persister Persister
	pricing   Pricing
	opts      []Option
}

func NewSessions(persister Persister, pricing Pricing, size int, opts ...Option) (*Sessions, error) {
	if size <= 0 {
		size = DefaultSessionCacheSize
	}
	stores, err := lru.New[string, *Store](size)
	if err != nil {
		return nil, fmt.Errorf("session cache: %w", err)
	}
	return &Sessions{
		stores:    stores,
		persister: persister,
		pricing:   pricing,
		opts:      opts,
	}, nil
}

// Get returns the store for sessionID, opening it at most once when several
// requests of the same session race.
func (s *Sessions) Get(ctx context.Context, sessionID string) *Store {
	if st, ok := s.stores.Get(sessionID); ok {
		return st
	}

	v, _, _ := s.opening.Do(sessionID, func() (any, error) {
		if st, ok := s.stores.Get(sessionID); ok {
			return st, nil
		}
		st := Open(ctx, sessionID, s.persister, s.pricing, s.opts...)
		s.stores.Add(sessionID, st)
		return st, nil
	})
	return v.(*Store)
}

// Forget drops the in-memory store; the durable record is kept.
func (s *Sessions) Forget(sessionID string) {
	s.stores.Remove(sessionID)
}

func (s *Sessions) Len() int {
	return s.stores.Len()
}
