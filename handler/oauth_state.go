package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const maxPendingStates = 256

// OAuthStateStore remembers which account started a consent flow
type OAuthStateStore struct {
	pending *expirable.LRU[string, string]
}

// NewOAuthStateStore creates a store whose states expire after ttl
func NewOAuthStateStore(ttl time.Duration) *OAuthStateStore {
	return &OAuthStateStore{pending: expirable.NewLRU[string, string](maxPendingStates, nil, ttl)}
}

// Issue returns a new single-use state for accountID
func (s *OAuthStateStore) Issue(accountID string) string {
	state := uuid.NewString()
	s.pending.Add(state, accountID)
	return state
}

// Consume returns the account of state and forgets it
func (s *OAuthStateStore) Consume(state string) (string, bool) {
	accountID, ok := s.pending.Get(state)
	if !ok {
		return "", false
	}
	s.pending.Remove(state)
	return accountID, true
}
