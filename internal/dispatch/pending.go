package dispatch

import (
	"sync"
	"time"
)

// DefaultPendingTTL is how long an unconfirmed self-registration waits
// for the partner's answer.
const DefaultPendingTTL = 30 * time.Minute

// PendingRegistration is a self-registration awaiting confirmation.
type PendingRegistration struct {
	TenantID  int64
	ChatID    int64
	Phone     string
	Name      string
	FullName  string
	CreatedAt time.Time
}

type pendingKey struct {
	tenantID int64
	chatID   int64
}

type pendingEntry struct {
	reg       PendingRegistration
	expiresAt time.Time
}

// PendingStore holds unconfirmed self-registrations keyed by tenant and
// chat, so one tenant's pending state is never visible to another.
// Entries expire after the TTL; expired entries are dropped on access.
type PendingStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[pendingKey]pendingEntry
}

func NewPendingStore(ttl time.Duration) *PendingStore {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	return &PendingStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[pendingKey]pendingEntry),
	}
}

// Put stores or replaces the pending registration for the chat.
func (s *PendingStore) Put(reg PendingRegistration) {
	now := s.now()
	reg.CreatedAt = now
	s.mu.Lock()
	s.entries[pendingKey{reg.TenantID, reg.ChatID}] = pendingEntry{
		reg:       reg,
		expiresAt: now.Add(s.ttl),
	}
	s.mu.Unlock()
}

// Get returns the live pending registration for the chat, if any.
func (s *PendingStore) Get(tenantID, chatID int64) (PendingRegistration, bool) {
	key := pendingKey{tenantID, chatID}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return PendingRegistration{}, false
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, key)
		return PendingRegistration{}, false
	}
	return entry.reg, true
}

// Delete removes the pending registration for the chat.
func (s *PendingStore) Delete(tenantID, chatID int64) {
	s.mu.Lock()
	delete(s.entries, pendingKey{tenantID, chatID})
	s.mu.Unlock()
}
