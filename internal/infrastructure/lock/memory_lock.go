package lock

import (
	"context"
	"sync"
	"time"

	appexchange "github.com/shop/backend/internal/application/exchange"
)

var _ appexchange.StartLock = (*MemoryStartLock)(nil)

// MemoryStartLock is a process-local StartLock for single-instance
// deployments and tests. Leases expire after ttl like the Redis lock.
type MemoryStartLock struct {
	mu     sync.Mutex
	ttl    time.Duration
	leases map[string]lease
	tokens uint64
	now    func() time.Time
}

type lease struct {
	token     uint64
	expiresAt time.Time
}

// NewMemoryStartLock creates an in-memory lock.
func NewMemoryStartLock(ttl time.Duration) *MemoryStartLock {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryStartLock{ttl: ttl, leases: make(map[string]lease), now: time.Now}
}

// Acquire obtains the lease for key or returns appexchange.ErrStartLockHeld.
func (l *MemoryStartLock) Acquire(_ context.Context, key string) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.leases[key]; ok && now.Before(held.expiresAt) {
		return nil, appexchange.ErrStartLockHeld
	}
	l.tokens++
	token := l.tokens
	l.leases[key] = lease{token: token, expiresAt: now.Add(l.ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		// An expired lease may already belong to someone else.
		if cur, ok := l.leases[key]; ok && cur.token == token {
			delete(l.leases, key)
		}
		return nil
	}, nil
}
