package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Locker implements repository.Locker for a single process.
type Locker struct {
	mu    sync.Mutex
	now   func() time.Time
	locks map[string]lease
}

type lease struct {
	token   string
	expires time.Time
}

// NewLocker creates an in-process locker.
func NewLocker() *Locker {
	return &Locker{now: time.Now, locks: make(map[string]lease)}
}

func (l *Locker) TryLock(_ context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, ok := l.locks[key]; ok && now.Before(cur.expires) {
		return nil, false, nil
	}
	token := uuid.NewString()
	l.locks[key] = lease{token: token, expires: now.Add(ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.locks[key]; ok && cur.token == token {
			delete(l.locks, key)
		}
		return nil
	}, true, nil
}
