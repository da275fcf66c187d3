package tracker

import (
	"context"
	"sync"
)

// userLocks hands out one mutex per user name. Entries are reference
// counted and dropped once no goroutine holds or waits for them.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	sem  chan struct{}
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

// lock blocks until user's lock is held or ctx is done.
// The returned func releases it and must be called exactly once.
func (l *userLocks) lock(ctx context.Context, user string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	ul, ok := l.locks[user]
	if !ok {
		ul = &userLock{sem: make(chan struct{}, 1)}
		l.locks[user] = ul
	}
	ul.refs++
	l.mu.Unlock()

	select {
	case ul.sem <- struct{}{}:
		return func() {
			<-ul.sem
			l.release(user, ul)
		}, nil
	case <-ctx.Done():
		l.release(user, ul)
		return nil, ctx.Err()
	}
}

func (l *userLocks) release(user string, ul *userLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ul.refs--
	if ul.refs == 0 {
		delete(l.locks, user)
	}
}

// size returns the number of live entries.
func (l *userLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
