// Package lock serialises mutations of a single session.  Different
// sessions never contend.
package lock

import (
	"context"
	"sync"
)

// Locker acquires an exclusive hold on one session.  The returned
// release func must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, sessionID uint64) (release func(), err error)
}

// KeyedMutex is an in-process Locker with one mutex per session id.
// Entries are reference counted and dropped once nobody holds or waits
// on them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[uint64]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[uint64]*entry)}
}

func (k *KeyedMutex) Lock(ctx context.Context, sessionID uint64) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[sessionID]
	if !ok {
		e = &entry{}
		k.locks[sessionID] = e
	}
	e.refs++
	k.mu.Unlock()

	acquired := make(chan struct{})
	go func() {
		e.mu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-ctx.Done():
		// the goroutine still takes the mutex; hand it straight back
		go func() {
			<-acquired
			k.unlock(sessionID, e)
		}()
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() { once.Do(func() { k.unlock(sessionID, e) }) }, nil
}

func (k *KeyedMutex) unlock(sessionID uint64, e *entry) {
	e.mu.Unlock()
	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, sessionID)
	}
	k.mu.Unlock()
}

// size reports how many sessions currently have an entry.
func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
