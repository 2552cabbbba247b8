// Package lockx serializes read-check-write sequences per owner.
package lockx

import (
	"context"
	"sort"
	"sync"
)

// Locker hands out exclusive locks by key. The returned func releases the lock and is safe to call once.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// LockAll acquires every distinct key in sorted order so that two callers locking overlapping
// sets cannot deadlock. On failure the locks already held are released.
func LockAll(ctx context.Context, l Locker, keys ...string) (func(), error) {
	uniq := make(map[string]struct{}, len(keys))
	sorted := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := uniq[k]; ok {
			continue
		}
		uniq[k] = struct{}{}
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	releases := make([]func(), 0, len(sorted))
	unlockAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, k := range sorted {
		release, err := l.Lock(ctx, k)
		if err != nil {
			unlockAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return unlockAll, nil
}

// LocalLocker is an in-process keyed mutex. Entries are dropped once nobody holds or waits on them.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localEntry
}

type localEntry struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: map[string]*localEntry{}}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e := l.locks[key]
	if e == nil {
		e = &localEntry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, e, true) })
	}, nil
}

func (l *LocalLocker) release(key string, e *localEntry, held bool) {
	if held {
		<-e.ch
	}
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}
