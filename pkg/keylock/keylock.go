// Package keylock serializes work per key. Entries are reference counted and
// dropped once no goroutine holds or waits on them, so the map only grows with
// the number of keys in flight.
package keylock

import (
	"sort"
	"strings"
	"sync"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

type KeyLock struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *KeyLock {
	return &KeyLock{entries: make(map[string]*entry)}
}

// Lock blocks until the key is free and returns the matching unlock func.
func (k *KeyLock) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			k.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(k.entries, key)
			}
			k.mu.Unlock()
		})
	}
}

// Len reports how many keys are currently held or awaited.
func (k *KeyLock) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

// PairKey builds an order independent key for two identifiers.
func PairKey(scope, a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return scope + ":" + strings.Join(ids, ":")
}

// OrderedKey builds a key that keeps the argument order.
func OrderedKey(scope string, parts ...string) string {
	return scope + ":" + strings.Join(parts, ":")
}
