package reconcile

import (
	"fmt"
	"sync"
)

// KeyedLock serializes work per resource key while unrelated keys proceed in
// parallel. Keys are tenant-prefixed so no lock is ever shared across
// tenants.
type KeyedLock struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedLock() *KeyedLock {
	return &KeyedLock{entries: make(map[string]*lockEntry)}
}

func (l *KeyedLock) Lock(key string) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &lockEntry{}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
}

func (l *KeyedLock) Unlock(key string) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		l.mu.Unlock()
		panic("reconcile: unlock of unknown key " + key)
	}
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
	l.mu.Unlock()

	e.mu.Unlock()
}

func paymentKey(tenantID uint, gatewayPaymentID string) string {
	return fmt.Sprintf("tenant:%d:payment:%s", tenantID, gatewayPaymentID)
}

func orderKey(tenantID uint, gatewayOrderID string) string {
	return fmt.Sprintf("tenant:%d:order:%s", tenantID, gatewayOrderID)
}
