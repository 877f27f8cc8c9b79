package reconcile

import (
	"sync"
	"testing"
)

func TestKeyedLockSerializesSameKey(t *testing.T) {
	l := NewKeyedLock()
	var wg sync.WaitGroup
	counter := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Lock("tenant:1:payment:42")
			counter++
			l.Unlock("tenant:1:payment:42")
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Fatalf("counter = %d, want 100", counter)
	}
	if len(l.entries) != 0 {
		t.Fatalf("lock table not cleaned up, %d entries left", len(l.entries))
	}
}

func TestKeyedLockIndependentKeys(t *testing.T) {
	l := NewKeyedLock()
	l.Lock("tenant:1:payment:42")

	done := make(chan struct{})
	go func() {
		// A different tenant's lock on the same payment id must not block.
		l.Lock("tenant:2:payment:42")
		l.Unlock("tenant:2:payment:42")
		close(done)
	}()
	<-done

	l.Unlock("tenant:1:payment:42")
}

func TestKeyedLockUnknownUnlockPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on unlock of unknown key")
		}
	}()
	NewKeyedLock().Unlock("never-locked")
}
