package gateway

import (
	"testing"
	"time"
)

func newTestBreaker() (*Breaker, *time.Time) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b := NewBreaker(5, 30*time.Second, 30*time.Second)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker()

	for i := 0; i < 4; i++ {
		b.Failure()
		if !b.Allow() {
			t.Fatalf("breaker opened after %d failures, want 5", i+1)
		}
	}
	b.Failure()
	if b.Allow() {
		t.Fatal("breaker still closed after 5 consecutive failures")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker()

	for i := 0; i < 4; i++ {
		b.Failure()
	}
	b.Success()
	for i := 0; i < 4; i++ {
		b.Failure()
	}
	if !b.Allow() {
		t.Fatal("success should have reset the consecutive failure count")
	}
}

func TestBreakerFailuresOutsideWindowForgotten(t *testing.T) {
	b, now := newTestBreaker()

	for i := 0; i < 4; i++ {
		b.Failure()
	}
	*now = now.Add(31 * time.Second)
	for i := 0; i < 4; i++ {
		b.Failure()
	}
	if !b.Allow() {
		t.Fatal("failures outside the rolling window must not count toward the threshold")
	}
}

func TestBreakerHalfOpenSingleProbe(t *testing.T) {
	b, now := newTestBreaker()

	for i := 0; i < 5; i++ {
		b.Failure()
	}
	if b.Allow() {
		t.Fatal("breaker should be open")
	}

	*now = now.Add(30 * time.Second)
	if !b.Allow() {
		t.Fatal("cooldown elapsed, one probe should be admitted")
	}
	if b.Allow() {
		t.Fatal("only a single probe may pass while half-open")
	}

	b.Success()
	if !b.Allow() {
		t.Fatal("successful probe should close the breaker")
	}
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	b, now := newTestBreaker()

	for i := 0; i < 5; i++ {
		b.Failure()
	}
	*now = now.Add(30 * time.Second)
	if !b.Allow() {
		t.Fatal("probe should be admitted after cooldown")
	}
	b.Failure()
	if b.Allow() {
		t.Fatal("failed probe must immediately reopen the breaker")
	}

	*now = now.Add(30 * time.Second)
	if !b.Allow() {
		t.Fatal("breaker should half-open again after another cooldown")
	}
}
