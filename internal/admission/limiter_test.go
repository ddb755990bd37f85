package admission

import (
	"context"
	"testing"
)

func TestLocalFallbackAllowsUpToBurst(t *testing.T) {
	l := New(nil, Config{RequestsPerSecond: 1, BurstSize: 3})

	for i := 0; i < 3; i++ {
		allowed, err := l.Allow(context.Background(), "k1")
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !allowed {
			t.Fatalf("request %d should be allowed within burst", i)
		}
	}

	allowed, err := l.Allow(context.Background(), "k1")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if allowed {
		t.Fatalf("request beyond burst should be rejected")
	}
}

func TestLocalFallbackKeysAreIndependent(t *testing.T) {
	l := New(nil, Config{RequestsPerSecond: 1, BurstSize: 1})

	if allowed, _ := l.Allow(context.Background(), "a"); !allowed {
		t.Fatalf("first request for key a should be allowed")
	}
	if allowed, _ := l.Allow(context.Background(), "b"); !allowed {
		t.Fatalf("first request for key b should be allowed independently of key a")
	}
	if allowed, _ := l.Allow(context.Background(), "a"); allowed {
		t.Fatalf("second request for key a should be rejected")
	}
}
