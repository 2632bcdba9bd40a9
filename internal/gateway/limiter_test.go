package gateway

import (
	"testing"
	"time"
)

func TestLimiterAllowsBurstThenDenies(t *testing.T) {
	l := NewLimiter(2, time.Minute, 2)
	defer l.Stop()

	if !l.Allow("k") || !l.Allow("k") {
		t.Fatal("burst denied")
	}
	if l.Allow("k") {
		t.Fatal("third request allowed within the window")
	}
	// Other keys have their own bucket.
	if !l.Allow("other") {
		t.Fatal("independent key denied")
	}
}

func TestNilLimiterAllowsEverything(t *testing.T) {
	l := NewLimiter(0, time.Minute, 0)
	if l != nil {
		t.Fatal("unlimited config should yield a nil limiter")
	}
	for range 100 {
		if !l.Allow("k") {
			t.Fatal("nil limiter denied a request")
		}
	}
}
