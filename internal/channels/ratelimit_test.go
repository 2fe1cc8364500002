package channels

import "testing"

func TestWebhookRateLimiter_AllowsBurstThenBlocks(t *testing.T) {
	lim := NewWebhookRateLimiter(60) // 1/sec, burst of 60

	// A fresh key's limiter starts with a full burst bucket; draining
	// it past capacity must eventually deny a request.
	allowedAll := true
	for i := 0; i < 61; i++ {
		if !lim.Allow("key-1") {
			allowedAll = false
			break
		}
	}
	if allowedAll {
		t.Error("expected the burst bucket to be exhausted within 61 rapid requests")
	}
}

func TestWebhookRateLimiter_TracksKeysIndependently(t *testing.T) {
	lim := NewWebhookRateLimiter(1)

	if !lim.Allow("a") {
		t.Fatal("expected first request for key a to be allowed")
	}
	if !lim.Allow("b") {
		t.Error("expected a different key to have its own independent limiter")
	}
}

func TestWebhookRateLimiter_DefaultsNonPositivePerMin(t *testing.T) {
	lim := NewWebhookRateLimiter(0)
	if lim.perMin != 60 {
		t.Errorf("perMin = %d, want default 60", lim.perMin)
	}
}
