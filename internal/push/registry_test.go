package push

import (
	"errors"
	"testing"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
)

func TestRegistry_SendDispatchesToMatchingPrefix(t *testing.T) {
	r := NewRegistry()

	var got string
	r.Register("tg-", func(channel, text string, media *bus.MediaAttachment) error {
		got = channel
		return nil
	})

	delivered, err := r.Send("tg-12345", "hello", nil)
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if !delivered {
		t.Fatal("expected delivered=true")
	}
	if got != "tg-12345" {
		t.Fatalf("handler received channel %q, want %q", got, "tg-12345")
	}
}

func TestRegistry_SendNoMatchReturnsFalse(t *testing.T) {
	r := NewRegistry()
	r.Register("tg-", func(channel, text string, media *bus.MediaAttachment) error { return nil })

	delivered, err := r.Send("http-abc", "hello", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delivered {
		t.Fatal("expected delivered=false for unmatched prefix")
	}
}

func TestRegistry_SendPropagatesHandlerError(t *testing.T) {
	r := NewRegistry()
	wantErr := errors.New("boom")
	r.Register("tg-", func(channel, text string, media *bus.MediaAttachment) error { return wantErr })

	delivered, err := r.Send("tg-1", "hi", nil)
	if delivered {
		t.Fatal("expected delivered=false on handler error")
	}
	if !errors.Is(err, wantErr) {
		t.Fatalf("got error %v, want %v", err, wantErr)
	}
}

// TestRegistry_RegisterOverwritesInPlace verifies that re-registering an
// existing prefix replaces its handler, so only the new handler fires.
func TestRegistry_RegisterOverwritesInPlace(t *testing.T) {
	r := NewRegistry()
	r.Register("tg-", func(channel, text string, media *bus.MediaAttachment) error {
		return errors.New("old handler")
	})

	var newHandlerCalled bool
	r.Register("tg-", func(channel, text string, media *bus.MediaAttachment) error {
		newHandlerCalled = true
		return nil
	})

	delivered, err := r.Send("tg-1", "hi", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !delivered || !newHandlerCalled {
		t.Fatal("expected the replaced handler to be invoked")
	}
}

// TestRegistry_FirstRegisteredPrefixWinsOnOverlap verifies that when two
// registered prefixes both match a channel, the one registered first is
// used, regardless of which prefix is longer.
func TestRegistry_FirstRegisteredPrefixWinsOnOverlap(t *testing.T) {
	r := NewRegistry()

	var calledPrefix string
	r.Register("http-", func(channel, text string, media *bus.MediaAttachment) error {
		calledPrefix = "http-"
		return nil
	})
	r.Register("http-admin-", func(channel, text string, media *bus.MediaAttachment) error {
		calledPrefix = "http-admin-"
		return nil
	})

	if _, err := r.Send("http-admin-1", "hi", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calledPrefix != "http-" {
		t.Fatalf("expected first-registered prefix to win, got %q", calledPrefix)
	}
}

func TestRegistry_SendPassesMediaThrough(t *testing.T) {
	r := NewRegistry()
	want := &bus.MediaAttachment{URL: "https://example.com/a.png", ContentType: "image/png"}

	var got *bus.MediaAttachment
	r.Register("tg-", func(channel, text string, media *bus.MediaAttachment) error {
		got = media
		return nil
	})

	if _, err := r.Send("tg-1", "hi", want); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("media attachment not passed through to handler")
	}
}
