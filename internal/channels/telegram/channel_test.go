package telegram

import (
	"context"
	"testing"

	"github.com/mymmrac/telego"
)

func newTestChannel(tag string) *Channel {
	if tag == "" {
		tag = "tg-"
	}
	return &Channel{cfg: Config{ChannelTag: tag, MediaMaxBytes: defaultMediaMaxBytes}}
}

func TestChannelKey(t *testing.T) {
	c := newTestChannel("tg-")
	if got := c.channelKey(12345); got != "tg-12345" {
		t.Errorf("channelKey() = %q, want %q", got, "tg-12345")
	}
}

func TestBuildContent_TextOnlyReturnsPlainString(t *testing.T) {
	c := newTestChannel("tg-")
	msg := &telego.Message{Text: "hello there"}

	content, err := c.buildContent(context.Background(), msg)
	if err != nil {
		t.Fatalf("buildContent() error = %v", err)
	}
	if content != "hello there" {
		t.Errorf("buildContent() = %v, want plain string", content)
	}
}

func TestBuildContent_EmptyMessageReturnsNil(t *testing.T) {
	c := newTestChannel("tg-")
	msg := &telego.Message{}

	content, err := c.buildContent(context.Background(), msg)
	if err != nil {
		t.Fatalf("buildContent() error = %v", err)
	}
	if content != nil {
		t.Errorf("buildContent() = %v, want nil for an empty message", content)
	}
}

func TestDeliverPush_InvalidChannelSuffixReturnsError(t *testing.T) {
	c := newTestChannel("tg-")
	if err := c.deliverPush("tg-not-a-number", "hi", nil); err == nil {
		t.Error("expected deliverPush to reject a non-numeric chat id")
	}
}
