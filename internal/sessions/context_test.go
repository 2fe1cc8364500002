package sessions

import (
	"testing"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
	"github.com/nextlevelbuilder/goclaw/pkg/protocol"
)

func TestFormatHeader_Nil(t *testing.T) {
	if got := formatHeader(nil); got != "" {
		t.Errorf("formatHeader(nil) = %q, want empty", got)
	}
}

func TestFormatHeader_Empty(t *testing.T) {
	if got := formatHeader(&bus.ChannelContext{}); got != "" {
		t.Errorf("formatHeader(empty) = %q, want empty", got)
	}
}

func TestFormatHeader_OrdersKnownFields(t *testing.T) {
	ctx := &bus.ChannelContext{
		Channel:   "tg-1",
		Adapter:   "telegram",
		UserName:  "alice",
		ChatTitle: "Ops Room",
		TopicName: "incidents",
	}
	want := "[channel: tg-1, adapter: telegram, user: alice, chat: Ops Room, topic: incidents]\n"
	if got := formatHeader(ctx); got != want {
		t.Errorf("formatHeader() = %q, want %q", got, want)
	}
}

func TestFormatHeader_SkipsMissingFields(t *testing.T) {
	ctx := &bus.ChannelContext{Channel: "tg-1", UserName: "alice"}
	want := "[channel: tg-1, user: alice]\n"
	if got := formatHeader(ctx); got != want {
		t.Errorf("formatHeader() = %q, want %q", got, want)
	}
}

func TestWithContextPrefix_NilContextReturnsContentUnchanged(t *testing.T) {
	got := withContextPrefix("hello", nil)
	if got != "hello" {
		t.Errorf("withContextPrefix() = %v, want unchanged content", got)
	}
}

func TestWithContextPrefix_StringContentGetsHeaderPrepended(t *testing.T) {
	ctx := &bus.ChannelContext{Channel: "tg-1"}
	got := withContextPrefix("hello", ctx)
	want := "[channel: tg-1]\nhello"
	if got != want {
		t.Errorf("withContextPrefix() = %q, want %q", got, want)
	}
}

func TestWithContextPrefix_BlockContentGetsHeaderBlockPrepended(t *testing.T) {
	ctx := &bus.ChannelContext{Channel: "tg-1"}
	blocks := []protocol.ContentBlock{protocol.TextBlock("body")}
	got := withContextPrefix(blocks, ctx)

	out, ok := got.([]protocol.ContentBlock)
	if !ok {
		t.Fatalf("withContextPrefix() returned %T, want []protocol.ContentBlock", got)
	}
	if len(out) != 2 {
		t.Fatalf("got %d blocks, want 2 (header + body)", len(out))
	}
	if out[0].Text != "[channel: tg-1]\n" {
		t.Errorf("header block = %q", out[0].Text)
	}
	if out[1].Text != "body" {
		t.Errorf("body block = %q", out[1].Text)
	}
}

func TestWithContextPrefix_UnknownContentTypePassesThrough(t *testing.T) {
	ctx := &bus.ChannelContext{Channel: "tg-1"}
	type other struct{ X int }
	in := other{X: 1}
	got := withContextPrefix(in, ctx)
	if got != in {
		t.Errorf("withContextPrefix() = %v, want unchanged %v", got, in)
	}
}
