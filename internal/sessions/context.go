package sessions

import (
	"strings"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
	"github.com/nextlevelbuilder/goclaw/pkg/protocol"
)

// formatHeader renders a ChannelContext as the single bracketed header
// line the Channel Manager prepends to dispatched content. Omitted
// fields are omitted from the header. Idempotent: callers never
// re-parse it.
func formatHeader(ctx *bus.ChannelContext) string {
	if ctx == nil {
		return ""
	}
	parts := make([]string, 0, 5)
	if ctx.Channel != "" {
		parts = append(parts, "channel: "+ctx.Channel)
	}
	if ctx.Adapter != "" {
		parts = append(parts, "adapter: "+ctx.Adapter)
	}
	if ctx.UserName != "" {
		parts = append(parts, "user: "+ctx.UserName)
	}
	if ctx.ChatTitle != "" {
		parts = append(parts, "chat: "+ctx.ChatTitle)
	}
	if ctx.TopicName != "" {
		parts = append(parts, "topic: "+ctx.TopicName)
	}
	if len(parts) == 0 {
		return ""
	}
	return "[" + strings.Join(parts, ", ") + "]\n"
}

// withContextPrefix prepends ctx's header to content, returning
// content unchanged if ctx is nil.
func withContextPrefix(content any, ctx *bus.ChannelContext) any {
	header := formatHeader(ctx)
	if header == "" {
		return content
	}
	switch v := content.(type) {
	case string:
		return header + v
	case []protocol.ContentBlock:
		out := make([]protocol.ContentBlock, 0, len(v)+1)
		out = append(out, protocol.TextBlock(header))
		out = append(out, v...)
		return out
	default:
		return content
	}
}
