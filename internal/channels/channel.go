// Package channels provides the shared transport-adapter abstraction.
// Adapters derive a channel key from their protocol's natural session
// boundary, call the Channel Manager's Send, and optionally register
// an outbound push handler — nothing more (spec §2, §4.1).
package channels

import (
	"context"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Adapter is the interface every transport adapter satisfies.
type Adapter interface {
	// Name identifies the adapter (e.g. "telegram", "http").
	Name() string

	// Start begins listening for inbound traffic. Must return once
	// setup completes; long-running work happens in its own goroutine.
	Start(ctx context.Context) error

	// Stop gracefully shuts the adapter down.
	Stop(ctx context.Context) error

	// IsRunning reports whether the adapter is actively processing.
	IsRunning() bool
}

// Truncate shortens s to maxLen terminal display columns, appending
// "..." if truncated. Uses display width rather than byte or rune
// count so CJK and other wide characters don't overflow a chat
// client's rendered width.
func Truncate(s string, maxLen int) string {
	if runewidth.StringWidth(s) <= maxLen {
		return s
	}
	return runewidth.Truncate(s, maxLen-3, "") + "..."
}

// AllowList is a simple membership check shared by adapters that gate
// senders by ID or @username.
type AllowList []string

// IsAllowed reports whether senderID is permitted. An empty allow
// list permits everyone.
func (a AllowList) IsAllowed(senderID string) bool {
	if len(a) == 0 {
		return true
	}
	for _, allowed := range a {
		if senderID == strings.TrimPrefix(allowed, "@") {
			return true
		}
	}
	return false
}
