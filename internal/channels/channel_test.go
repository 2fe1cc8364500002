package channels

import "testing"

func TestTruncate_UnderLimitUnchanged(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("Truncate() = %q, want unchanged", got)
	}
}

func TestTruncate_OverLimitGetsEllipsis(t *testing.T) {
	got := Truncate("hello world", 8)
	if got != "hello..." {
		t.Errorf("Truncate() = %q, want %q", got, "hello...")
	}
}

func TestTruncate_WideRunesCountByDisplayWidth(t *testing.T) {
	// Each CJK character occupies two display columns; three of them
	// already exceed a limit of 5 by display width even though the
	// string is only three runes long.
	got := Truncate("世界世", 5)
	if got == "世界世" {
		t.Errorf("Truncate() did not shorten a wide-rune string over the limit")
	}
}

func TestAllowList_EmptyPermitsEveryone(t *testing.T) {
	var list AllowList
	if !list.IsAllowed("anyone") {
		t.Error("expected empty allow list to permit everyone")
	}
}

func TestAllowList_MatchesWithAndWithoutAtPrefix(t *testing.T) {
	list := AllowList{"@alice", "bob"}
	if !list.IsAllowed("alice") {
		t.Error("expected alice to be allowed (stored with @ prefix)")
	}
	if !list.IsAllowed("bob") {
		t.Error("expected bob to be allowed")
	}
	if list.IsAllowed("carol") {
		t.Error("expected carol to be denied")
	}
}
