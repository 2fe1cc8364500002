package sessions

import "strings"

// sanitizeKey maps a channel key to the filesystem-safe form used in
// socket and PID filenames. Channel keys are opaque to the Channel
// Manager; this is purely a naming convention for paths derived from
// them, not a validation gate.
func sanitizeKey(channel string) string {
	var b strings.Builder
	b.Grow(len(channel))
	for _, r := range channel {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
