package sessions

import "testing"

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"alnum passthrough", "tg-123_abc.45", "tg-123_abc.45"},
		{"spaces become underscores", "http channel", "http_channel"},
		{"slashes become underscores", "a/b/c", "a_b_c"},
		{"empty", "", ""},
		{"unicode", "café", "caf_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeKey(tt.in); got != tt.want {
				t.Errorf("sanitizeKey(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
