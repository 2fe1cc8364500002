package sessions

// Result is the outcome of one dispatched send, resolved for the
// caller's future once the corresponding agent turn (or its
// coalesced stand-in) completes.
type Result struct {
	Text       string `json:"text"`
	DurationMs int64  `json:"duration_ms"`
	IsError    bool   `json:"is_error"`
	Coalesced  bool   `json:"coalesced"`
}
