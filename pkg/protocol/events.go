// Package protocol defines the line-delimited JSON wire format spoken
// between the Channel Manager, the session host, and the agent
// subprocess, plus the CLI-invocation contract for the agent binary.
package protocol

// Frame type discriminators, socket client -> session host.
const (
	FrameTypeUser      = "user"
	FrameTypeInterrupt = "interrupt"
)

// Frame type discriminators, session host -> socket client. Everything
// besides FrameTypeStderr and the host's synthetic agent-exit result
// is a verbatim passthrough of an agent stdout line and is not
// enumerated here.
const (
	FrameTypeResult = "result"
	FrameTypeStderr = "_stderr"
)

// Content block kinds, matching the agent's streaming-JSON content schema.
const (
	ContentKindText  = "text"
	ContentKindImage = "image"
)

// ContentBlock is one element of a structured message body. Block
// content never participates in coalescing, even when every block is
// Kind == ContentKindText; only plain-string message content does.
type ContentBlock struct {
	Kind string `json:"type"`

	// Text holds the block's text when Kind == ContentKindText.
	Text string `json:"text,omitempty"`

	// Source holds an inline image (media type and base64 data) when
	// Kind == ContentKindImage, framed to match the
	// agent's {type:"image", source:{type:"base64", media_type, data}}
	// content-block schema.
	Source *ImageSource `json:"source,omitempty"`
}

// ImageSource is the base64-inline image payload carried by an image
// content block.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// TextBlock builds a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Kind: ContentKindText, Text: text}
}

// ImageBlock builds a base64-inline image content block.
func ImageBlock(mediaType, base64Data string) ContentBlock {
	return ContentBlock{
		Kind: ContentKindImage,
		Source: &ImageSource{
			Type:      "base64",
			MediaType: mediaType,
			Data:      base64Data,
		},
	}
}

// Message is the user-turn payload carried by a UserFrame.
type Message struct {
	Role string `json:"role"`

	// Content is either a plain string or a []ContentBlock, marshalled
	// as-is by json.Marshal. StringContent and BlockContent wrap each
	// shape; NewUserFrame accepts the value directly.
	Content any `json:"content"`
}

// StringContent wraps plain text as Message.Content.
func StringContent(text string) any { return text }

// BlockContent wraps a content-block sequence as Message.Content.
func BlockContent(blocks []ContentBlock) any { return blocks }

// UserFrame is the client-to-host frame carrying one inbound turn.
type UserFrame struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
}

// NewUserFrame builds a UserFrame with Type already set.
func NewUserFrame(content any) UserFrame {
	return UserFrame{Type: FrameTypeUser, Message: Message{Role: "user", Content: content}}
}

// InterruptFrame is the client-to-host frame requesting the host
// forward an interrupt signal to the agent. Optional per spec; hosts
// may treat it as a no-op.
type InterruptFrame struct {
	Type string `json:"type"`
}

// NewInterruptFrame builds an InterruptFrame with Type already set.
func NewInterruptFrame() InterruptFrame {
	return InterruptFrame{Type: FrameTypeInterrupt}
}

// ResultEvent is the host-to-client frame terminating one dispatch.
// Agent-emitted result lines and the host's synthetic agent-exit
// result both take this shape.
type ResultEvent struct {
	Type       string `json:"type"`
	SessionID  string `json:"session_id,omitempty"`
	Text       string `json:"text"`
	IsError    bool   `json:"is_error,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// StderrEvent is the internal frame mirroring a truncated agent
// stderr line to the connected client. Never surfaced to onEvent as a
// semantic event by the Channel Manager.
type StderrEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewStderrEvent builds a StderrEvent with Type already set.
func NewStderrEvent(text string) StderrEvent {
	return StderrEvent{Type: FrameTypeStderr, Text: text}
}

// MaxStderrMirrorBytes bounds the stderr text mirrored to clients.
const MaxStderrMirrorBytes = 500
