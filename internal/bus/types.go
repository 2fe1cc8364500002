// Package bus holds the small set of message and event types shared
// across transport adapters, the gateway HTTP/WS surface, and the
// Channel Manager. It carries no routing logic of its own.
package bus

// ChannelContext is the optional per-message context an adapter may
// supply alongside content. The Channel Manager renders it into a
// single bracketed header line prepended to the dispatched content.
type ChannelContext struct {
	Channel   string `json:"channel"`
	Adapter   string `json:"adapter"`
	UserName  string `json:"user_name,omitempty"`
	ChatTitle string `json:"chat_title,omitempty"`
	TopicName string `json:"topic_name,omitempty"`
}

// MediaAttachment describes a media file accompanying an outbound push.
type MediaAttachment struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	Caption     string `json:"caption,omitempty"`
}

// Event is a server-side notification broadcast to WebSocket clients
// of the gateway transport adapter (e.g. health, heartbeat). It is
// unrelated to the agent's own streamed dispatch events.
type Event struct {
	Name    string `json:"name"`
	Payload any    `json:"payload,omitempty"`
}

// Gateway broadcast event names.
const (
	EventHealth    = "health"
	EventHeartbeat = "heartbeat"
)

// EventHandler handles a broadcast Event.
type EventHandler func(Event)

// EventPublisher abstracts event broadcast + subscription, decoupling
// the gateway's WebSocket hub from its callers.
type EventPublisher interface {
	Subscribe(id string, handler EventHandler)
	Unsubscribe(id string)
	Broadcast(event Event)
}
