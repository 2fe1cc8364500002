// Package push implements the Push Registry: an ordered prefix-keyed
// lookup table of outbound-message handlers supplied by transport
// adapters at startup. It is the bypass path for notifications from
// scheduled jobs or from the agent itself, and has no knowledge of
// the Channel Manager's dispatch or session-record state (spec P7).
package push

import (
	"sync"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
)

// Handler delivers a push to the transport-native recipient for
// channel. Returns an error if delivery failed.
type Handler func(channel, text string, media *bus.MediaAttachment) error

// entry pairs a prefix with its current handler. Registry.entries
// keeps entries in the order each prefix was first registered, so
// Send's prefix match is deterministic.
type entry struct {
	prefix  string
	handler Handler
}

// Registry is the Push Registry.
type Registry struct {
	mu      sync.RWMutex
	entries []*entry
	byPrefix map[string]*entry
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byPrefix: make(map[string]*entry)}
}

// Register adds a handler for prefix. Last writer wins per prefix;
// registering an existing prefix again replaces its handler in place
// without changing its position in iteration order.
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.byPrefix[prefix]; ok {
		e.handler = handler
		return
	}
	e := &entry{prefix: prefix, handler: handler}
	r.byPrefix[prefix] = e
	r.entries = append(r.entries, e)
}

// Send dispatches to the first registered handler whose prefix is a
// leading substring of channel, returning whether a handler matched
// and accepted delivery. No entry matching returns false; callers map
// that to a 404 equivalent.
func (r *Registry) Send(channel, text string, media *bus.MediaAttachment) (bool, error) {
	r.mu.RLock()
	var match *entry
	for _, e := range r.entries {
		if len(channel) >= len(e.prefix) && channel[:len(e.prefix)] == e.prefix {
			match = e
			break
		}
	}
	r.mu.RUnlock()

	if match == nil {
		return false, nil
	}
	if err := match.handler(channel, text, media); err != nil {
		return false, err
	}
	return true, nil
}
