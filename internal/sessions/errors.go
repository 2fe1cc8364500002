package sessions

import "errors"

// ErrHostUnreachable is returned when a fresh session host cannot be
// established within the spawn deadline.
var ErrHostUnreachable = errors.New("sessions: host unreachable")

// ErrChannelDisconnected is returned to every queued and in-flight
// future when a channel's host socket closes.
var ErrChannelDisconnected = errors.New("sessions: channel disconnected")
