package channel

import (
	"context"

	"github.com/glowvn/glowchat/internal/bus"
)

// Channel is a chat surface the gateway receives from and replies to.
// Send delivers a whole message; SendEvent delivers one step of a paced
// reply (typing indicator, chunk, completion, error).
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Send(msg bus.OutboundMessage) error
	SendEvent(ev bus.StreamEvent) error
}

// BaseChannel carries the fields every channel shares.
type BaseChannel struct {
	name      string
	bus       *bus.MessageBus
	allowFrom []string
}

func NewBaseChannel(name string, b *bus.MessageBus, allowFrom []string) BaseChannel {
	return BaseChannel{name: name, bus: b, allowFrom: allowFrom}
}

func (c *BaseChannel) Name() string { return c.name }

// IsAllowed reports whether the sender passes the allowlist. An empty
// allowlist admits everyone.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowFrom) == 0 {
		return true
	}
	for _, id := range c.allowFrom {
		if id == senderID {
			return true
		}
	}
	return false
}
