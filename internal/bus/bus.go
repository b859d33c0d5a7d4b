// Package bus decouples channels from the message processing pipeline.
// Channels push InboundMessages onto the bus; the gateway consumes them
// and dispatches OutboundMessages and StreamEvents back to whichever
// channel registered for them.
package bus

import "sync"

// OutboundHandler receives messages addressed to a channel.
type OutboundHandler func(msg OutboundMessage)

// StreamHandler receives stream events addressed to a channel.
type StreamHandler func(ev StreamEvent)

// MessageBus routes messages between channels and the gateway.
type MessageBus struct {
	Inbound chan InboundMessage

	mu           sync.RWMutex
	outboundSubs map[string]OutboundHandler
	streamSubs   map[string]StreamHandler
}

// NewMessageBus creates a bus with the given inbound buffer size.
func NewMessageBus(bufferSize int) *MessageBus {
	return &MessageBus{
		Inbound:      make(chan InboundMessage, bufferSize),
		outboundSubs: make(map[string]OutboundHandler),
		streamSubs:   make(map[string]StreamHandler),
	}
}

// SubscribeOutbound registers a handler for outbound messages addressed
// to the named channel. A second subscription replaces the first.
func (b *MessageBus) SubscribeOutbound(channel string, handler OutboundHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outboundSubs[channel] = handler
}

// SubscribeStream registers a handler for stream events addressed to
// the named channel.
func (b *MessageBus) SubscribeStream(channel string, handler StreamHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamSubs[channel] = handler
}

// Dispatch delivers an outbound message to its channel's handler. It is
// a no-op when no handler is registered.
func (b *MessageBus) Dispatch(msg OutboundMessage) {
	b.mu.RLock()
	handler := b.outboundSubs[msg.Channel]
	b.mu.RUnlock()
	if handler != nil {
		handler(msg)
	}
}

// DispatchEvent delivers a stream event to its channel's handler.
func (b *MessageBus) DispatchEvent(ev StreamEvent) {
	b.mu.RLock()
	handler := b.streamSubs[ev.Channel]
	b.mu.RUnlock()
	if handler != nil {
		handler(ev)
	}
}
