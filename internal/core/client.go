package core

import (
	"context"
	"sync"
	"sync/atomic"
)

// Transport is the live connection handle behind a Client.
type Transport interface {
	// Ping sends a keepalive probe and blocks until it is answered or ctx ends.
	Ping(ctx context.Context) error
	// Close terminates the underlying connection.
	Close(reason string) error
}

// Close reasons passed to Transport.Close.
const (
	CloseReasonNormal    = "closing"
	CloseReasonReplaced  = "session replaced"
	CloseReasonKeepalive = "keepalive timeout"
	CloseReasonShutdown  = "server shutdown"
)

// Client is an open connection as seen by the core layer.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	transport    Transport
	awaitingPong atomic.Bool
	closeOnce    sync.Once
	done         chan struct{}
}

// NewClient constructs a client with initialized channels.
// A nil transport is allowed for in-process clients; it always answers pings.
func NewClient(id string, transport Transport, buffer int) *Client {
	if transport == nil {
		transport = nopTransport{}
	}
	if buffer <= 0 {
		buffer = 8
	}
	return &Client{
		ID:        id,
		Commands:  make(chan *Command, 8),
		Events:    make(chan *Event, buffer),
		transport: transport,
		done:      make(chan struct{}),
	}
}

// Send queues an event without blocking. It returns false when the client is
// closed or its queue is full.
func (c *Client) Send(ev *Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}

// Close terminates the client once. The hub runs cleanup when Done fires.
func (c *Client) Close(reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.transport.Close(reason)
	})
}

// Done is closed after Close.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// MarkAlive records a pong. Transports call it when the peer answers a probe.
func (c *Client) MarkAlive() {
	c.awaitingPong.Store(false)
}

type nopTransport struct{}

func (nopTransport) Ping(context.Context) error { return nil }
func (nopTransport) Close(string) error         { return nil }
