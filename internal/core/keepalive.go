package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultKeepaliveInterval is the time between probe rounds and the time a
// probe may stay unanswered.
const DefaultKeepaliveInterval = 30 * time.Second

// Keepalive probes every open connection on a fixed interval. A probe that
// fails or stays unanswered for one interval terminates the client, which
// triggers the same cleanup as an explicit leave. A client still pending at
// the next round is terminated as well, for transports that ignore the probe
// deadline. A connection that dies right after a round is therefore evicted
// at most two intervals later.
type Keepalive struct {
	interval time.Duration
	clients  func() []*Client
	log      *zerolog.Logger
}

// NewKeepalive builds a supervisor over the clients returned by clients.
func NewKeepalive(interval time.Duration, clients func() []*Client, logger *zerolog.Logger) *Keepalive {
	if interval <= 0 {
		interval = DefaultKeepaliveInterval
	}
	return &Keepalive{interval: interval, clients: clients, log: orNop(logger)}
}

// Run sweeps until ctx is canceled.
func (k *Keepalive) Run(ctx context.Context) {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.Sweep(ctx)
		}
	}
}

// Sweep runs one probe round and returns the clients it terminated.
func (k *Keepalive) Sweep(ctx context.Context) []*Client {
	var evicted []*Client
	for _, c := range k.clients() {
		// Swap marks the client pending and tells us whether it already was.
		if c.awaitingPong.Swap(true) {
			k.log.Info().Str("client_id", c.ID).Msg("keepalive timeout, terminating connection")
			c.Close(CloseReasonKeepalive)
			evicted = append(evicted, c)
			continue
		}
		go k.probe(ctx, c)
	}
	return evicted
}

func (k *Keepalive) probe(ctx context.Context, c *Client) {
	pctx, cancel := context.WithTimeout(ctx, k.interval)
	defer cancel()

	if err := c.transport.Ping(pctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		k.log.Info().Err(err).Str("client_id", c.ID).Msg("keepalive probe unanswered, terminating connection")
		c.Close(CloseReasonKeepalive)
		return
	}
	c.MarkAlive()
}
