package core

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/streamlink/chatcore/internal/store"
)

// Options tunes the hub. Zero values select the defaults.
type Options struct {
	HistoryLimit      int
	KeepaliveInterval time.Duration
}

// SessionSummary describes one live session.
type SessionSummary struct {
	Session     string
	Connections int
}

// Hub coordinates clients, sessions and listeners. Each registered client is
// served by its own goroutine that processes commands in arrival order; all
// cross-client state lives in the Registry and Listeners.
type Hub struct {
	registry  *Registry
	presence  *Presence
	router    *Router
	listeners *Listeners
	keepalive *Keepalive
	store     store.ChatStore
	log       *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	clients map[*Client]struct{}
	stopped bool
	wg      sync.WaitGroup
}

// NewHub creates a new chat hub instance. A nil store disables persistence.
func NewHub(st store.ChatStore, logger *zerolog.Logger, opts Options) *Hub {
	if st == nil {
		st = nopStore{}
	}
	logger = orNop(logger)

	registry := NewRegistry()
	listeners := NewListeners(logger)
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		registry:  registry,
		presence:  NewPresence(registry, st, logger, opts.HistoryLimit),
		router:    NewRouter(registry, st, listeners, logger),
		listeners: listeners,
		store:     st,
		log:       logger,
		ctx:       ctx,
		cancel:    cancel,
		clients:   make(map[*Client]struct{}),
	}
	h.keepalive = NewKeepalive(opts.KeepaliveInterval, h.openClients, logger)
	return h
}

// Run supervises keepalive until ctx is canceled, then closes every client
// and waits for their cleanup to finish.
func (h *Hub) Run(ctx context.Context) {
	h.keepalive.Run(ctx)

	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()

	for _, c := range h.openClients() {
		c.Close(CloseReasonShutdown)
	}
	h.wg.Wait()
	h.cancel()
}

// Attach registers an open connection and starts serving its commands.
// After shutdown the connection is closed instead.
func (h *Hub) Attach(c *Client) {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		c.Close(CloseReasonShutdown)
		return
	}
	h.clients[c] = struct{}{}
	h.wg.Add(1)
	h.mu.Unlock()

	go h.serve(c)
}

// Detach closes the connection. Cleanup runs on the client's goroutine.
func (h *Hub) Detach(c *Client) {
	c.Close(CloseReasonNormal)
}

// Registry exposes the connection registry.
func (h *Hub) Registry() *Registry { return h.registry }

// Keepalive exposes the keepalive supervisor.
func (h *Hub) Keepalive() *Keepalive { return h.keepalive }

// Roster returns the current merged roster of a session without broadcasting.
func (h *Hub) Roster(ctx context.Context, session string) []ParticipantView {
	return h.presence.Roster(ctx, session)
}

// RecentMessages returns persisted messages of a session, oldest first.
func (h *Hub) RecentMessages(ctx context.Context, session string, limit int) ([]Message, error) {
	stored, err := h.store.ListRecentMessages(ctx, session, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Message, 0, len(stored))
	for _, m := range stored {
		out = append(out, messageFromStore(m))
	}
	return out, nil
}

// SystemNotice broadcasts a server-generated message to a session.
func (h *Hub) SystemNotice(session, content string) Message {
	return h.router.Notice(session, content)
}

// Sessions lists sessions that currently have live connections.
func (h *Hub) Sessions() []SessionSummary {
	counts := h.registry.SessionCounts()
	out := make([]SessionSummary, 0, len(counts))
	for session, n := range counts {
		out = append(out, SessionSummary{Session: session, Connections: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Session < out[j].Session })
	return out
}

func orNop(logger *zerolog.Logger) *zerolog.Logger {
	if logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return logger
}

func (h *Hub) openClients() []*Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

func (h *Hub) serve(c *Client) {
	defer h.wg.Done()

	for {
		select {
		case cmd := <-c.Commands:
			if cmd != nil {
				h.dispatch(h.ctx, c, cmd)
			}
		case <-c.Done():
			h.disconnect(h.ctx, c)
			return
		}
	}
}

func (h *Hub) dispatch(ctx context.Context, c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandJoin:
		h.join(ctx, c, cmd)
	case CommandLeave:
		h.leave(ctx, c, cmd)
	case CommandSendMessage:
		_, err := h.router.Route(ctx, c, SendRequest{
			SessionID:   cmd.Session,
			Content:     cmd.Content,
			Kind:        cmd.MessageKind,
			RecipientID: cmd.RecipientID,
		})
		if err != nil {
			h.log.Debug().Str("client_id", c.ID).Str("code", err.Code).Msg("message rejected")
			c.Send(errorEvent(err))
		}
	case CommandListen:
		h.listen(c, cmd)
	default:
		c.Send(errorEvent(coreError(ErrCodeBadRequest, "unknown command")))
	}
}

func (h *Hub) join(ctx context.Context, c *Client, cmd *Command) {
	if cmd.Session == "" || cmd.Identity == nil {
		c.Send(errorEvent(coreError(ErrCodeBadRequest, "sessionId and identity are required")))
		return
	}

	key := NewClientKey(cmd.Identity, cmd.Session)
	entry, evicted, moved := h.registry.Register(key, c, cmd.Identity, cmd.Session)
	if evicted != nil {
		h.log.Info().Str("session_id", cmd.Session).Str("client_id", evicted.Client.ID).Msg("replacing prior connection for same identity")
		evicted.Client.Close(CloseReasonReplaced)
	}
	if moved != nil {
		h.depart(ctx, moved)
	}

	h.log.Info().
		Str("session_id", cmd.Session).
		Str("client_id", c.ID).
		Str("username", cmd.Identity.Name()).
		Str("role", string(RoleOf(cmd.Identity))).
		Msg("participant joined")

	h.presence.MarkOnline(ctx, cmd.Session, cmd.Identity)
	h.presence.SendHistory(ctx, entry)
	h.presence.Refresh(ctx, cmd.Session)
}

func (h *Hub) leave(ctx context.Context, c *Client, cmd *Command) {
	entry, ok := h.registry.Lookup(c)
	if !ok {
		// Already cleaned up; leave is idempotent.
		return
	}
	if cmd.Session != "" && entry.Session != cmd.Session {
		c.Send(errorEvent(coreError(ErrCodeNotInSession, ErrNotInSession.Error())))
		return
	}
	if removed, ok := h.registry.Unregister(c); ok {
		h.depart(ctx, removed)
	}
}

func (h *Hub) listen(c *Client, cmd *Command) {
	if cmd.Identity == nil {
		c.Send(errorEvent(coreError(ErrCodeBadRequest, "identity is required")))
		return
	}
	if err := h.listeners.Register(cmd.Identity, c); err != nil {
		c.Send(errorEvent(err))
		return
	}
	c.Send(&Event{Kind: EventListenerReady})
}

// disconnect is the single cleanup path for closed, evicted and timed-out clients.
func (h *Hub) disconnect(ctx context.Context, c *Client) {
	h.listeners.RemoveClient(c)
	if entry, ok := h.registry.Unregister(c); ok {
		h.depart(ctx, entry)
	}

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *Hub) depart(ctx context.Context, entry *Entry) {
	h.log.Info().
		Str("session_id", entry.Session).
		Str("client_id", entry.Client.ID).
		Str("username", entry.Identity.Name()).
		Msg("participant left")

	h.presence.MarkDeparted(ctx, entry)
	h.presence.Refresh(ctx, entry.Session)
}
