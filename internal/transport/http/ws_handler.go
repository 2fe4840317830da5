package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/streamlink/chatcore/internal/config"
	"github.com/streamlink/chatcore/internal/core"
	"github.com/streamlink/chatcore/internal/proto"
	"github.com/streamlink/chatcore/internal/utils"
)

// StatusSessionReplaced closes a connection superseded by a newer one of the same identity.
const StatusSessionReplaced websocket.StatusCode = 4001

const writeTimeout = 10 * time.Second

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub *core.Hub
	cfg *config.Config
	log *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, cfg: cfg, log: logger}
}

// wsTransport lets the core probe and terminate the connection.
type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) Ping(ctx context.Context) error {
	return t.conn.Ping(ctx)
}

// Close runs the close handshake in the background so hub callers never
// wait on a slow peer.
func (t *wsTransport) Close(reason string) error {
	go func() {
		_ = t.conn.Close(closeStatus(reason), reason)
	}()
	return nil
}

func closeStatus(reason string) websocket.StatusCode {
	switch reason {
	case core.CloseReasonReplaced:
		return StatusSessionReplaced
	case core.CloseReasonKeepalive:
		return websocket.StatusPolicyViolation
	case core.CloseReasonShutdown:
		return websocket.StatusGoingAway
	default:
		return websocket.StatusNormalClosure
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	opts := &websocket.AcceptOptions{InsecureSkipVerify: len(h.cfg.AllowedOrigins) == 0}
	if !opts.InsecureSkipVerify {
		opts.OriginPatterns = h.cfg.AllowedOrigins
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	client := core.NewClient(utils.NewID(), &wsTransport{conn: conn}, h.cfg.SendBuffer)
	h.hub.Attach(client)
	defer h.hub.Detach(client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := core.CloseReasonNormal
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Debug().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.cfg.RateLimitPerMinute)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			h.reject(client, core.ErrCodeMalformedMessage, "text frames only")
			continue
		}
		if !limiter.allow() {
			h.reject(client, core.ErrCodeRateLimited, "rate limit exceeded")
			continue
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			h.reject(client, core.ErrCodeMalformedMessage, "invalid json")
			continue
		}
		if err := proto.Validate(inbound); err != nil {
			h.reject(client, core.ErrCodeMalformedMessage, err.Error())
			continue
		}

		cmd, coreErr := inboundToCommand(inbound)
		if coreErr != nil {
			client.Send(&core.Event{Kind: core.EventError, Error: coreErr})
			continue
		}

		select {
		case client.Commands <- cmd:
		case <-client.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) reject(client *core.Client, code, reason string) {
	h.log.Debug().Str("client_id", client.ID).Str("code", code).Msg(reason)
	client.Send(&core.Event{Kind: core.EventError, Error: &core.CoreError{Code: code, Message: reason}})
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event := <-client.Events:
			if event == nil {
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, outboundFromEvent(event))
			cancel()
			if err != nil {
				h.log.Debug().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-client.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
