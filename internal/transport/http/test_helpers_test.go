package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/streamlink/chatcore/internal/auth"
	"github.com/streamlink/chatcore/internal/config"
	"github.com/streamlink/chatcore/internal/core"
	"github.com/streamlink/chatcore/internal/proto"
	"github.com/streamlink/chatcore/internal/store/sqlite"
)

type testEnv struct {
	server *httptest.Server
	hub    *core.Hub
	auth   *auth.Service
	jwt    *auth.JWTConfig
	store  *sqlite.SQLiteStore
}

// startTestServer runs a hub over an in-memory SQLite store behind the full router.
func startTestServer(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", nil)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := config.Default()
	cfg.JWTSecret = "testsecret"
	if mutate != nil {
		mutate(&cfg)
	}

	hub := core.NewHub(st, nil, core.Options{HistoryLimit: cfg.HistoryLimit, KeepaliveInterval: cfg.KeepaliveInterval})
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	jwtConfig := &auth.JWTConfig{Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer, Audience: cfg.JWTAudience, TTL: time.Hour}
	svc := auth.NewService(jwtConfig)

	ts := httptest.NewServer(NewRouter(hub, svc, &cfg, disabledLogger()))
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-stopped
		_ = st.Close()
	})

	return &testEnv{server: ts, hub: hub, auth: svc, jwt: jwtConfig, store: st}
}

func (e *testEnv) dial(t *testing.T, ctx context.Context) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(e.server.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, in proto.Inbound) {
	t.Helper()
	if err := wsjson.Write(ctx, conn, in); err != nil {
		t.Fatalf("write %s: %v", in.Type, err)
	}
}

// frame is an outbound frame with the payload left raw.
type frame struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Code      string          `json:"code"`
	Error     string          `json:"error"`
}

// readUntil reads frames until one of the given type arrives.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string) frame {
	t.Helper()

	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if f.Type == typ {
			return f
		}
	}
}

// readRoster reads participant lists until ok accepts one.
func readRoster(t *testing.T, ctx context.Context, conn *websocket.Conn, ok func([]proto.ParticipantView) bool) []proto.ParticipantView {
	t.Helper()

	for {
		f := readUntil(t, ctx, conn, proto.OutboundTypeParticipants)
		var roster []proto.ParticipantView
		if err := json.Unmarshal(f.Data, &roster); err != nil {
			t.Fatalf("decode roster: %v", err)
		}
		if ok(roster) {
			return roster
		}
	}
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}

func disabledLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func id(v int64) *int64 { return &v }
