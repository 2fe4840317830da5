package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/streamlink/chatcore/internal/proto"
)

// frame mirrors proto.Outbound with the payload left raw for per-type decoding.
type frame struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Code      string          `json:"code"`
	Error     string          `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "cli-user", "display name")
	userID := flag.Int64("id", 0, "account id (0 joins as guest)")
	role := flag.String("role", "user", "role: admin, engineer or user")
	session := flag.String("session", "demo", "session to join")
	listen := flag.Bool("listen", false, "register as notification listener instead of joining")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	var id *int64
	if *userID > 0 {
		id = userID
	}

	first := proto.Inbound{Type: proto.InboundTypeJoin, SessionID: *session, UserID: id, Username: *user, Role: *role}
	if *listen {
		first = proto.Inbound{Type: proto.InboundTypeListener, UserID: id, Username: *user, Role: *role}
	}
	if err := wsjson.Write(ctx, conn, first); err != nil {
		return fmt.Errorf("send %s: %w", first.Type, err)
	}

	fmt.Printf("Connected to %s as %s (%s)\n", *addr, *user, *role)
	if !*listen {
		fmt.Printf("Joined session %s. Type a message and press Enter; /bcast <text> or /to <id> <text> pick a kind. Ctrl+C to exit.\n", *session)
	}

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	if !*listen {
		writeLoop(ctx, conn, *session)
	} else {
		<-ctx.Done()
	}

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		switch f.Type {
		case proto.OutboundTypeHistory:
			var messages []proto.MessageView
			if decode(f, &messages) {
				fmt.Printf("-- %d earlier messages --\n", len(messages))
				for _, m := range messages {
					printMessage(m)
				}
			}
		case proto.OutboundTypeNewMessage:
			var m proto.MessageView
			if decode(f, &m) {
				printMessage(m)
			}
		case proto.OutboundTypeParticipants:
			var roster []proto.ParticipantView
			if decode(f, &roster) {
				names := make([]string, 0, len(roster))
				for _, p := range roster {
					state := "offline"
					if p.IsOnline {
						state = "online"
					}
					names = append(names, fmt.Sprintf("%s(%s)", p.Username, state))
				}
				fmt.Printf("[session %s] participants: %s\n", f.SessionID, strings.Join(names, ", "))
			}
		case proto.OutboundTypeListenerReady:
			fmt.Println("listening for notifications from all sessions")
		case proto.OutboundTypeNotification:
			var n proto.Notification
			if decode(f, &n) {
				fmt.Printf("[notify %s] %s: %s\n", n.SessionID, n.Message.SenderName, n.Message.Content)
			}
		case proto.OutboundTypeError:
			fmt.Printf("error (%s): %s\n", f.Code, f.Error)
		default:
			fmt.Printf("type=%s data=%s\n", f.Type, f.Data)
		}
	}
}

func decode(f frame, v any) bool {
	if err := json.Unmarshal(f.Data, v); err != nil {
		log.Printf("unmarshal %s: %v", f.Type, err)
		return false
	}
	return true
}

func printMessage(m proto.MessageView) {
	prefix := m.MessageType
	if m.RecipientID != nil {
		prefix += " to " + strconv.FormatInt(*m.RecipientID, 10)
	}
	fmt.Printf("[%s] %s (%s): %s\n", prefix, m.SenderName, m.SenderRole, m.Content)
}

// parseLine maps a typed line to a message frame.
func parseLine(session, line string) (proto.Inbound, error) {
	in := proto.Inbound{Type: proto.InboundTypeMessage, SessionID: session, Content: line}

	switch {
	case strings.HasPrefix(line, "/bcast "):
		in.MessageType = "broadcast"
		in.Content = strings.TrimPrefix(line, "/bcast ")
	case strings.HasPrefix(line, "/to "):
		rest := strings.TrimPrefix(line, "/to ")
		target, text, ok := strings.Cut(rest, " ")
		if !ok {
			return in, errors.New("usage: /to <id> <text>")
		}
		id, err := strconv.ParseInt(target, 10, 64)
		if err != nil {
			return in, fmt.Errorf("invalid recipient id %q", target)
		}
		in.MessageType = "individual"
		in.RecipientID = &id
		in.Content = text
	}
	return in, nil
}

func writeLoop(ctx context.Context, conn *websocket.Conn, session string) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			in, err := parseLine(session, text)
			if err != nil {
				fmt.Println(err)
				continue
			}
			if err := wsjson.Write(ctx, conn, in); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
