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
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-lite/internal/proto"
)

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "cli-user", "username")
	secret := flag.String("secret", "", "password")
	register := flag.Bool("register", false, "create the account instead of logging in")
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

	action := proto.InboundTypeLogin
	var data any = proto.LoginData{Username: *user, Secret: *secret, Protocol: proto.ProtocolVersion}
	if *register {
		action = proto.InboundTypeRegister
		data = proto.RegisterData{Username: *user, Secret: *secret, Protocol: proto.ProtocolVersion}
	}
	if err := send(ctx, conn, action, data); err != nil {
		return err
	}

	fmt.Printf("Connected to %s as %s\n", *addr, *user)
	fmt.Println("Type messages and press Enter to send. /quit to log out, Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, conn)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var env envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				fmt.Println("* disconnected")
				return
			}
			log.Printf("read error: %v", err)
			return
		}
		render(env)
	}
}

func render(env envelope) {
	switch env.Type {
	case proto.OutboundTypeChat:
		var msg proto.ChatMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			log.Printf("unmarshal chat: %v", err)
			return
		}
		fmt.Printf("[%s] %s: %s\n", time.UnixMilli(msg.TS).Format("15:04"), msg.Sender, msg.Text)
	case proto.OutboundTypeRoster:
		var roster proto.Roster
		if err := json.Unmarshal(env.Data, &roster); err != nil {
			log.Printf("unmarshal roster: %v", err)
			return
		}
		fmt.Printf("* online: %s\n", strings.Join(roster.Users, ", "))
	case proto.OutboundTypeAuthAccepted:
		var accepted proto.AuthAccepted
		if err := json.Unmarshal(env.Data, &accepted); err != nil {
			log.Printf("unmarshal auth_accepted: %v", err)
			return
		}
		fmt.Printf("* logged in as %s\n", accepted.Username)
	case proto.OutboundTypeAuthRejected:
		var rejected proto.AuthRejected
		if err := json.Unmarshal(env.Data, &rejected); err != nil {
			log.Printf("unmarshal auth_rejected: %v", err)
			return
		}
		fmt.Printf("* rejected (%s): %s\n", rejected.Reason, rejected.Message)
	case proto.OutboundTypeNotice:
		var notice proto.Notice
		if err := json.Unmarshal(env.Data, &notice); err != nil {
			log.Printf("unmarshal notice: %v", err)
			return
		}
		fmt.Printf("* %s\n", notice.Text)
	default:
		fmt.Printf("type=%s data=%s\n", env.Type, env.Data)
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn) {
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
			if text == "/quit" {
				_ = wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeLogout})
				return
			}
			if err := send(ctx, conn, proto.InboundTypeChat, proto.ChatData{Text: text}); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
