package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
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
		log.Fatalf("ws_smoke: %v", err)
	}
	fmt.Println("smoke test passed")
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "tester", "username")
	secret := flag.String("secret", "tester-secret", "password")
	register := flag.Bool("register", true, "register the account first; falls back to login when it exists")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(typ string, data any) error {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
			return fmt.Errorf("send %s: %w", typ, err)
		}
		return nil
	}

	if *register {
		err = send(proto.InboundTypeRegister, proto.RegisterData{Username: *user, Secret: *secret})
	} else {
		err = send(proto.InboundTypeLogin, proto.LoginData{Username: *user, Secret: *secret})
	}
	if err != nil {
		return err
	}

	sentChat := false
	for {
		var env envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		fmt.Printf("Received: type=%s data=%s\n", env.Type, env.Data)

		switch env.Type {
		case proto.OutboundTypeAuthRejected:
			var rejected proto.AuthRejected
			if err := json.Unmarshal(env.Data, &rejected); err != nil {
				return fmt.Errorf("unmarshal auth_rejected: %w", err)
			}
			if rejected.Reason != "username_taken" {
				return fmt.Errorf("rejected: %s", rejected.Message)
			}
			if err := send(proto.InboundTypeLogin, proto.LoginData{Username: *user, Secret: *secret}); err != nil {
				return err
			}
		case proto.OutboundTypeRoster:
			if sentChat {
				continue
			}
			if err := send(proto.InboundTypeChat, proto.ChatData{Text: *text}); err != nil {
				return err
			}
			sentChat = true
		case proto.OutboundTypeChat:
			var msg proto.ChatMessage
			if err := json.Unmarshal(env.Data, &msg); err != nil {
				return fmt.Errorf("unmarshal chat: %w", err)
			}
			if msg.Sender == *user && msg.Text == *text {
				return send(proto.InboundTypeLogout, proto.LogoutData{})
			}
		case proto.OutboundTypeNotice:
			var notice proto.Notice
			if err := json.Unmarshal(env.Data, &notice); err == nil {
				return errors.New("notice: " + notice.Text)
			}
		}
	}
}
