package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/studyhub-server/internal/log"
	"github.com/vovakirdan/studyhub-server/internal/proto"
)

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID int64 `json:"id"`
	} `json:"user"`
}

func main() {
	logger := log.New("info")
	if err := run(); err != nil {
		logger.Error().Err(err).Msg("ws_smoke failed")
		os.Exit(1)
	}
}

func run() error {
	api := flag.String("api", "http://localhost:8080", "REST base URL")
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "tester", "username (registered on first run)")
	password := flag.String("password", "tester123", "password")
	roomID := flag.Int64("room", 0, "room id to post into; 0 creates a new room")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	logger := log.New("debug")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	creds := map[string]string{"username": *user, "password": *password}
	var auth authResponse
	if err := postJSON(ctx, *api+"/api/login", "", creds, &auth); err != nil {
		if err := postJSON(ctx, *api+"/api/register", "", creds, &auth); err != nil {
			return fmt.Errorf("login or register: %w", err)
		}
	}
	logger.Info().Int64("user_id", auth.User.ID).Msg("authenticated over REST")

	if *roomID == 0 {
		var room struct {
			ID int64 `json:"id"`
		}
		name := fmt.Sprintf("smoke-%d", time.Now().Unix())
		if err := postJSON(ctx, *api+"/api/rooms", auth.Token, map[string]string{"name": name}, &room); err != nil {
			return fmt.Errorf("create room: %w", err)
		}
		*roomID = room.ID
		logger.Info().Int64("room_id", room.ID).Str("name", name).Msg("room created")
	}

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	frames := []proto.Inbound{
		{Type: proto.InboundTypeAuthenticate, UserID: auth.User.ID, Token: auth.Token},
		{Type: proto.InboundTypeJoinRoom, RoomID: roomID},
		{Type: proto.InboundTypeMessage, RoomID: roomID, Content: *text},
	}
	for _, f := range frames {
		if err := wsjson.Write(ctx, conn, f); err != nil {
			return fmt.Errorf("send %s: %w", f.Type, err)
		}
	}

	for {
		var out proto.Outbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		ev := logger.Info().Str("type", out.Type)
		switch out.Type {
		case proto.OutboundTypeError:
			return fmt.Errorf("server error %s: %s", out.Error.Code, out.Error.Msg)
		case "new_message", "message_sent":
			ev.Int64("message_id", out.Data.ID).Str("content", out.Data.Content).Str("status", out.Data.Status).Msg("received")
			if out.Type == "message_sent" {
				return nil
			}
		default:
			ev.Int64("user_id", out.UserID).Int64("room_id", out.RoomID).Msg("received")
		}
	}
}

func postJSON(ctx context.Context, url, token string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
