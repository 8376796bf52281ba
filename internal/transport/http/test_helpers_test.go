package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/studyhub-server/internal/auth"
	"github.com/vovakirdan/studyhub-server/internal/config"
	"github.com/vovakirdan/studyhub-server/internal/core"
	"github.com/vovakirdan/studyhub-server/internal/proto"
	"github.com/vovakirdan/studyhub-server/internal/service/calls"
	"github.com/vovakirdan/studyhub-server/internal/service/friends"
	"github.com/vovakirdan/studyhub-server/internal/service/messages"
	"github.com/vovakirdan/studyhub-server/internal/store/sqlite"
)

type testServer struct {
	*httptest.Server
	store *sqlite.SQLiteStore
	auth  *auth.Service
	hub   *core.Hub
}

// startTestServer builds the full router on an in-memory store. mutate may
// adjust the config before the server is built.
func startTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.JWTSecret = "test-secret"
	cfg.JWTIssuer = "test"
	cfg.JWTAudience = "test"
	cfg.UploadDir = t.TempDir()
	if mutate != nil {
		mutate(&cfg)
	}

	logger := zerolog.Nop()
	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      time.Hour,
	})

	members := core.NewMemberCache(st, cfg.MembershipCacheTTL)
	fanout := core.NewFanout(core.NewRegistry(), members, st, st, &logger)
	msgService := messages.New(st, fanout, &logger)

	var tokens core.TokenVerifier
	if cfg.RequireWSToken {
		tokens = authService
	}
	hub := core.NewHub(fanout, msgService, tokens, &logger)

	server := NewServer(Deps{
		Hub:      hub,
		Members:  members,
		Auth:     authService,
		Messages: msgService,
		Friends:  friends.New(st),
		Calls:    calls.New(st, nil),
		Store:    st,
	}, &cfg, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testServer{Server: ts, store: st, auth: authService, hub: hub}
}

// register creates a user through the API and returns its token and id.
func (s *testServer) register(t *testing.T, username string) (string, int64) {
	t.Helper()

	var resp AuthResponse
	status := s.doJSON(t, http.MethodPost, "/api/register", "", map[string]string{
		"username": username,
		"password": "secret123",
	}, &resp)
	if status != http.StatusCreated {
		t.Fatalf("register %s: status %d", username, status)
	}
	if resp.Token == "" || resp.User.ID == 0 {
		t.Fatalf("register %s: empty response %+v", username, resp)
	}
	return resp.Token, resp.User.ID
}

// doJSON sends body as JSON and decodes the response into out when non-nil.
func (s *testServer) doJSON(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (s *testServer) dial(ctx context.Context, t *testing.T) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(s.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

// connect dials and authenticates as userID.
func (s *testServer) connect(ctx context.Context, t *testing.T, userID int64, token string) *websocket.Conn {
	t.Helper()

	conn := s.dial(ctx, t)
	send(ctx, t, conn, proto.Inbound{Type: proto.InboundTypeAuthenticate, UserID: userID, Token: token})
	ev := mustRead(ctx, t, conn, "authenticated")
	if ev.UserID != userID {
		t.Fatalf("authenticated as %d, want %d", ev.UserID, userID)
	}
	return conn
}

func send(ctx context.Context, t *testing.T, conn *websocket.Conn, in proto.Inbound) {
	t.Helper()
	if err := wsjson.Write(ctx, conn, in); err != nil {
		t.Fatalf("write %s: %v", in.Type, err)
	}
}

func nextFrame(ctx context.Context, t *testing.T, conn *websocket.Conn) proto.Outbound {
	t.Helper()

	rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	var out proto.Outbound
	if err := wsjson.Read(rctx, conn, &out); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return out
}

// mustRead reads frames until one of the wanted type arrives.
func mustRead(ctx context.Context, t *testing.T, conn *websocket.Conn, typ string) proto.Outbound {
	t.Helper()

	rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	for {
		var out proto.Outbound
		if err := wsjson.Read(rctx, conn, &out); err != nil {
			t.Fatalf("waiting for %q: %v", typ, err)
		}
		if out.Type == typ {
			return out
		}
	}
}

func int64p(v int64) *int64 { return &v }

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
