package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiredoc-server/internal/auth"
	"github.com/vovakirdan/wiredoc-server/internal/config"
	"github.com/vovakirdan/wiredoc-server/internal/core"
	"github.com/vovakirdan/wiredoc-server/internal/documents"
	"github.com/vovakirdan/wiredoc-server/internal/proto"
	"github.com/vovakirdan/wiredoc-server/internal/store/sqlite"
)

type testEnv struct {
	server  *httptest.Server
	handler stdhttp.Handler
	auth    *auth.Service
	hub     *core.Hub
	stopHub context.CancelFunc
	cfg     config.Config
}

// newTestEnv starts a hub and an httptest server backed by in-memory SQLite.
func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.Storage = config.StorageSQLite
	cfg.DatabasePath = ":memory:"
	cfg.JWTSecret = "test-secret"
	cfg.JWTIssuer = "test"
	cfg.JWTAudience = "test"
	cfg.RateLimitPerMinute = 0
	for _, fn := range mutate {
		fn(&cfg)
	}

	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	})

	logger := zerolog.Nop()
	hub := core.NewHub(&logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := NewServer(hub, authService, documents.NewService(st), &cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)
	t.Cleanup(cancel)

	return &testEnv{
		server:  ts,
		handler: server.Handler,
		auth:    authService,
		hub:     hub,
		stopHub: cancel,
		cfg:     cfg,
	}
}

func (e *testEnv) register(t *testing.T, username string) string {
	t.Helper()

	token, err := e.auth.Register(context.Background(), username, "password123")
	if err != nil {
		t.Fatalf("failed to register %s: %v", username, err)
	}
	return token
}

// do runs a request through the router without a network round trip.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	header := ""
	if token != "" {
		header = "Bearer " + token
	}
	return e.doWithHeader(t, method, path, header, body)
}

func (e *testEnv) doWithHeader(t *testing.T, method, path, authorization string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) wsURL(query string) string {
	u := strings.Replace(e.server.URL, "http", "ws", 1) + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

func (e *testEnv) dial(t *testing.T, ctx context.Context, query string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, e.wsURL(query), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

// waitStats polls the hub until cond holds.
func (e *testEnv) waitStats(t *testing.T, cond func(core.Stats) bool) core.Stats {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for {
		stats, err := e.hub.Stats(context.Background())
		if err != nil {
			t.Fatalf("stats: %v", err)
		}
		if cond(stats) {
			return stats
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for hub stats, last: %+v", stats)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

type outboundFrame struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) outboundFrame {
	t.Helper()

	var frame outboundFrame
	if err := wsjson.Read(ctx, conn, &frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

func expectFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, into any) outboundFrame {
	t.Helper()

	frame := readFrame(t, ctx, conn)
	if frame.Type != typ {
		t.Fatalf("expected %q frame, got %q (data=%s error=%+v)", typ, frame.Type, frame.Data, frame.Error)
	}
	if into != nil {
		if err := json.Unmarshal(frame.Data, into); err != nil {
			t.Fatalf("unmarshal %s data: %v", typ, err)
		}
	}
	return frame
}

func join(t *testing.T, ctx context.Context, conn *websocket.Conn, documentID string) {
	t.Helper()

	send(t, ctx, conn, proto.InboundTypeJoinDocument, documentID)
	var ack proto.EventDocumentMembership
	expectFrame(t, ctx, conn, proto.OutboundTypeDocumentJoined, &ack)
	if ack.DocumentID != documentID {
		t.Fatalf("joined %q, want %q", ack.DocumentID, documentID)
	}
}
