package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"sessionrelay/internal/app"
	"sessionrelay/internal/config"
	"sessionrelay/pkg/types"
)

// relay is a running application bound to a loopback port
type relay struct {
	app     *app.Application
	baseURL string
	wsURL   string
}

func startRelay(t *testing.T, withJournal bool) *relay {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.HTTP.Host = "127.0.0.1"
	if withJournal {
		cfg.Journal.Enabled = true
		cfg.Journal.Path = filepath.Join(t.TempDir(), "journal.db")
	}

	application, err := app.NewApplication(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewApplication failed: %v", err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	if err := application.Serve(context.Background(), listener); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := application.Stop(ctx); err != nil {
			t.Errorf("Stop failed: %v", err)
		}
	})

	addr := application.GetAddr()
	return &relay{
		app:     application,
		baseURL: "http://" + addr,
		wsURL:   "ws://" + addr + "/ws",
	}
}

func (r *relay) post(t *testing.T, path string, body any) (int, map[string]any) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	resp, err := http.Post(r.baseURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	return decodeResponse(t, resp)
}

func (r *relay) get(t *testing.T, path string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(r.baseURL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	return decodeResponse(t, resp)
}

func decodeResponse(t *testing.T, resp *http.Response) (int, map[string]any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	return resp.StatusCode, body
}

// client is one push-channel peer
type client struct {
	t    *testing.T
	conn *websocket.Conn
}

// frame is an outbound envelope with its payload left raw
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (r *relay) dial(t *testing.T) *client {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(r.wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &client{t: t, conn: conn}
}

func (c *client) signal(name, sessionID string) {
	c.t.Helper()
	if err := c.conn.WriteJSON(types.Signal{Signal: name, SessionID: sessionID}); err != nil {
		c.t.Fatalf("signal %s failed: %v", name, err)
	}
}

func (c *client) next() frame {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var f frame
	if err := c.conn.ReadJSON(&f); err != nil {
		c.t.Fatalf("read failed: %v", err)
	}
	return f
}

func (c *client) expect(event string) frame {
	c.t.Helper()
	f := c.next()
	if f.Event != event {
		c.t.Fatalf("Expected %s, got %s (%s)", event, f.Event, f.Data)
	}
	return f
}

// quiet fails if any frame arrives within d
func (c *client) quiet(d time.Duration) {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(d))
	var f frame
	if err := c.conn.ReadJSON(&f); err == nil {
		c.t.Fatalf("Unexpected frame %s (%s)", f.Event, f.Data)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
