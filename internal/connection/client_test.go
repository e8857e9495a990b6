package connection

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testClientConfig(url string) ClientConfig {
	return ClientConfig{
		URL:              url,
		PingTimeout:      30 * time.Second,
		WriteTimeout:     5 * time.Second,
		HandshakeTimeout: 5 * time.Second,
		BufferSize:       100,
	}
}

func TestClient_Connect(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	client := NewClient(testClientConfig(wsURL(server)), nil)

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if !client.IsConnected() {
		t.Error("expected IsConnected to return true")
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if client.IsConnected() {
		t.Error("expected IsConnected to return false after Close")
	}
	if err := client.Connect(context.Background()); !errors.Is(err, ErrAlreadyClosed) {
		t.Errorf("Connect after Close error = %v, want ErrAlreadyClosed", err)
	}
}

func TestClient_PlaceBetFrame(t *testing.T) {
	var (
		mu       sync.Mutex
		received []byte
	)
	got := make(chan struct{})

	server := mockWSServer(t, func(conn *websocket.Conn) {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		mu.Lock()
		received = msg
		mu.Unlock()
		close(got)
		conn.ReadMessage()
	})
	defer server.Close()

	client := NewClient(testClientConfig(wsURL(server)), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	if err := client.PlaceBet("wild", "down", 12.5); err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}

	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for frame")
	}

	mu.Lock()
	defer mu.Unlock()
	var frame struct {
		Event string `json:"event"`
		Data  struct {
			MarketID  string  `json:"marketId"`
			Direction string  `json:"direction"`
			Amount    float64 `json:"amount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(received, &frame); err != nil {
		t.Fatalf("invalid frame %s: %v", received, err)
	}
	if frame.Event != "placeBet" {
		t.Errorf("event = %q, want placeBet", frame.Event)
	}
	if frame.Data.MarketID != "wild" || frame.Data.Direction != "down" || frame.Data.Amount != 12.5 {
		t.Errorf("data = %+v", frame.Data)
	}
}

func TestClient_Messages(t *testing.T) {
	frames := []string{
		`{"event":"priceUpdate","data":{"marketId":"calm","time":1,"price":100.5}}`,
		`not json`,
		`{"event":"priceUpdate","data":{"marketId":"wild","time":2,"price":99}}`,
	}

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		time.Sleep(time.Second)
	})
	defer server.Close()

	client := NewClient(testClientConfig(wsURL(server)), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	var received []Message
	timeout := time.After(500 * time.Millisecond)
	for len(received) < 2 {
		select {
		case msg := <-client.Messages():
			if msg.ReceivedAt.IsZero() {
				t.Error("ReceivedAt should not be zero")
			}
			received = append(received, msg)
		case <-timeout:
			t.Fatalf("timeout waiting for messages, received %d of 2", len(received))
		}
	}

	// The undecodable frame is skipped.
	for i, want := range []string{"calm", "wild"} {
		if received[i].Event != "priceUpdate" {
			t.Errorf("message %d event = %q, want priceUpdate", i, received[i].Event)
		}
		var pu struct {
			MarketID string `json:"marketId"`
		}
		json.Unmarshal(received[i].Data, &pu)
		if pu.MarketID != want {
			t.Errorf("message %d marketId = %q, want %q", i, pu.MarketID, want)
		}
	}
}

func TestClient_SendNotConnected(t *testing.T) {
	client := NewClient(testClientConfig("ws://localhost:12345"), nil)

	if err := client.Send([]byte("test")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestClient_DialFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	client := NewClient(testClientConfig(wsURL(server)), nil)
	if err := client.Connect(context.Background()); err == nil {
		t.Error("Connect to non-websocket endpoint succeeded")
	}
}

func TestClient_DoubleClose(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		time.Sleep(time.Second)
	})
	defer server.Close()

	client := NewClient(testClientConfig(wsURL(server)), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestClient_ServerCloseReportsError(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too slow"),
			time.Now().Add(time.Second))
	})
	defer server.Close()

	client := NewClient(testClientConfig(wsURL(server)), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	select {
	case err := <-client.Errors():
		if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
			t.Errorf("error = %v, want policy violation close", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for close error")
	}
}

func TestClient_StaleConnection(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		// Never ping.
		conn.ReadMessage()
	})
	defer server.Close()

	cfg := testClientConfig(wsURL(server))
	cfg.PingTimeout = 80 * time.Millisecond
	client := NewClient(cfg, nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	select {
	case err := <-client.Errors():
		if !errors.Is(err, ErrStaleConnection) {
			t.Errorf("error = %v, want ErrStaleConnection", err)
		}
	case <-time.After(time.Second):
		t.Fatal("stale connection not reported")
	}
}

func TestClient_PingHandler(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		if err := conn.WriteControl(websocket.PingMessage, []byte("heartbeat"), time.Now().Add(time.Second)); err != nil {
			t.Logf("ping error: %v", err)
			return
		}
		time.Sleep(500 * time.Millisecond)
	})
	defer server.Close()

	client := NewClient(testClientConfig(wsURL(server)), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	time.Sleep(200 * time.Millisecond)

	if !client.IsConnected() {
		t.Error("expected client to be connected after ping")
	}
}

func TestDefaultConfigs(t *testing.T) {
	cc := DefaultClientConfig()
	if cc.PingTimeout != 60*time.Second {
		t.Errorf("PingTimeout = %v, want 60s", cc.PingTimeout)
	}
	if cc.BufferSize <= 0 {
		t.Errorf("BufferSize = %d, want > 0", cc.BufferSize)
	}

	sc := DefaultServerConfig()
	if sc.PingInterval >= sc.PongTimeout {
		t.Errorf("PingInterval %v must be below PongTimeout %v", sc.PingInterval, sc.PongTimeout)
	}
	if sc.ReadLimit != 4096 {
		t.Errorf("ReadLimit = %d, want 4096", sc.ReadLimit)
	}
}
