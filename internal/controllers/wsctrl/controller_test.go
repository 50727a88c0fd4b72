package wsctrl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"mediahub.app/sessioncore/internal/core"
)

// newConnectedPair spins up a websocket echo-less server and returns the
// server-side connection (what Controller wraps) alongside the client-side
// connection used to observe what the controller writes.
func newConnectedPair(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	serverConnCh := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		serverConnCh <- conn
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { clientConn.Close() })

	select {
	case serverConn := <-serverConnCh:
		return serverConn, clientConn
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for server upgrade")
		return nil, nil
	}
}

func TestController_SendGeneralCommandWritesEnvelope(t *testing.T) {
	serverConn, clientConn := newConnectedPair(t)
	ctrl := New("sess-1", serverConn, nil)
	defer ctrl.Dispose()

	cmd := core.GeneralCommand{Name: "Mute"}
	if err := ctrl.SendGeneralCommand(context.Background(), cmd); err != nil {
		t.Fatalf("send: %v", err)
	}

	_, raw, err := clientConn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got envelope
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.MessageType != "GeneralCommand" {
		t.Fatalf("expected MessageType GeneralCommand, got %q", got.MessageType)
	}
}

func TestController_MarkClosedFlipsIsLive(t *testing.T) {
	serverConn, _ := newConnectedPair(t)
	ctrl := New("sess-1", serverConn, nil)

	if !ctrl.IsLive() {
		t.Fatalf("expected a freshly built controller to be live")
	}
	ctrl.MarkClosed()
	if ctrl.IsLive() {
		t.Fatalf("expected MarkClosed to flip IsLive false")
	}
}

func TestFactory_RegisterAndUnregister(t *testing.T) {
	f := NewFactory()
	serverConn, _ := newConnectedPair(t)
	ctrl := New("sess-1", serverConn, nil)
	defer ctrl.Dispose()

	if got := f.GetSessionController("sess-1", "device-1", core.CapabilitiesInfo{}); got != nil {
		t.Fatalf("expected nil before registration, got %v", got)
	}

	f.Register("sess-1", ctrl)
	if got := f.GetSessionController("sess-1", "device-1", core.CapabilitiesInfo{}); got != ctrl {
		t.Fatalf("expected the registered controller back, got %v", got)
	}

	f.Unregister("sess-1")
	if got := f.GetSessionController("sess-1", "device-1", core.CapabilitiesInfo{}); got != nil {
		t.Fatalf("expected nil after unregistration, got %v", got)
	}
}
