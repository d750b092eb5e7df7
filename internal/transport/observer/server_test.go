package observer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"voxelbend.ai/internal/observerproto"
	"voxelbend.ai/internal/protocol"
)

func testDirectory() (string, []observerproto.PartitionInfo) {
	return "a", []observerproto.PartitionInfo{
		{ID: "a", TickRateHz: 20},
		{ID: "b", TickRateHz: 40},
	}
}

func startHub(t *testing.T, opts Options) (*Hub, *httptest.Server) {
	t.Helper()
	h := NewHub(testDirectory, opts)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/observer", h.WSHandler())
	mux.HandleFunc("/v1/observer/bootstrap", h.BootstrapHandler())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/observer"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func subscribe(t *testing.T, conn *websocket.Conn, partitions, types []string) observerproto.WelcomeMsg {
	t.Helper()
	sub := observerproto.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: observerproto.Version, Partitions: partitions, EventTypes: types}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	var w observerproto.WelcomeMsg
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if err := conn.ReadJSON(&w); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	if w.Type != "WELCOME" || w.SessionID == "" || len(w.Partitions) != 2 {
		t.Fatalf("welcome: %+v", w)
	}
	return w
}

func waitSubscribers(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for h.Subscribers() != n {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers=%d want %d", h.Subscribers(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func event(partition, typ string, tick uint64) protocol.Event {
	ev := protocol.NewEvent(typ, tick)
	ev.Partition = partition
	return ev
}

func TestHub_FiltersByPartitionAndType(t *testing.T) {
	h, srv := startHub(t, Options{})
	conn := dial(t, srv)
	w := subscribe(t, conn, []string{"a", "nope"}, []string{protocol.EventEntityHit})
	if len(w.Ignored) != 1 || w.Ignored[0] != "nope" {
		t.Fatalf("ignored: %v", w.Ignored)
	}
	waitSubscribers(t, h, 1)

	h.Publish(event("b", protocol.EventEntityHit, 1))
	h.Publish(event("a", protocol.EventCollision, 2))
	prop := protocol.NewProposal(protocol.ProposalCollision, 3)
	prop.Partition = "a"
	h.Publish(prop)
	h.Publish(event("a", protocol.EventEntityHit, 4))

	var msg observerproto.EventMsg
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if msg.Type != "EVENT" || msg.Event.Partition != "a" || msg.Event.Type != protocol.EventEntityHit || msg.Event.Tick != 4 {
		t.Fatalf("event: %+v", msg)
	}
	if st := h.Stats(); st.Sent != 1 || st.Subscribers != 1 {
		t.Fatalf("stats: %+v", st)
	}
}

func TestHub_ResubscribeReplacesFilter(t *testing.T) {
	h, srv := startHub(t, Options{})
	conn := dial(t, srv)
	subscribe(t, conn, []string{"a"}, nil)
	waitSubscribers(t, h, 1)
	subscribe(t, conn, []string{"b"}, nil)

	h.Publish(event("a", protocol.EventCollision, 1))
	h.Publish(event("b", protocol.EventCollision, 2))

	var msg observerproto.EventMsg
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if msg.Event.Partition != "b" || msg.Event.Tick != 2 {
		t.Fatalf("event: %+v", msg.Event)
	}
}

func TestHub_RejectsBadHandshake(t *testing.T) {
	h, srv := startHub(t, Options{})
	conn := dial(t, srv)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"HELLO"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
	if h.Subscribers() != 0 {
		t.Fatalf("subscribers=%d", h.Subscribers())
	}
}

func TestHub_SlowSubscriberDrops(t *testing.T) {
	h := NewHub(testDirectory, Options{Buffer: 1})
	s := &subscriber{id: "O1", out: make(chan []byte, 1)}
	h.subs[s.id] = s
	h.Publish(event("a", protocol.EventCollision, 1))
	h.Publish(event("a", protocol.EventCollision, 2))
	if st := h.Stats(); st.Sent != 1 || st.Dropped != 1 {
		t.Fatalf("stats: %+v", st)
	}
}

func TestBootstrapHandler(t *testing.T) {
	_, srv := startHub(t, Options{})
	resp, err := http.Get(srv.URL + "/v1/observer/bootstrap")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var b observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.DefaultID != "a" || len(b.Partitions) != 2 || len(b.EventTypes) != 6 || b.ProtocolVersion != observerproto.Version {
		t.Fatalf("bootstrap: %+v", b)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:1234": true,
		"[::1]:80":       true,
		"10.0.0.2:5000":  false,
		"garbage":        false,
	}
	for addr, want := range cases {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("%s: got %v want %v", addr, got, want)
		}
	}
}
