// Package observer streams engine notifications to read-only websocket
// clients.
package observer

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"voxelbend.ai/internal/observerproto"
	"voxelbend.ai/internal/protocol"
)

// Directory describes the partitions a hub can stream.
type Directory func() (defaultID string, parts []observerproto.PartitionInfo)

type Options struct {
	// AllowRemote accepts non-loopback clients.
	AllowRemote bool
	// Buffer is the per-subscriber queue; events beyond it are dropped.
	Buffer int
	Logger *log.Logger
}

// Hub is an engine sink fanning events out to websocket subscribers.
type Hub struct {
	dir  Directory
	opts Options
	log  *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu   sync.RWMutex
	subs map[string]*subscriber

	sent    atomic.Uint64
	dropped atomic.Uint64
}

type HubStats struct {
	Subscribers int    `json:"subscribers"`
	Sent        uint64 `json:"sent"`
	Dropped     uint64 `json:"dropped"`
}

type subscriber struct {
	id  string
	out chan []byte

	mu         sync.RWMutex
	partitions map[string]bool
	types      map[string]bool
}

func NewHub(dir Directory, opts Options) *Hub {
	if opts.Buffer <= 0 {
		opts.Buffer = 1024
	}
	return &Hub{
		dir:  dir,
		opts: opts,
		log:  opts.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		subs: map[string]*subscriber{},
	}
}

func (h *Hub) logf(format string, args ...any) {
	if h.log != nil {
		h.log.Printf(format, args...)
	}
}

// Publish sends ev to every matching subscriber without blocking.
func (h *Hub) Publish(ev protocol.Event) {
	if ev.Proposal {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	var b []byte
	for _, s := range h.subs {
		if !s.wants(ev) {
			continue
		}
		if b == nil {
			var err error
			b, err = json.Marshal(observerproto.EventMsg{Type: "EVENT", ProtocolVersion: observerproto.Version, Event: ev})
			if err != nil {
				h.logf("warn: observer marshal %s: %v", ev.Type, err)
				return
			}
		}
		select {
		case s.out <- b:
			h.sent.Add(1)
		default:
			h.dropped.Add(1)
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Stats() HubStats {
	return HubStats{Subscribers: h.Subscribers(), Sent: h.sent.Load(), Dropped: h.dropped.Load()}
}

func (s *subscriber) wants(ev protocol.Event) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.partitions) > 0 && !s.partitions[ev.Partition] {
		return false
	}
	if len(s.types) > 0 && !s.types[ev.Type] {
		return false
	}
	return true
}

// apply installs the filter from sub and returns the names it ignored.
func (s *subscriber) apply(sub observerproto.SubscribeMsg, known []observerproto.PartitionInfo) []string {
	ids := map[string]bool{}
	for _, p := range known {
		ids[p.ID] = true
	}
	var ignored []string
	parts := map[string]bool{}
	for _, id := range sub.Partitions {
		id = strings.TrimSpace(id)
		if !ids[id] {
			ignored = append(ignored, id)
			continue
		}
		parts[id] = true
	}
	types := map[string]bool{}
	for _, t := range sub.EventTypes {
		t = strings.TrimSpace(t)
		if !protocol.IsKnownEventType(t) {
			ignored = append(ignored, t)
			continue
		}
		types[t] = true
	}
	s.mu.Lock()
	s.partitions, s.types = parts, types
	s.mu.Unlock()
	return ignored
}

func (h *Hub) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !h.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		def, parts := h.dir()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			DefaultID:       def,
			Partitions:      parts,
			EventTypes:      eventTypes(),
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (h *Hub) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !h.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		sub, ok, err := readSubscribe(conn)
		if err != nil {
			return
		}
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		s := &subscriber{id: fmt.Sprintf("O%d", h.nextID.Add(1)), out: make(chan []byte, h.opts.Buffer)}
		if err := h.welcome(conn, s, sub); err != nil {
			return
		}
		h.mu.Lock()
		h.subs[s.id] = s
		h.mu.Unlock()
		h.logf("observer %s subscribed from %s", s.id, r.RemoteAddr)
		defer func() {
			h.mu.Lock()
			delete(h.subs, s.id)
			h.mu.Unlock()
			h.logf("observer %s left", s.id)
		}()

		done := make(chan struct{})
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-done:
					writeErr <- nil
					return
				case b := <-s.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: SUBSCRIBE updates replace the filter.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			next, ok, err := readSubscribe(conn)
			if err != nil {
				break
			}
			if !ok {
				continue
			}
			if err := h.welcome(conn, s, next); err != nil {
				break
			}
		}
		close(done)
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	}
}

// welcome applies sub and queues the WELCOME reply ahead of any event. It
// writes directly while the subscriber is not registered yet.
func (h *Hub) welcome(conn *websocket.Conn, s *subscriber, sub observerproto.SubscribeMsg) error {
	_, parts := h.dir()
	ignored := s.apply(sub, parts)
	b, err := json.Marshal(observerproto.WelcomeMsg{
		Type:            "WELCOME",
		ProtocolVersion: observerproto.Version,
		SessionID:       s.id,
		Partitions:      parts,
		Ignored:         ignored,
	})
	if err != nil {
		return err
	}
	h.mu.RLock()
	_, registered := h.subs[s.id]
	h.mu.RUnlock()
	if registered {
		select {
		case s.out <- b:
		default:
			h.dropped.Add(1)
		}
		return nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

// readSubscribe reads one message. ok is false for anything but a SUBSCRIBE
// of the current protocol version.
func readSubscribe(conn *websocket.Conn) (sub observerproto.SubscribeMsg, ok bool, err error) {
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return sub, false, err
	}
	if json.Unmarshal(msg, &sub) != nil {
		return sub, false, nil
	}
	return sub, sub.Type == "SUBSCRIBE" && sub.ProtocolVersion == observerproto.Version, nil
}

func (h *Hub) allowed(r *http.Request) bool {
	return h.opts.AllowRemote || isLoopbackRemote(r.RemoteAddr)
}

func eventTypes() []string {
	out := []string{
		protocol.EventInstanceCreated,
		protocol.EventInstanceDestroyed,
		protocol.EventCollision,
		protocol.EventEntityHit,
		protocol.EventMutationApplied,
		protocol.EventMutationReverted,
	}
	sort.Strings(out)
	return out
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
