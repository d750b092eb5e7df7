// Package observerproto holds the JSON messages of the read-only observer
// websocket stream.
package observerproto

import "voxelbend.ai/internal/protocol"

// Version is the observer protocol version.
const Version = "0.1"

// Client -> Server. First message on the connection; may be re-sent to change
// the filter. Empty lists mean everything.
type SubscribeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Partitions      []string `json:"partitions,omitempty"`
	EventTypes      []string `json:"event_types,omitempty"`
}

// Server -> Client. Reply to every accepted SUBSCRIBE.
type WelcomeMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	SessionID       string          `json:"session_id"`
	Partitions      []PartitionInfo `json:"partitions"`
	// Unknown names from the SUBSCRIBE that were ignored.
	Ignored []string `json:"ignored,omitempty"`
}

type PartitionInfo struct {
	ID         string   `json:"id"`
	TickRateHz int      `json:"tick_rate_hz"`
	Tick       uint64   `json:"tick"`
	Live       int      `json:"live"`
	Abilities  []string `json:"abilities"`
}

// Server -> Client. One engine notification.
type EventMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Event           protocol.Event `json:"event"`
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string          `json:"protocol_version"`
	DefaultID       string          `json:"default_partition"`
	Partitions      []PartitionInfo `json:"partitions"`
	EventTypes      []string        `json:"event_types"`
}
