// Package events defines event types and publisher interfaces for
// message-received events.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Transports for MessageReceivedEvent.
const (
	TransportHTTP = "http"
	TransportUDP  = "udp"
)

// MessageReceivedEvent is emitted when a transport accepts a well-formed
// message. Publishing is best-effort and never affects the client reply.
type MessageReceivedEvent struct {
	EventID     string `json:"eventId"`
	Transport   string `json:"transport"`
	Route       string `json:"route,omitempty"`
	RemoteAddr  string `json:"remoteAddr"`
	MessageID   string `json:"messageId,omitempty"`
	MessageType string `json:"messageType,omitempty"`
	Timestamp   string `json:"timestamp"`
}

// NewMessageReceivedEvent builds an event with a fresh event id and the
// current UTC timestamp.
func NewMessageReceivedEvent(transport, route, remoteAddr, messageID, messageType string) *MessageReceivedEvent {
	return &MessageReceivedEvent{
		EventID:     uuid.NewString(),
		Transport:   transport,
		Route:       route,
		RemoteAddr:  remoteAddr,
		MessageID:   messageID,
		MessageType: messageType,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}
