// Package ack builds the JSON acknowledgment envelope shared by the HTTP
// and UDP transports.
package ack

import "time"

// Envelope type discriminators.
const (
	TypeAcknowledgment = "acknowledgment"
	TypeAIResponse     = "ai_response"
	TypeError          = "error"
)

// Status tokens used across both transports.
const (
	StatusOK            = "ok"
	StatusReceived      = "received"
	StatusHealthy       = "healthy"
	StatusInvalidJSON   = "invalid_json"
	StatusMissingPrompt = "missing_prompt"
	StatusNotConfigured = "gemini_not_configured"
	StatusAIError       = "ai_error"
	StatusServerError   = "server_error"
)

// Acknowledgment is the single response shape for every route and datagram.
// It is always a flat JSON object with at least Type and Status; MessageID
// is omitted entirely when the inbound message carried no id.
type Acknowledgment struct {
	Type      string                 `json:"type"`
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp,omitempty"`
	MessageID string                 `json:"message_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Response  string                 `json:"response,omitempty"`
	Message   string                 `json:"message,omitempty"`
}

// Params configures New. Zero-valued fields fall back to defaults:
// Status defaults to "ok" and Timestamp to the current UTC instant.
type Params struct {
	MessageID string
	Status    string
	Timestamp string
	Data      map[string]interface{}
}

// New builds a standard acknowledgment envelope. It never fails; an empty
// MessageID is simply left out of the envelope.
func New(p Params) *Acknowledgment {
	status := p.Status
	if status == "" {
		status = StatusOK
	}
	ts := p.Timestamp
	if ts == "" {
		ts = Timestamp(time.Now())
	}
	return &Acknowledgment{
		Type:      TypeAcknowledgment,
		Status:    status,
		Timestamp: ts,
		MessageID: p.MessageID,
		Data:      p.Data,
	}
}

// NewAIResponse builds the envelope for a generated-text reply.
func NewAIResponse(messageID, text string) *Acknowledgment {
	return &Acknowledgment{
		Type:      TypeAIResponse,
		Status:    StatusOK,
		Timestamp: Timestamp(time.Now()),
		MessageID: messageID,
		Response:  text,
	}
}

// NewError builds an error envelope. The message text is optional and
// omitted when empty.
func NewError(status, message string) *Acknowledgment {
	return &Acknowledgment{
		Type:    TypeError,
		Status:  status,
		Message: message,
	}
}

// Timestamp formats t as an ISO-8601 UTC instant with a trailing Z and
// microsecond precision.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000Z")
}
