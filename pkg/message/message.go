// Package message parses inbound gateway messages. Parsing is permissive:
// unknown fields are ignored and missing optional fields default silently.
package message

import (
	"encoding/json"
	"errors"
	"unicode/utf8"
)

// ErrNotObject is returned for payloads that are valid JSON but not a JSON
// object. Both transports answer it the same way as malformed JSON.
var ErrNotObject = errors.New("message: payload is not a JSON object")

// Inbound is an inbound message after permissive field extraction.
type Inbound struct {
	// MessageID is the client correlation token, taken from "id" first and
	// "message_id" second. Empty when neither is a non-empty string.
	MessageID string
	// Type is the declared message type, or "" when absent.
	Type string
	// Prompt is the AI prompt. Empty when the "prompt" key is absent, not a
	// string, or an empty string.
	Prompt string
	// ClientVersion is the optional "client_version" string.
	ClientVersion string
	// Fields holds the full decoded payload.
	Fields map[string]interface{}
}

// Parse decodes data as UTF-8 JSON and extracts the well-known fields.
func Parse(data []byte) (*Inbound, error) {
	if !utf8.Valid(data) {
		return nil, errors.New("message: payload is not valid UTF-8")
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, ErrNotObject
		}
		return nil, err
	}
	// A JSON null unmarshals into a nil map without error.
	if fields == nil {
		return nil, ErrNotObject
	}
	return &Inbound{
		MessageID:     firstString(fields, "id", "message_id"),
		Type:          stringField(fields, "type"),
		Prompt:        stringField(fields, "prompt"),
		ClientVersion: stringField(fields, "client_version"),
		Fields:        fields,
	}, nil
}

// stringField returns the value of key when it is a string, else "".
func stringField(fields map[string]interface{}, key string) string {
	s, _ := fields[key].(string)
	return s
}

// firstString returns the first key whose value is a non-empty string.
func firstString(fields map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if s := stringField(fields, key); s != "" {
			return s
		}
	}
	return ""
}
