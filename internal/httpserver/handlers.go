package httpserver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/uevarest/gateway/pkg/ack"
	"github.com/uevarest/gateway/pkg/events"
	"github.com/uevarest/gateway/pkg/message"
	"github.com/uevarest/gateway/pkg/msglog"
)

const handlersLogPrefix = "httpserver:handlers"

// handleMessage is the main message receiver: POST /message.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, ack.NewError(ack.StatusServerError, "method not allowed"))
		return
	}
	remote := r.RemoteAddr

	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to read body from %s: %v", handlersLogPrefix, remote, err))
		writeJSON(w, http.StatusInternalServerError, ack.NewError(ack.StatusServerError, err.Error()))
		return
	}

	m, err := message.Parse(body)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - Invalid JSON from %s: %v", handlersLogPrefix, remote, err))
		writeJSON(w, http.StatusBadRequest, ack.NewError(ack.StatusInvalidJSON, "Request body must be valid JSON"))
		return
	}

	slog.Info(fmt.Sprintf("%s - Received POST /message from %s", handlersLogPrefix, remote))
	slog.Info(fmt.Sprintf("%s - Payload: %s", handlersLogPrefix, body))

	messageType := m.Type
	if messageType == "" {
		messageType = "unknown"
	}
	data := map[string]interface{}{"processed_type": messageType}
	if s.gate.Outdated(m.ClientVersion) {
		slog.Warn(fmt.Sprintf("%s - client %s reports version %s below minimum %s", handlersLogPrefix, remote, m.ClientVersion, s.gate.Min()))
		data["upgrade_required"] = true
	}

	s.recordMessage(r.Context(), "/message", remote, m, body)

	slog.Info(fmt.Sprintf("%s - Sent acknowledgment to %s", handlersLogPrefix, remote))
	writeJSON(w, http.StatusOK, ack.New(ack.Params{
		MessageID: m.MessageID,
		Status:    ack.StatusReceived,
		Data:      data,
	}))
}

// handleData is the alternative data receiver: POST /data.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, ack.NewError(ack.StatusServerError, "method not allowed"))
		return
	}
	remote := r.RemoteAddr

	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to read body from %s: %v", handlersLogPrefix, remote, err))
		writeJSON(w, http.StatusInternalServerError, ack.NewError(ack.StatusServerError, ""))
		return
	}

	m, err := message.Parse(body)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - Invalid JSON from %s: %v", handlersLogPrefix, remote, err))
		writeJSON(w, http.StatusBadRequest, ack.NewError(ack.StatusInvalidJSON, ""))
		return
	}

	slog.Info(fmt.Sprintf("%s - Received POST /data from %s", handlersLogPrefix, remote))
	slog.Info(fmt.Sprintf("%s - Data: %s", handlersLogPrefix, body))

	s.recordMessage(r.Context(), "/data", remote, m, body)

	writeJSON(w, http.StatusOK, ack.New(ack.Params{
		MessageID: m.MessageID,
		Status:    ack.StatusOK,
	}))
}

// handleAI forwards a prompt to the AI bridge: POST /ai with a JSON body,
// or GET /ai with prompt and id query parameters.
func (s *Server) handleAI(w http.ResponseWriter, r *http.Request) {
	remote := r.RemoteAddr

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET, POST")
		writeJSON(w, http.StatusMethodNotAllowed, ack.NewError(ack.StatusServerError, "method not allowed"))
		return
	}

	// Short-circuit before touching the payload: the 503 answer must not
	// depend on body contents.
	if !s.ai.Configured() {
		slog.Warn(fmt.Sprintf("%s - /ai request from %s but GEMINI_API_KEY is not set", handlersLogPrefix, remote))
		writeJSON(w, http.StatusServiceUnavailable, ack.NewError(ack.StatusNotConfigured, "GEMINI_API_KEY is not set"))
		return
	}

	var prompt, messageID string
	if r.Method == http.MethodPost {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			slog.Error(fmt.Sprintf("%s - failed to read body from %s: %v", handlersLogPrefix, remote, err))
			writeJSON(w, http.StatusInternalServerError, ack.NewError(ack.StatusServerError, err.Error()))
			return
		}
		m, err := message.Parse(body)
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - Invalid JSON from %s: %v", handlersLogPrefix, remote, err))
			writeJSON(w, http.StatusBadRequest, ack.NewError(ack.StatusInvalidJSON, "Request body must be valid JSON"))
			return
		}
		prompt, messageID = m.Prompt, m.MessageID
	} else {
		q := r.URL.Query()
		prompt, messageID = q.Get("prompt"), q.Get("id")
	}

	if prompt == "" {
		slog.Warn(fmt.Sprintf("%s - /ai request from %s without a usable prompt", handlersLogPrefix, remote))
		writeJSON(w, http.StatusBadRequest, ack.NewError(ack.StatusMissingPrompt, "prompt must be a non-empty string"))
		return
	}

	slog.Info(fmt.Sprintf("%s - Received %s /ai from %s", handlersLogPrefix, r.Method, remote))

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.AIRequestTimeout)
	defer cancel()

	text, err := s.ai.Generate(ctx, prompt)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - AI bridge call failed for %s: %v", handlersLogPrefix, remote, err))
		writeJSON(w, http.StatusInternalServerError, ack.NewError(ack.StatusAIError, err.Error()))
		return
	}
	if text == "" {
		text = "No response generated"
	}

	slog.Info(fmt.Sprintf("%s - Sent AI response to %s", handlersLogPrefix, remote))
	writeJSON(w, http.StatusOK, ack.NewAIResponse(messageID, text))
}

// healthResponse is the GET /health body.
type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    ack.StatusHealthy,
		Timestamp: ack.Timestamp(time.Now()),
	})
}

// infoResponse is the GET / body.
type infoResponse struct {
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
	AI        infoAI            `json:"ai"`
	Messages  map[string]int64  `json:"messages,omitempty"`
}

type infoAI struct {
	Configured bool   `json:"configured"`
	Model      string `json:"model,omitempty"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, ack.NewError(ack.StatusServerError, "method not allowed"))
		return
	}

	info := infoResponse{
		Name:    serverName,
		Version: serverVersion,
		Endpoints: map[string]string{
			"POST /message": "Main message receiver",
			"POST /data":    "Alternative data receiver",
			"POST /ai":      "AI prompt (JSON body with prompt)",
			"GET /ai":       "AI prompt (query params prompt, id)",
			"GET /health":   "Health check",
			"GET /":         "API info",
		},
		AI: infoAI{Configured: s.ai.Configured(), Model: s.ai.Model()},
	}
	if s.store != nil {
		counts, err := s.store.CountByTransport(r.Context())
		if err != nil {
			slog.Error(fmt.Sprintf("%s - message counts unavailable: %v", handlersLogPrefix, err))
		} else {
			info.Messages = counts
		}
	}
	writeJSON(w, http.StatusOK, info)
}

// recordMessage publishes a message-received event and appends to the
// message log. Both are best-effort: failures are logged and never change
// the client reply.
func (s *Server) recordMessage(ctx context.Context, route, remote string, m *message.Inbound, payload []byte) {
	event := events.NewMessageReceivedEvent(events.TransportHTTP, route, remote, m.MessageID, m.Type)
	if err := s.pub.PublishReceived(ctx, event); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish message-received event: %v", handlersLogPrefix, err))
	}
	if s.store != nil {
		rec := &msglog.Record{
			Transport:   events.TransportHTTP,
			Route:       route,
			RemoteAddr:  remote,
			MessageID:   m.MessageID,
			MessageType: m.Type,
			Payload:     payload,
		}
		if err := s.store.Insert(ctx, rec); err != nil {
			slog.Error(fmt.Sprintf("%s - failed to log message: %v", handlersLogPrefix, err))
		}
	}
}
