package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/uevarest/gateway/internal/config"
	"github.com/uevarest/gateway/pkg/aibridge"
	"github.com/uevarest/gateway/pkg/clientver"
	"github.com/uevarest/gateway/pkg/events"
)

const testPrefix = "httpserver:httpserver_test"

// mockAI implements aibridge.Client for handler tests.
type mockAI struct {
	text       string
	err        error
	lastPrompt string
	calls      int
}

func (m *mockAI) Generate(_ context.Context, prompt string) (string, error) {
	m.calls++
	m.lastPrompt = prompt
	return m.text, m.err
}

func (m *mockAI) Configured() bool { return true }
func (m *mockAI) Model() string    { return "mock-model" }

func testConfig() *config.Config {
	return &config.Config{
		HTTPAddr:         "127.0.0.1:0",
		UDPAddr:          "127.0.0.1:0",
		UDPBufferSize:    4096,
		UDPReadTimeout:   30 * time.Second,
		AIRequestTimeout: 5 * time.Second,
	}
}

// testServer builds a Server for handler tests. Pass nil ai for the
// unconfigured bridge.
func testServer(t *testing.T, ai aibridge.Client, pub events.Publisher, gate *clientver.Gate) *Server {
	t.Helper()
	return New(testConfig(), ai, pub, nil, gate)
}

func doRequest(t *testing.T, s *Server, method, target, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	resp := rec.Result()
	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("%s - response is not JSON: %v", testPrefix, err)
	}
	return resp, decoded
}

func TestHandleMessage_Acknowledges(t *testing.T) {
	s := testServer(t, nil, nil, nil)

	resp, body := doRequest(t, s, http.MethodPost, "/message", `{"id":"msg-1","type":"state_update"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s - status = %d, want 200", testPrefix, resp.StatusCode)
	}
	if body["type"] != "acknowledgment" {
		t.Errorf("%s - type = %v, want acknowledgment", testPrefix, body["type"])
	}
	if body["status"] != "received" {
		t.Errorf("%s - status = %v, want received", testPrefix, body["status"])
	}
	if body["message_id"] != "msg-1" {
		t.Errorf("%s - message_id = %v, want msg-1", testPrefix, body["message_id"])
	}
	data, ok := body["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("%s - data missing: %v", testPrefix, body)
	}
	if data["processed_type"] != "state_update" {
		t.Errorf("%s - processed_type = %v, want state_update", testPrefix, data["processed_type"])
	}
	ts, _ := body["timestamp"].(string)
	if !strings.HasSuffix(ts, "Z") {
		t.Errorf("%s - timestamp %q does not end in Z", testPrefix, ts)
	}
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("%s - timestamp %q is not ISO-8601: %v", testPrefix, ts, err)
	}
}

func TestHandleMessage_UnknownType(t *testing.T) {
	s := testServer(t, nil, nil, nil)

	_, body := doRequest(t, s, http.MethodPost, "/message", `{"foo":1}`)
	data, _ := body["data"].(map[string]interface{})
	if data["processed_type"] != "unknown" {
		t.Errorf("%s - processed_type = %v, want unknown", testPrefix, data["processed_type"])
	}
	if _, present := body["message_id"]; present {
		t.Errorf("%s - message_id key should be absent: %v", testPrefix, body)
	}
}

func TestHandleMessage_MessageIDFallback(t *testing.T) {
	s := testServer(t, nil, nil, nil)

	_, body := doRequest(t, s, http.MethodPost, "/message", `{"message_id":"alt-7"}`)
	if body["message_id"] != "alt-7" {
		t.Errorf("%s - message_id = %v, want alt-7", testPrefix, body["message_id"])
	}
}

func TestInvalidJSON_AllRoutes(t *testing.T) {
	routes := []string{"/message", "/data", "/ai"}
	payloads := []string{`{not json`, `null`}
	ai := &mockAI{text: "hi"}

	for _, route := range routes {
		for _, payload := range payloads {
			t.Run(route+"/"+payload, func(t *testing.T) {
				s := testServer(t, ai, nil, nil)
				resp, body := doRequest(t, s, http.MethodPost, route, payload)
				if resp.StatusCode != http.StatusBadRequest {
					t.Errorf("%s - status = %d, want 400", testPrefix, resp.StatusCode)
				}
				if body["type"] != "error" {
					t.Errorf("%s - type = %v, want error", testPrefix, body["type"])
				}
				if body["status"] != "invalid_json" {
					t.Errorf("%s - status = %v, want invalid_json", testPrefix, body["status"])
				}
			})
		}
	}
}

func TestHandleData_OK(t *testing.T) {
	s := testServer(t, nil, nil, nil)

	resp, body := doRequest(t, s, http.MethodPost, "/data", `{"id":"d-1","payload":{"x":1}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s - status = %d, want 200", testPrefix, resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("%s - status = %v, want ok", testPrefix, body["status"])
	}
	if body["message_id"] != "d-1" {
		t.Errorf("%s - message_id = %v, want d-1", testPrefix, body["message_id"])
	}
}

func TestHandleAI_NotConfigured(t *testing.T) {
	s := testServer(t, nil, nil, nil)

	bodies := []string{`{"prompt":"hello"}`, `{not json`, ``}
	for _, reqBody := range bodies {
		resp, body := doRequest(t, s, http.MethodPost, "/ai", reqBody)
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("%s - status = %d, want 503 (body %q)", testPrefix, resp.StatusCode, reqBody)
		}
		if body["status"] != "gemini_not_configured" {
			t.Errorf("%s - status = %v, want gemini_not_configured", testPrefix, body["status"])
		}
	}

	resp, body := doRequest(t, s, http.MethodGet, "/ai?prompt=hello", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("%s - GET status = %d, want 503", testPrefix, resp.StatusCode)
	}
	if body["status"] != "gemini_not_configured" {
		t.Errorf("%s - GET status token = %v, want gemini_not_configured", testPrefix, body["status"])
	}
}

func TestHandleAI_Post(t *testing.T) {
	ai := &mockAI{text: "the answer"}
	s := testServer(t, ai, nil, nil)

	resp, body := doRequest(t, s, http.MethodPost, "/ai", `{"id":"q-1","prompt":"what is up"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s - status = %d, want 200", testPrefix, resp.StatusCode)
	}
	if body["type"] != "ai_response" {
		t.Errorf("%s - type = %v, want ai_response", testPrefix, body["type"])
	}
	if body["response"] != "the answer" {
		t.Errorf("%s - response = %v, want the answer", testPrefix, body["response"])
	}
	if body["message_id"] != "q-1" {
		t.Errorf("%s - message_id = %v, want q-1", testPrefix, body["message_id"])
	}
	if ai.lastPrompt != "what is up" {
		t.Errorf("%s - bridge prompt = %q, want what is up", testPrefix, ai.lastPrompt)
	}
}

func TestHandleAI_MissingPrompt(t *testing.T) {
	ai := &mockAI{text: "unused"}
	bodies := []string{`{}`, `{"prompt":""}`, `{"prompt":123}`}

	for _, reqBody := range bodies {
		s := testServer(t, ai, nil, nil)
		resp, body := doRequest(t, s, http.MethodPost, "/ai", reqBody)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s - status = %d, want 400 (body %q)", testPrefix, resp.StatusCode, reqBody)
		}
		if body["status"] != "missing_prompt" {
			t.Errorf("%s - status = %v, want missing_prompt (body %q)", testPrefix, body["status"], reqBody)
		}
	}
	if ai.calls != 0 {
		t.Errorf("%s - bridge called %d times for bad prompts", testPrefix, ai.calls)
	}
}

func TestHandleAI_Get(t *testing.T) {
	ai := &mockAI{text: "pong"}
	s := testServer(t, ai, nil, nil)

	resp, body := doRequest(t, s, http.MethodGet, "/ai?prompt=ping&id=g-9", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s - status = %d, want 200", testPrefix, resp.StatusCode)
	}
	if body["response"] != "pong" {
		t.Errorf("%s - response = %v, want pong", testPrefix, body["response"])
	}
	if body["message_id"] != "g-9" {
		t.Errorf("%s - message_id = %v, want g-9", testPrefix, body["message_id"])
	}

	resp, body = doRequest(t, s, http.MethodGet, "/ai", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("%s - status = %d, want 400 without prompt param", testPrefix, resp.StatusCode)
	}
	if body["status"] != "missing_prompt" {
		t.Errorf("%s - status = %v, want missing_prompt", testPrefix, body["status"])
	}
}

func TestHandleAI_BridgeError(t *testing.T) {
	ai := &mockAI{err: errors.New("model overloaded")}
	s := testServer(t, ai, nil, nil)

	resp, body := doRequest(t, s, http.MethodPost, "/ai", `{"prompt":"hello"}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("%s - status = %d, want 500", testPrefix, resp.StatusCode)
	}
	if body["status"] != "ai_error" {
		t.Errorf("%s - status = %v, want ai_error", testPrefix, body["status"])
	}
	msg, _ := body["message"].(string)
	if !strings.Contains(msg, "model overloaded") {
		t.Errorf("%s - message = %q, want bridge error text", testPrefix, msg)
	}
}

func TestHandleAI_EmptyResponseSubstituted(t *testing.T) {
	ai := &mockAI{text: ""}
	s := testServer(t, ai, nil, nil)

	_, body := doRequest(t, s, http.MethodPost, "/ai", `{"prompt":"hello"}`)
	if body["response"] != "No response generated" {
		t.Errorf("%s - response = %v, want No response generated", testPrefix, body["response"])
	}
}

func TestHandleHealth(t *testing.T) {
	s := testServer(t, nil, nil, nil)

	resp, body := doRequest(t, s, http.MethodGet, "/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s - status = %d, want 200", testPrefix, resp.StatusCode)
	}
	if body["status"] != "healthy" {
		t.Errorf("%s - status = %v, want healthy", testPrefix, body["status"])
	}
	if body["timestamp"] == nil {
		t.Errorf("%s - timestamp missing", testPrefix)
	}
}

func TestHandleRoot(t *testing.T) {
	s := testServer(t, nil, nil, nil)

	resp, body := doRequest(t, s, http.MethodGet, "/", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s - status = %d, want 200", testPrefix, resp.StatusCode)
	}
	if body["name"] != serverName {
		t.Errorf("%s - name = %v, want %q", testPrefix, body["name"], serverName)
	}
	if body["version"] != serverVersion {
		t.Errorf("%s - version = %v, want %q", testPrefix, body["version"], serverVersion)
	}
	endpoints, _ := body["endpoints"].(map[string]interface{})
	if len(endpoints) == 0 {
		t.Errorf("%s - endpoints listing missing", testPrefix)
	}
}

func TestHandleRoot_UnknownPath(t *testing.T) {
	s := testServer(t, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("%s - status = %d, want 404", testPrefix, rec.Code)
	}
}

func TestRecordMessage_PublishesEvent(t *testing.T) {
	var got *events.MessageReceivedEvent
	pub := events.NewCallbackPublisher(func(_ context.Context, event *events.MessageReceivedEvent) error {
		got = event
		return nil
	})
	s := testServer(t, nil, pub, nil)

	doRequest(t, s, http.MethodPost, "/message", `{"id":"e-1","type":"chat"}`)
	if got == nil {
		t.Fatalf("%s - no event published", testPrefix)
	}
	if got.Transport != events.TransportHTTP {
		t.Errorf("%s - transport = %q, want http", testPrefix, got.Transport)
	}
	if got.Route != "/message" {
		t.Errorf("%s - route = %q, want /message", testPrefix, got.Route)
	}
	if got.MessageID != "e-1" || got.MessageType != "chat" {
		t.Errorf("%s - event fields = %q/%q, want e-1/chat", testPrefix, got.MessageID, got.MessageType)
	}
}

func TestRecordMessage_PublishFailureDoesNotChangeReply(t *testing.T) {
	pub := events.NewCallbackPublisher(func(_ context.Context, _ *events.MessageReceivedEvent) error {
		return errors.New("broker down")
	})
	s := testServer(t, nil, pub, nil)

	resp, body := doRequest(t, s, http.MethodPost, "/message", `{"id":"e-2"}`)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("%s - status = %d, want 200 despite publish failure", testPrefix, resp.StatusCode)
	}
	if body["status"] != "received" {
		t.Errorf("%s - status = %v, want received", testPrefix, body["status"])
	}
}

func TestHandleMessage_UpgradeGate(t *testing.T) {
	gate, err := clientver.NewGate("2.0.0")
	if err != nil {
		t.Fatalf("%s - gate: %v", testPrefix, err)
	}
	s := testServer(t, nil, nil, gate)

	_, body := doRequest(t, s, http.MethodPost, "/message", `{"id":"v-1","client_version":"1.0.0"}`)
	data, _ := body["data"].(map[string]interface{})
	if data["upgrade_required"] != true {
		t.Errorf("%s - upgrade_required = %v, want true", testPrefix, data["upgrade_required"])
	}

	_, body = doRequest(t, s, http.MethodPost, "/message", `{"id":"v-2","client_version":"2.1.0"}`)
	data, _ = body["data"].(map[string]interface{})
	if _, present := data["upgrade_required"]; present {
		t.Errorf("%s - upgrade_required should be absent for current clients", testPrefix)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := testServer(t, nil, nil, nil)

	resp, _ := doRequest(t, s, http.MethodGet, "/message", "")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("%s - GET /message status = %d, want 405", testPrefix, resp.StatusCode)
	}
	resp, _ = doRequest(t, s, http.MethodDelete, "/ai", "")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("%s - DELETE /ai status = %d, want 405", testPrefix, resp.StatusCode)
	}
	resp, _ = doRequest(t, s, http.MethodPost, "/", "")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("%s - POST / status = %d, want 405", testPrefix, resp.StatusCode)
	}
	if allow := resp.Header.Get("Allow"); allow != http.MethodGet {
		t.Errorf("%s - POST / Allow = %q, want GET", testPrefix, allow)
	}
}
