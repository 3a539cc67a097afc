package verify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ppiankov/truthwire/internal/model"
)

func TestAnthropicVerifier_Verify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Expected path /v1/messages, got %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("Expected x-api-key test-key, got %s", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("Expected anthropic-version header")
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Tools) != 1 || req.Tools[0].Name != "web_search" {
			t.Errorf("Expected web search tool, got %+v", req.Tools)
		}

		_, _ = w.Write([]byte(`{
			"content": [
				{"type": "server_tool_use", "id": "srv_1", "name": "web_search"},
				{"type": "web_search_tool_result", "tool_use_id": "srv_1", "content": []},
				{"type": "text", "text": "Here is the result:\n"},
				{"type": "text", "text": "{\"verdict\": \"debunked\", \"explanation\": \"The wall is not visible to the naked eye.\", ",
				 "citations": [{"type": "web_search_result_location", "url": "https://nasa.example/wall", "title": "NASA"}]},
				{"type": "text", "text": "\"confidenceScore\": 0.9}"}
			],
			"stop_reason": "end_turn"
		}`))
	}))
	defer server.Close()

	v, err := NewAnthropicVerifier(model.VerifyConfig{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewAnthropicVerifier failed: %v", err)
	}

	res, err := v.Verify(context.Background(), Request{ID: "1", Claim: "The Great Wall is visible from space"})
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.Verdict != model.VerdictDebunked {
		t.Errorf("Expected debunked, got %s", res.Verdict)
	}
	if len(res.Sources) != 1 || res.Sources[0].URI != "https://nasa.example/wall" {
		t.Errorf("Expected citation as source, got %+v", res.Sources)
	}
	if res.Confidence == nil || *res.Confidence != 0.9 {
		t.Errorf("Expected confidence 0.9, got %v", res.Confidence)
	}
}

func TestAnthropicVerifier_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "authentication_error", "message": "invalid x-api-key"}}`))
	}))
	defer server.Close()

	v, _ := NewAnthropicVerifier(model.VerifyConfig{APIKey: "bad", BaseURL: server.URL})
	_, err := v.Verify(context.Background(), Request{Claim: "x"})

	var te *TransportError
	if !errors.As(err, &te) || te.Provider != "anthropic" {
		t.Fatalf("Expected anthropic *TransportError, got %v", err)
	}
}

func TestAnthropicVerifier_EmptyAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content": [{"type": "server_tool_use"}], "stop_reason": "max_tokens"}`))
	}))
	defer server.Close()

	v, _ := NewAnthropicVerifier(model.VerifyConfig{APIKey: "k", BaseURL: server.URL})
	if _, err := v.Verify(context.Background(), Request{Claim: "x"}); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Expected ErrEmptyResponse, got %v", err)
	}
}

func TestNewAnthropicVerifier_RequiresKey(t *testing.T) {
	if _, err := NewAnthropicVerifier(model.VerifyConfig{}); err == nil {
		t.Error("Expected error without API key")
	}
}

func TestJSONObject(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"Sure!\n{\"a\":{\"b\":2}}\nDone.", `{"a":{"b":2}}`},
		{"no json here", "no json here"},
		{"} backwards {", "} backwards {"},
	}
	for _, tt := range tests {
		if got := jsonObject(tt.in); got != tt.want {
			t.Errorf("jsonObject(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
