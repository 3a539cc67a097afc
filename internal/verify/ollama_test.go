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

func TestOllamaVerifier_Verify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Expected path /api/generate, got %s", r.URL.Path)
		}

		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Format != "json" || req.Stream {
			t.Errorf("Expected non-streaming JSON request, got %+v", req)
		}
		if req.Model != "mistral" {
			t.Errorf("Expected model mistral, got %s", req.Model)
		}

		resp := ollamaResponse{
			Model:    "mistral",
			Response: `{"verdict": "verified", "explanation": "Water boils at 100C at sea level.", "sources": [{"title": "Physics", "uri": "https://physics.example"}]}`,
			Done:     true,
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	v, err := NewOllamaVerifier(model.VerifyConfig{BaseURL: server.URL + "/", Model: "mistral"})
	if err != nil {
		t.Fatalf("NewOllamaVerifier failed: %v", err)
	}

	res, err := v.Verify(context.Background(), Request{Claim: "Water boils at 100C"})
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.Verdict != model.VerdictVerified || len(res.Sources) != 1 {
		t.Errorf("Unexpected result %+v", res)
	}
}

func TestOllamaVerifier_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "model 'mistral' not found"}`))
	}))
	defer server.Close()

	v, _ := NewOllamaVerifier(model.VerifyConfig{BaseURL: server.URL, Model: "mistral"})
	_, err := v.Verify(context.Background(), Request{Claim: "x"})

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Expected *TransportError, got %v", err)
	}
}

func TestOllamaVerifier_BadAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaResponse{Response: `{"verdict": "probably"}`, Done: true})
	}))
	defer server.Close()

	v, _ := NewOllamaVerifier(model.VerifyConfig{BaseURL: server.URL})
	_, err := v.Verify(context.Background(), Request{Claim: "x"})

	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("Expected *ParseError, got %v", err)
	}
}

func TestNewOllamaVerifier_Defaults(t *testing.T) {
	v, err := NewOllamaVerifier(model.VerifyConfig{})
	if err != nil {
		t.Fatalf("NewOllamaVerifier failed: %v", err)
	}
	if v.baseURL != defaultOllamaURL || v.model != defaultOllamaModel {
		t.Errorf("Unexpected defaults %s %s", v.baseURL, v.model)
	}
}
