package verify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ppiankov/truthwire/internal/model"
)

func newGeminiServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			t.Errorf("Expected generateContent call, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestGeminiVerifier_Verify_Grounding(t *testing.T) {
	body := `{
		"candidates": [{
			"content": {"role": "model", "parts": [{"text": "` + "```json" + `\n{\"verdict\":\"debunked\",\"explanation\":\"Oil dominates trade.\",\"sources\":[]}\n` + "```" + `"}]},
			"groundingMetadata": {
				"groundingChunks": [
					{"web": {"uri": "https://a.example", "title": "A"}},
					{"web": {"uri": "https://a.example", "title": "A duplicate"}},
					{"web": {"uri": "https://untitled.example"}},
					{"web": {"uri": "https://b.example", "title": "B"}}
				]
			}
		}]
	}`
	server := newGeminiServer(t, http.StatusOK, body)
	defer server.Close()

	v, err := NewGeminiVerifier(context.Background(), model.VerifyConfig{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("Failed to create verifier: %v", err)
	}

	res, err := v.Verify(context.Background(), Request{ID: "1", Claim: "Coffee is the second most traded commodity"})
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if res.Verdict != model.VerdictDebunked {
		t.Errorf("Expected debunked, got %s", res.Verdict)
	}
	if len(res.Sources) != 2 {
		t.Fatalf("Expected 2 grounding sources, got %+v", res.Sources)
	}
	if res.Sources[0].Title != "A" || res.Sources[1].URI != "https://b.example" {
		t.Errorf("Unexpected sources %+v", res.Sources)
	}
}

func TestGeminiVerifier_Verify_NoCandidates(t *testing.T) {
	server := newGeminiServer(t, http.StatusOK, `{"candidates": []}`)
	defer server.Close()

	v, _ := NewGeminiVerifier(context.Background(), model.VerifyConfig{APIKey: "test-key", BaseURL: server.URL})

	_, err := v.Verify(context.Background(), Request{ID: "1", Claim: "x"})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Expected ErrEmptyResponse, got %v", err)
	}
}

func TestGeminiVerifier_Verify_APIError(t *testing.T) {
	server := newGeminiServer(t, http.StatusBadRequest, `{"error": {"code": 400, "message": "bad", "status": "INVALID_ARGUMENT"}}`)
	defer server.Close()

	v, _ := NewGeminiVerifier(context.Background(), model.VerifyConfig{APIKey: "test-key", BaseURL: server.URL})

	_, err := v.Verify(context.Background(), Request{ID: "1", Claim: "x"})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Errorf("Expected *TransportError, got %v", err)
	}
}

func TestNewGeminiVerifier_MissingKey(t *testing.T) {
	if _, err := NewGeminiVerifier(context.Background(), model.VerifyConfig{}); err == nil {
		t.Error("Expected error for missing API key")
	}
}
