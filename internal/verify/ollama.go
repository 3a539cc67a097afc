package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ppiankov/truthwire/internal/model"
	"github.com/ppiankov/truthwire/internal/util"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3.1:8b"
)

// OllamaVerifier verifies claims with a local Ollama model. Local models
// cannot search, so verdicts rest on the model's own knowledge.
type OllamaVerifier struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// Ollama API structures
type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Format  string        `json:"format,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"` // Max tokens
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// NewOllamaVerifier creates a verifier for a local Ollama server
func NewOllamaVerifier(cfg model.VerifyConfig) (*OllamaVerifier, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	name := cfg.Model
	if name == "" {
		name = defaultOllamaModel
	}

	return &OllamaVerifier{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      name,
		httpClient: util.NewHTTPClient(cfg.HTTPProxy, cfg.HTTPSProxy),
	}, nil
}

// Name returns the provider name
func (v *OllamaVerifier) Name() string {
	return "ollama"
}

// Verify asks the local model for a JSON verdict
func (v *OllamaVerifier) Verify(ctx context.Context, req Request) (*Result, error) {
	apiReq := ollamaRequest{
		Model:  v.model,
		Prompt: BuildPrompt(req.Claim),
		System: "You are a fact-checking researcher. Answer only with the requested JSON object.",
		Format: "json",
		Stream: false,
		Options: ollamaOptions{
			Temperature: 0.2,
			NumPredict:  1024,
		},
	}

	resp, err := v.makeRequest(ctx, apiReq)
	if err != nil {
		return nil, &TransportError{Provider: v.Name(), Err: err}
	}

	return ParseResult(resp.Response, nil)
}

func (v *OllamaVerifier) makeRequest(ctx context.Context, apiReq ollamaRequest) (*ollamaResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := v.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiErr ollamaError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("API error (%d): %s", httpResp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("API error (%d): %s", httpResp.StatusCode, string(respBody))
	}

	var resp ollamaResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &resp, nil
}
