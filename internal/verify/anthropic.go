package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ppiankov/truthwire/internal/model"
	"github.com/ppiankov/truthwire/internal/util"
)

const (
	defaultAnthropicURL   = "https://api.anthropic.com"
	defaultAnthropicModel = "claude-sonnet-4-5"
	anthropicVersion      = "2023-06-01"
)

// AnthropicVerifier verifies claims with the Anthropic Messages API and its
// server-side web search tool
type AnthropicVerifier struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Anthropic API structures
type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicTool struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	MaxUses int    `json:"max_uses,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type      string `json:"type"`
		Text      string `json:"text"`
		Citations []struct {
			URL   string `json:"url"`
			Title string `json:"title"`
		} `json:"citations"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

type anthropicError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAnthropicVerifier creates a new Anthropic verifier
func NewAnthropicVerifier(cfg model.VerifyConfig) (*AnthropicVerifier, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicURL
	}
	name := cfg.Model
	if name == "" {
		name = defaultAnthropicModel
	}

	return &AnthropicVerifier{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      name,
		httpClient: util.NewHTTPClient(cfg.HTTPProxy, cfg.HTTPSProxy),
	}, nil
}

// Name returns the provider name
func (v *AnthropicVerifier) Name() string {
	return "anthropic"
}

// Verify researches the claim with web search and parses the JSON verdict.
// Search citations attached to the answer serve as grounding.
func (v *AnthropicVerifier) Verify(ctx context.Context, req Request) (*Result, error) {
	apiReq := anthropicRequest{
		Model:     v.model,
		MaxTokens: 1024,
		System:    "You are a fact-checking researcher. Finish with only the requested JSON object.",
		Messages: []anthropicMessage{
			{Role: "user", Content: BuildPrompt(req.Claim)},
		},
		Tools: []anthropicTool{
			{Type: "web_search_20250305", Name: "web_search", MaxUses: 3},
		},
	}

	resp, err := v.makeRequest(ctx, apiReq)
	if err != nil {
		return nil, &TransportError{Provider: v.Name(), Err: err}
	}

	var text strings.Builder
	var grounding []model.Source
	for _, block := range resp.Content {
		if block.Type != "text" {
			continue
		}
		text.WriteString(block.Text)
		for _, c := range block.Citations {
			grounding = append(grounding, model.Source{Title: c.Title, URI: c.URL})
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, ErrEmptyResponse
	}

	return ParseResult(jsonObject(text.String()), grounding)
}

func (v *AnthropicVerifier) makeRequest(ctx context.Context, apiReq anthropicRequest) (*anthropicResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", v.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

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
		var apiErr anthropicError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", httpResp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", httpResp.StatusCode, string(respBody))
	}

	var resp anthropicResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &resp, nil
}

// jsonObject trims prose around the outermost JSON object in text.
// Text without braces is returned unchanged.
func jsonObject(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return text
	}
	return text[start : end+1]
}
