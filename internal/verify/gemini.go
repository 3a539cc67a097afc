package verify

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/ppiankov/truthwire/internal/model"
	"github.com/ppiankov/truthwire/internal/util"
)

// DefaultGeminiModel is used when no verification model is configured
const DefaultGeminiModel = "gemini-3-flash-preview"

// GeminiVerifier verifies claims with Gemini and Google Search grounding
type GeminiVerifier struct {
	client *genai.Client
	model  string
}

// NewGeminiVerifier creates a Gemini verifier
func NewGeminiVerifier(ctx context.Context, cfg model.VerifyConfig) (*GeminiVerifier, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: util.NewHTTPClient(cfg.HTTPProxy, cfg.HTTPSProxy),
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	name := cfg.Model
	if name == "" {
		name = DefaultGeminiModel
	}

	return &GeminiVerifier{client: client, model: name}, nil
}

// Name returns the provider name
func (v *GeminiVerifier) Name() string {
	return "gemini"
}

// Verify runs a grounded generateContent call for the claim
func (v *GeminiVerifier) Verify(ctx context.Context, req Request) (*Result, error) {
	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
		},
	}

	resp, err := v.client.Models.GenerateContent(ctx, v.model, genai.Text(BuildPrompt(req.Claim)), config)
	if err != nil {
		return nil, &TransportError{Provider: v.Name(), Err: err}
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, ErrEmptyResponse
	}

	return ParseResult(resp.Text(), groundingSources(resp))
}

// groundingSources extracts web citations from the first candidate.
// Chunks missing a title or URI are skipped.
func groundingSources(resp *genai.GenerateContentResponse) []model.Source {
	cand := resp.Candidates[0]
	if cand == nil || cand.GroundingMetadata == nil {
		return nil
	}

	var sources []model.Source
	for _, chunk := range cand.GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		if chunk.Web.URI == "" || chunk.Web.Title == "" {
			continue
		}
		sources = append(sources, model.Source{Title: chunk.Web.Title, URI: chunk.Web.URI})
	}
	return sources
}
