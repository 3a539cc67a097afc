package verify

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/truthwire/internal/model"
	"github.com/ppiankov/truthwire/internal/util"
)

// OpenAIVerifier verifies claims with an OpenAI-compatible chat completion API.
// It has no search grounding, so sources come only from the answer itself.
type OpenAIVerifier struct {
	client *openai.Client
	model  string
}

// NewOpenAIVerifier creates a new OpenAI verifier
func NewOpenAIVerifier(cfg model.VerifyConfig) (*OpenAIVerifier, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = util.NewHTTPClient(cfg.HTTPProxy, cfg.HTTPSProxy)

	name := cfg.Model
	if name == "" {
		name = openai.GPT4oMini
	}

	return &OpenAIVerifier{
		client: openai.NewClientWithConfig(clientConfig),
		model:  name,
	}, nil
}

// Name returns the provider name
func (v *OpenAIVerifier) Name() string {
	return "openai"
}

// Verify asks the model for a JSON verdict
func (v *OpenAIVerifier) Verify(ctx context.Context, req Request) (*Result, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: v.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a fact-checking researcher. Answer only with the requested JSON object.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: BuildPrompt(req.Claim),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	}

	resp, err := v.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, &TransportError{Provider: v.Name(), Err: err}
	}

	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	return ParseResult(resp.Choices[0].Message.Content, nil)
}
