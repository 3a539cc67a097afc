package live

import (
	"encoding/json"

	"google.golang.org/genai"
)

// Client messages of the BidiGenerateContent websocket protocol.
// Exactly one field is set per message.
type clientMessage struct {
	Setup         *setupMessage  `json:"setup,omitempty"`
	RealtimeInput *realtimeInput `json:"realtimeInput,omitempty"`
	ToolResponse  *toolResponse  `json:"toolResponse,omitempty"`
}

type setupMessage struct {
	Model             string            `json:"model"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
	SystemInstruction *genai.Content    `json:"systemInstruction,omitempty"`
	Tools             []*genai.Tool     `json:"tools,omitempty"`
}

type generationConfig struct {
	ResponseModalities []genai.Modality `json:"responseModalities"`
}

type realtimeInput struct {
	Audio *mediaBlob `json:"audio,omitempty"`
}

type mediaBlob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type toolResponse struct {
	FunctionResponses []*genai.FunctionResponse `json:"functionResponses"`
}

// serverMessage is any message the engine sends. Unknown fields are ignored.
type serverMessage struct {
	SetupComplete        *json.RawMessage      `json:"setupComplete,omitempty"`
	ToolCall             *toolCall             `json:"toolCall,omitempty"`
	ToolCallCancellation *toolCallCancellation `json:"toolCallCancellation,omitempty"`
	GoAway               *goAway               `json:"goAway,omitempty"`
	ServerContent        json.RawMessage       `json:"serverContent,omitempty"`
	UsageMetadata        json.RawMessage       `json:"usageMetadata,omitempty"`
}

type toolCall struct {
	FunctionCalls []*genai.FunctionCall `json:"functionCalls"`
}

type toolCallCancellation struct {
	IDs []string `json:"ids"`
}

type goAway struct {
	TimeLeft string `json:"timeLeft"`
}

// newSetup builds the session setup: text-only responses so the engine
// never produces audio, the claim tool, and the listening directive.
func newSetup(model, directive string) clientMessage {
	return clientMessage{
		Setup: &setupMessage{
			Model: model,
			GenerationConfig: &generationConfig{
				ResponseModalities: []genai.Modality{genai.ModalityText},
			},
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{{Text: directive}},
			},
			Tools: []*genai.Tool{
				{FunctionDeclarations: []*genai.FunctionDeclaration{ToolDeclaration()}},
			},
		},
	}
}

func newAudioInput(mimeType, data string) clientMessage {
	return clientMessage{
		RealtimeInput: &realtimeInput{
			Audio: &mediaBlob{MIMEType: mimeType, Data: data},
		},
	}
}

func newToolResponse(responses []*genai.FunctionResponse) clientMessage {
	return clientMessage{
		ToolResponse: &toolResponse{FunctionResponses: responses},
	}
}
