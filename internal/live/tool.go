package live

import "google.golang.org/genai"

const (
	// ToolName is the function the engine calls for every detected claim
	ToolName = "verifyClaim"

	claimArg = "claim"

	ackResult = "Claim received. Continue listening for the next claim."
)

// DefaultDirective is the system instruction for the listening engine
const DefaultDirective = `You are an always-on background fact-checking trigger.
Your ONLY job is to listen for factual claims or statistics and call 'verifyClaim' immediately.

Rules:
1. Listen continuously.
2. When you hear a claim, call 'verifyClaim' with the exact claim.
3. Do NOT speak. Do NOT generate audio or any other reply.
4. Immediately resume listening for the next claim.
5. Support multiple claims in rapid succession.`

// ToolDeclaration declares verifyClaim(claim: string)
func ToolDeclaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        ToolName,
		Description: "Trigger this immediately when a factual claim, statistic, or verifiable statement is made.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				claimArg: {
					Type:        genai.TypeString,
					Description: "The exact claim to check.",
				},
			},
			Required: []string{claimArg},
		},
	}
}
