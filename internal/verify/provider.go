package verify

import (
	"context"
	"fmt"

	"github.com/ppiankov/truthwire/internal/model"
)

// Verifier checks a single claim against a remote research engine
type Verifier interface {
	// Name returns the provider name
	Name() string

	// Verify researches the claim and returns a structured verdict.
	// Any error means the claim could not be verified.
	Verify(ctx context.Context, req Request) (*Result, error)
}

// Request identifies the claim to verify
type Request struct {
	// ID correlates the request with its claim record
	ID string

	// Claim is the verbatim claim text
	Claim string
}

// Result is a parsed verification answer
type Result struct {
	Verdict       model.Verdict
	Explanation   string
	Confidence    *float64
	Sources       []model.Source
	Visualization *model.Visualization
}

// BuildPrompt constructs the research prompt for a claim
func BuildPrompt(claim string) string {
	return fmt.Sprintf(`Analyze this claim: %q

Step 1: Search the web to verify it.
Step 2: Return a raw JSON object (no markdown formatting).

JSON structure:
{
  "verdict": "verified" | "debunked" | "nuanced" | "uncertain",
  "explanation": "Extremely concise verdict (max 15 words).",
  "confidenceScore": 0.0 to 1.0,
  "sources": [ { "title": "Source Name", "uri": "URL" } ],
  "visualization": {
    "type": "bar" | "line" | "area" | "pie" | "stat",
    "title": "Chart Title",
    "data": [ { "name": "Label", "value": 123 } ],
    "xLabel": "optional axis label",
    "yLabel": "optional axis label"
  }
}

Rules:
- If the claim involves ANY numbers, dates, or trends, you MUST provide a "visualization" object.
- If there are no specific numbers, "visualization" can be null.
- The "sources" array MUST list the URLs you found.`, claim)
}
