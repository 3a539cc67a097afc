package verify

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/truthwire/internal/model"
)

// ErrEmptyResponse is returned when the service answered without a body
var ErrEmptyResponse = errors.New("empty verification response")

// ParseError reports a verification answer that is not usable structured data
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse verification result: %s: %v", e.Reason, e.Err)
	}
	return "parse verification result: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// TransportError reports a failed call to the verification service
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s verification call: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// rawResult mirrors the JSON object requested by BuildPrompt
type rawResult struct {
	Verdict         string            `json:"verdict"`
	Explanation     string            `json:"explanation"`
	ConfidenceScore *float64          `json:"confidenceScore"`
	Sources         []model.Source    `json:"sources"`
	Visualization   *rawVisualization `json:"visualization"`
}

type rawVisualization struct {
	Type   string         `json:"type"`
	Title  string         `json:"title"`
	Data   []rawDataPoint `json:"data"`
	XLabel string         `json:"xLabel"`
	YLabel string         `json:"yLabel"`
}

type rawDataPoint struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// ParseResult decodes the service's text answer. grounding holds citations
// reported by the service outside the answer body; they are used only when
// the answer lists no sources of its own.
func ParseResult(text string, grounding []model.Source) (*Result, error) {
	body := StripFences(text)
	if body == "" {
		return nil, ErrEmptyResponse
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, &ParseError{Reason: "invalid JSON", Err: err}
	}

	verdict, ok := model.ParseVerdict(raw.Verdict)
	if !ok {
		return nil, &ParseError{Reason: fmt.Sprintf("unknown verdict %q", raw.Verdict)}
	}

	explanation := strings.TrimSpace(raw.Explanation)
	if explanation == "" {
		return nil, &ParseError{Reason: "missing explanation"}
	}

	sources := raw.Sources
	if len(sources) == 0 {
		sources = grounding
	}

	return &Result{
		Verdict:       verdict,
		Explanation:   explanation,
		Confidence:    clampConfidence(raw.ConfidenceScore),
		Sources:       UniqueSources(sources),
		Visualization: convertVisualization(raw.Visualization),
	}, nil
}

// StripFences removes markdown code fences around a JSON body
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	// Drop the info string, e.g. ```json
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(strings.TrimSpace(s), "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// UniqueSources drops sources without a URI and repeated URIs, keeping the first
func UniqueSources(sources []model.Source) []model.Source {
	if len(sources) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(sources))
	out := make([]model.Source, 0, len(sources))
	for _, s := range sources {
		uri := strings.TrimSpace(s.URI)
		if uri == "" || seen[uri] {
			continue
		}
		seen[uri] = true
		out = append(out, model.Source{Title: strings.TrimSpace(s.Title), URI: uri})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func clampConfidence(c *float64) *float64 {
	if c == nil {
		return nil
	}
	v := *c
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return &v
}

func convertVisualization(raw *rawVisualization) *model.Visualization {
	if raw == nil || len(raw.Data) == 0 {
		return nil
	}
	kind, ok := model.ParseChartKind(raw.Type)
	if !ok {
		return nil
	}

	points := make([]model.DataPoint, len(raw.Data))
	for i, d := range raw.Data {
		points[i] = model.DataPoint{Label: d.Name, Value: d.Value}
	}

	return &model.Visualization{
		ChartKind:  kind,
		Title:      raw.Title,
		DataPoints: points,
		XLabel:     raw.XLabel,
		YLabel:     raw.YLabel,
	}
}
