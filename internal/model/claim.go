package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ClaimRecord is the verification record for a single spoken claim
type ClaimRecord struct {
	ID            string         `json:"id"`                       // Stable for the record's lifetime
	CreatedAt     time.Time      `json:"created_at"`               // When the claim was accepted
	ResolvedAt    *time.Time     `json:"resolved_at,omitempty"`    // When the record left pending
	OriginalText  string         `json:"original_text"`            // Verbatim claim text
	Status        Status         `json:"status"`                   // pending, complete, failed
	Verdict       Verdict        `json:"verdict,omitempty"`        // Only when complete
	Explanation   string         `json:"explanation,omitempty"`    // Only when complete
	Confidence    *float64       `json:"confidence,omitempty"`     // 0.0 - 1.0
	Sources       []Source       `json:"sources,omitempty"`        // Deduplicated by URI
	Visualization *Visualization `json:"visualization,omitempty"`  // Optional chart data
	FailureReason string         `json:"failure_reason,omitempty"` // Only when failed
}

// Status is the lifecycle state of a claim record.
// Transitions are forward-only: pending -> complete | failed.
type Status string

const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Terminal reports whether the status can no longer change
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Verdict classifies the outcome of a verification
type Verdict string

const (
	VerdictVerified  Verdict = "verified"
	VerdictDebunked  Verdict = "debunked"
	VerdictNuanced   Verdict = "nuanced"
	VerdictUncertain Verdict = "uncertain"
)

// ParseVerdict maps free-form verdict text onto a known verdict
func ParseVerdict(s string) (Verdict, bool) {
	switch v := Verdict(strings.ToLower(strings.TrimSpace(s))); v {
	case VerdictVerified, VerdictDebunked, VerdictNuanced, VerdictUncertain:
		return v, true
	default:
		return "", false
	}
}

// Source is a reference backing a verdict
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// ChartKind is the rendering hint for a visualization
type ChartKind string

const (
	ChartBar  ChartKind = "bar"
	ChartLine ChartKind = "line"
	ChartArea ChartKind = "area"
	ChartPie  ChartKind = "pie"
	ChartStat ChartKind = "stat"
)

// ParseChartKind maps chart type text onto a known chart kind
func ParseChartKind(s string) (ChartKind, bool) {
	switch k := ChartKind(strings.ToLower(strings.TrimSpace(s))); k {
	case ChartBar, ChartLine, ChartArea, ChartPie, ChartStat:
		return k, true
	default:
		return "", false
	}
}

// Visualization carries chart data attached to a verdict
type Visualization struct {
	ChartKind  ChartKind   `json:"chart_kind"`
	Title      string      `json:"title"`
	DataPoints []DataPoint `json:"data_points"`
	XLabel     string      `json:"x_label,omitempty"`
	YLabel     string      `json:"y_label,omitempty"`
}

// DataPoint is a single labelled value of a visualization
type DataPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// NewPendingRecord creates a record in the pending state
func NewPendingRecord(id, text string, createdAt time.Time) ClaimRecord {
	return ClaimRecord{
		ID:           id,
		CreatedAt:    createdAt,
		OriginalText: text,
		Status:       StatusPending,
	}
}

// Failed returns a copy of the record resolved as failed.
// All result fields are cleared.
func (r ClaimRecord) Failed(reason string, at time.Time) ClaimRecord {
	return ClaimRecord{
		ID:            r.ID,
		CreatedAt:     r.CreatedAt,
		ResolvedAt:    &at,
		OriginalText:  r.OriginalText,
		Status:        StatusFailed,
		FailureReason: reason,
	}
}

// Validate checks the status invariants of the record
func (r ClaimRecord) Validate() error {
	if r.ID == "" {
		return errors.New("record has no id")
	}

	switch r.Status {
	case StatusPending:
		if r.Verdict != "" || r.Explanation != "" {
			return fmt.Errorf("pending record %s carries a result", r.ID)
		}
	case StatusComplete:
		if r.Verdict == "" {
			return fmt.Errorf("complete record %s has no verdict", r.ID)
		}
		if r.Explanation == "" {
			return fmt.Errorf("complete record %s has no explanation", r.ID)
		}
	case StatusFailed:
		if r.Verdict != "" || r.Explanation != "" || r.Confidence != nil || len(r.Sources) > 0 || r.Visualization != nil {
			return fmt.Errorf("failed record %s carries result fields", r.ID)
		}
	default:
		return fmt.Errorf("record %s has unknown status %q", r.ID, r.Status)
	}

	return nil
}

// Clone returns a deep copy of the record
func (r ClaimRecord) Clone() ClaimRecord {
	out := r
	if r.ResolvedAt != nil {
		t := *r.ResolvedAt
		out.ResolvedAt = &t
	}
	if r.Confidence != nil {
		c := *r.Confidence
		out.Confidence = &c
	}
	if r.Sources != nil {
		out.Sources = append([]Source(nil), r.Sources...)
	}
	if r.Visualization != nil {
		v := *r.Visualization
		v.DataPoints = append([]DataPoint(nil), r.Visualization.DataPoints...)
		out.Visualization = &v
	}
	return out
}
