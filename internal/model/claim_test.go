package model

import (
	"testing"
	"time"
)

func TestParseVerdict(t *testing.T) {
	cases := map[string]Verdict{
		"verified":   VerdictVerified,
		" Debunked ": VerdictDebunked,
		"NUANCED":    VerdictNuanced,
		"uncertain":  VerdictUncertain,
	}
	for in, want := range cases {
		got, ok := ParseVerdict(in)
		if !ok || got != want {
			t.Errorf("ParseVerdict(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}

	if _, ok := ParseVerdict("true"); ok {
		t.Error("Expected unknown verdict to be rejected")
	}
	if _, ok := ParseVerdict(""); ok {
		t.Error("Expected empty verdict to be rejected")
	}
}

func TestParseChartKind(t *testing.T) {
	for _, in := range []string{"bar", "line", "area", "pie", "Stat"} {
		if _, ok := ParseChartKind(in); !ok {
			t.Errorf("Expected %q to be a chart kind", in)
		}
	}
	if _, ok := ParseChartKind("scatter"); ok {
		t.Error("Expected scatter to be rejected")
	}
}

func TestClaimRecord_FailedClearsResult(t *testing.T) {
	conf := 0.9
	rec := NewPendingRecord("id-1", "The sky is green", time.Now())
	rec.Verdict = VerdictDebunked
	rec.Explanation = "It is blue."
	rec.Confidence = &conf
	rec.Sources = []Source{{Title: "NASA", URI: "https://nasa.gov"}}

	failed := rec.Failed("boom", time.Now())

	if failed.Status != StatusFailed {
		t.Fatalf("Expected failed status, got %s", failed.Status)
	}
	if failed.ID != "id-1" || failed.OriginalText != "The sky is green" {
		t.Errorf("Expected id and text preserved, got %+v", failed)
	}
	if err := failed.Validate(); err != nil {
		t.Errorf("Expected valid failed record, got %v", err)
	}
	if failed.ResolvedAt == nil {
		t.Error("Expected resolved time on failed record")
	}
}

func TestClaimRecord_Validate(t *testing.T) {
	now := time.Now()

	pending := NewPendingRecord("a", "claim", now)
	if err := pending.Validate(); err != nil {
		t.Errorf("Expected pending record to be valid, got %v", err)
	}

	complete := pending
	complete.Status = StatusComplete
	if err := complete.Validate(); err == nil {
		t.Error("Expected complete record without verdict to be invalid")
	}

	complete.Verdict = VerdictVerified
	if err := complete.Validate(); err == nil {
		t.Error("Expected complete record without explanation to be invalid")
	}

	complete.Explanation = "Confirmed."
	if err := complete.Validate(); err != nil {
		t.Errorf("Expected complete record to be valid, got %v", err)
	}

	badFailed := pending
	badFailed.Status = StatusFailed
	badFailed.Verdict = VerdictVerified
	if err := badFailed.Validate(); err == nil {
		t.Error("Expected failed record with verdict to be invalid")
	}

	if err := (ClaimRecord{}).Validate(); err == nil {
		t.Error("Expected record without id to be invalid")
	}
}

func TestClaimRecord_CloneIsDeep(t *testing.T) {
	conf := 0.5
	rec := ClaimRecord{
		ID:         "x",
		Status:     StatusComplete,
		Confidence: &conf,
		Sources:    []Source{{Title: "A", URI: "https://a"}},
		Visualization: &Visualization{
			ChartKind:  ChartBar,
			DataPoints: []DataPoint{{Label: "2020", Value: 1}},
		},
	}

	cp := rec.Clone()
	*cp.Confidence = 0.1
	cp.Sources[0].URI = "https://b"
	cp.Visualization.DataPoints[0].Value = 99

	if *rec.Confidence != 0.5 {
		t.Error("Expected confidence of original untouched")
	}
	if rec.Sources[0].URI != "https://a" {
		t.Error("Expected sources of original untouched")
	}
	if rec.Visualization.DataPoints[0].Value != 1 {
		t.Error("Expected data points of original untouched")
	}
}

func TestStatus_Terminal(t *testing.T) {
	if StatusPending.Terminal() {
		t.Error("pending must not be terminal")
	}
	if !StatusComplete.Terminal() || !StatusFailed.Terminal() {
		t.Error("complete and failed must be terminal")
	}
}
