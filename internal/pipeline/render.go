package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/truthwire/internal/model"
	"github.com/ppiankov/truthwire/internal/orchestrator"
	"github.com/ppiankov/truthwire/internal/validate"
)

// Renderer prints claim state changes as terminal lines
type Renderer struct {
	w         io.Writer
	verbose   bool
	authority *validate.AuthorityClassifier
}

// NewRenderer creates a renderer writing to w. Verbose output lists sources
// ranked by authority.
func NewRenderer(w io.Writer, verbose bool) *Renderer {
	return &Renderer{w: w, verbose: verbose, authority: validate.NewAuthorityClassifier(nil)}
}

// Watch prints every insert and update until events closes or ctx is done
func (r *Renderer) Watch(ctx context.Context, events <-chan orchestrator.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind == orchestrator.EventRemove {
				continue
			}
			fmt.Fprintln(r.w, r.Line(ev.Record))
		}
	}
}

// Line formats one record
func (r *Renderer) Line(rec model.ClaimRecord) string {
	var b strings.Builder

	switch rec.Status {
	case model.StatusPending:
		fmt.Fprintf(&b, "… checking   %q", rec.OriginalText)
	case model.StatusFailed:
		fmt.Fprintf(&b, "✗ failed     %q: %s", rec.OriginalText, rec.FailureReason)
	case model.StatusComplete:
		fmt.Fprintf(&b, "%s %-10s %q", verdictMark(rec.Verdict), rec.Verdict, rec.OriginalText)
		if rec.Confidence != nil {
			fmt.Fprintf(&b, " (%.0f%%)", *rec.Confidence*100)
		}
		fmt.Fprintf(&b, "\n  %s", rec.Explanation)
		if r.verbose {
			for _, src := range r.authority.Rank(rec.Sources) {
				fmt.Fprintf(&b, "\n  - %-9s %s <%s>", src.Tier, src.Title, src.URI)
			}
			if v := rec.Visualization; v != nil {
				fmt.Fprintf(&b, "\n  [%s] %s (%d points)", v.ChartKind, v.Title, len(v.DataPoints))
			}
		} else if n := len(rec.Sources); n > 0 {
			fmt.Fprintf(&b, "\n  %d source(s)", n)
		}
	}

	return b.String()
}

func verdictMark(v model.Verdict) string {
	switch v {
	case model.VerdictVerified:
		return "✓"
	case model.VerdictDebunked:
		return "✗"
	case model.VerdictNuanced:
		return "~"
	default:
		return "?"
	}
}

// Snapshot is the JSON export of a session's claims
type Snapshot struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Claims      []model.ClaimRecord `json:"claims"`
}

// WriteJSON writes records as an indented JSON snapshot
func WriteJSON(path string, records []model.ClaimRecord, at time.Time) error {
	if records == nil {
		records = []model.ClaimRecord{}
	}
	data, err := json.MarshalIndent(Snapshot{GeneratedAt: at, Claims: records}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
