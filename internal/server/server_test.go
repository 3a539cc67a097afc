package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ppiankov/truthwire/internal/metrics"
	"github.com/ppiankov/truthwire/internal/model"
	"github.com/ppiankov/truthwire/internal/orchestrator"
)

var t0 = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

type fakeDismisser struct {
	active *orchestrator.Collection
}

func (f *fakeDismisser) Dismiss(id string) bool {
	return f.active.Remove(id)
}

type fakeSubmitter struct {
	seen map[string]bool
}

func (f *fakeSubmitter) Submit(text string) (string, bool) {
	if f.seen[text] {
		return "", false
	}
	f.seen[text] = true
	return "new-id", true
}

type fixture struct {
	active  *orchestrator.Collection
	library *orchestrator.Collection
	srv     *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		active:  orchestrator.NewCollection("active"),
		library: orchestrator.NewCollection("library"),
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ClaimDecision(true)

	s := New("127.0.0.1:0", Deps{
		Active:       f.active,
		Library:      f.library,
		Dismisser:    &fakeDismisser{active: f.active},
		Submitter:    &fakeSubmitter{seen: map[string]bool{}},
		SessionState: func() string { return "streaming" },
		Gatherer:     reg,
	}, nil)

	f.srv = httptest.NewServer(s.Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) insert(rec model.ClaimRecord) {
	f.active.Insert(rec)
	f.library.Insert(rec)
}

func (f *fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeClaims(t *testing.T, resp *http.Response) []model.ClaimRecord {
	t.Helper()
	var body struct {
		Claims []model.ClaimRecord `json:"claims"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body.Claims
}

func TestListClaims(t *testing.T) {
	f := newFixture(t)
	f.insert(model.NewPendingRecord("a", "first claim", t0))
	f.insert(model.NewPendingRecord("b", "second claim", t0))

	resp := f.do(t, http.MethodGet, "/api/v1/claims/active", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	claims := decodeClaims(t, resp)
	if len(claims) != 2 || claims[0].ID != "b" || claims[1].ID != "a" {
		t.Errorf("expected most recent first, got %+v", claims)
	}

	resp = f.do(t, http.MethodGet, "/api/v1/claims/library", "")
	if got := decodeClaims(t, resp); len(got) != 2 {
		t.Errorf("expected 2 library claims, got %d", len(got))
	}
}

func TestGetClaim(t *testing.T) {
	f := newFixture(t)
	f.insert(model.NewPendingRecord("a", "first claim", t0))

	resp := f.do(t, http.MethodGet, "/api/v1/claims/a", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var rec model.ClaimRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.OriginalText != "first claim" || rec.Status != model.StatusPending {
		t.Errorf("unexpected record %+v", rec)
	}

	if resp := f.do(t, http.MethodGet, "/api/v1/claims/missing", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestDismissClaim(t *testing.T) {
	f := newFixture(t)
	f.insert(model.NewPendingRecord("a", "first claim", t0))

	if resp := f.do(t, http.MethodDelete, "/api/v1/claims/active/a", ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if f.active.Len() != 0 || f.library.Len() != 1 {
		t.Errorf("expected dismissal from active only, got %d/%d", f.active.Len(), f.library.Len())
	}
	if resp := f.do(t, http.MethodDelete, "/api/v1/claims/active/a", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 on second dismissal, got %d", resp.StatusCode)
	}
}

func TestSubmitClaim(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/claims", `{"claim": "The sun is a star"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["id"] != "new-id" {
		t.Errorf("expected id new-id, got %v", body)
	}

	if resp := f.do(t, http.MethodPost, "/api/v1/claims", `{"claim": "The sun is a star"}`); resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for duplicate, got %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodPost, "/api/v1/claims", `{"claim": "   "}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for blank claim, got %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodPost, "/api/v1/claims", `not json`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad payload, got %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/healthz", "")
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["session"] != "streaming" {
		t.Errorf("unexpected health %v", body)
	}
}

func TestHealthz_NoSession(t *testing.T) {
	s := New("127.0.0.1:0", Deps{}, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if !strings.Contains(rec.Body.String(), `"session":"none"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected /metrics disabled without a gatherer, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/metrics", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(body), "truthwire_claims_accepted_total 1") {
		t.Errorf("expected accepted counter in exposition, got:\n%s", body)
	}
}

func TestWebsocketStream(t *testing.T) {
	f := newFixture(t)

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/claims"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Subscription happens after the upgrade; retry until an event arrives
	got := map[string]bool{}
	deadline := time.Now().Add(3 * time.Second)
	_ = conn.SetReadDeadline(deadline)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				f.insert(model.NewPendingRecord("ws", "streamed claim", t0))
			}
		}
	}()

	for !(got["active"] && got["library"]) {
		var ev orchestrator.Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read event: %v (got %v)", err, got)
		}
		if ev.Record.ID != "ws" {
			t.Errorf("unexpected record %+v", ev.Record)
		}
		got[ev.Collection] = true
	}
}
