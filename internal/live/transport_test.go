package live

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebsocketDialer_KeyInQuery(t *testing.T) {
	gotKey := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey <- r.URL.Query().Get("key")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	d := &WebsocketDialer{Endpoint: wsURL(srv) + "/ws/live", APIKey: "secret"}
	conn, err := d.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	if key := <-gotKey; key != "secret" {
		t.Errorf("expected key secret, got %q", key)
	}
}

func TestWebsocketDialer_ErrorHidesKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	d := &WebsocketDialer{Endpoint: wsURL(srv), APIKey: "super-secret"}
	_, err := d.Dial(context.Background())
	if err == nil {
		t.Fatal("expected dial error")
	}
	if strings.Contains(err.Error(), "super-secret") {
		t.Errorf("error leaks API key: %v", err)
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestWSConn_NormalCloseIsEOF(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"setupComplete":{}}`))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	conn, err := (&WebsocketDialer{Endpoint: wsURL(srv)}).Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if string(data) != `{"setupComplete":{}}` {
		t.Errorf("unexpected payload %s", data)
	}
	if _, err := conn.ReadMessage(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF on normal close, got %v", err)
	}
}

// TestSession_OverWebsocket runs a full claim round trip against a scripted engine
func TestSession_OverWebsocket(t *testing.T) {
	acked := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var setup map[string]json.RawMessage
		if err := conn.ReadJSON(&setup); err != nil || setup["setup"] == nil {
			return
		}
		_ = conn.WriteJSON(map[string]any{"setupComplete": map[string]any{}})
		_ = conn.WriteJSON(map[string]any{
			"toolCall": map[string]any{
				"functionCalls": []map[string]any{
					{"id": "fc-7", "name": ToolName, "args": map[string]any{"claim": "The moon is made of rock"}},
				},
			},
		})

		for {
			var msg struct {
				ToolResponse *struct {
					FunctionResponses []struct {
						ID string `json:"id"`
					} `json:"functionResponses"`
				} `json:"toolResponse"`
			}
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.ToolResponse != nil && len(msg.ToolResponse.FunctionResponses) == 1 {
				acked <- msg.ToolResponse.FunctionResponses[0].ID
				return
			}
		}
	}))
	defer srv.Close()

	capt := newFakeCapturer()
	s := NewSession(Config{Model: "models/test"}, &WebsocketDialer{Endpoint: wsURL(srv), APIKey: "k"}, capt)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	select {
	case ev := <-s.Claims():
		if ev.Claim != "The moon is made of rock" || ev.CallID != "fc-7" {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for claim")
	}

	select {
	case id := <-acked:
		if id != "fc-7" {
			t.Errorf("expected ack for fc-7, got %s", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for acknowledgement")
	}
}
