package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/truthwire/internal/orchestrator"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsEventBuffer  = 64
)

func (s *Server) listHandler(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil {
			c.JSON(http.StatusOK, gin.H{"claims": []any{}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"claims": store.List()})
	}
}

func (s *Server) getClaimHandler(c *gin.Context) {
	if s.deps.Library == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "claim not found"})
		return
	}

	rec, ok := s.deps.Library.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "claim not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) dismissHandler(c *gin.Context) {
	if s.deps.Dismisser == nil || !s.deps.Dismisser.Dismiss(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "claim not active"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) submitHandler(c *gin.Context) {
	if s.deps.Submitter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "submission disabled"})
		return
	}

	var payload struct {
		Claim string `json:"claim"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if strings.TrimSpace(payload.Claim) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "claim is required"})
		return
	}

	id, ok := s.deps.Submitter.Submit(payload.Claim)
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate of a recent claim"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id})
}

func (s *Server) healthHandler(c *gin.Context) {
	state := "none"
	if s.deps.SessionState != nil {
		state = s.deps.SessionState()
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "session": state})
}

// websocketHandler streams every mutation of both collections as JSON events
func (s *Server) websocketHandler(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	merged := make(chan orchestrator.Event, wsEventBuffer)
	done := make(chan struct{})
	defer close(done)

	for _, store := range []Store{s.deps.Active, s.deps.Library} {
		if store == nil {
			continue
		}
		events, cancel := store.Subscribe(wsEventBuffer)
		defer cancel()
		go forward(events, merged, done)
	}

	// Reader detects the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case ev := <-merged:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				s.log.WithError(err).Debug("websocket write failed")
				return
			}
		}
	}
}

func forward(in <-chan orchestrator.Event, out chan<- orchestrator.Event, done <-chan struct{}) {
	for ev := range in {
		select {
		case out <- ev:
		case <-done:
			return
		}
	}
}
