// Package server exposes the operator status API: session inspection
// and cancellation over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"storyreel/internal/config"
	"storyreel/internal/store"
	"storyreel/internal/types"
)

// Server serves pipeline status over HTTP.
type Server struct {
	cfg      *config.ServerConfig
	sessions *store.SessionStore
	log      hclog.Logger
	http     *http.Server
}

// New builds the server and its routes.
func New(cfg *config.ServerConfig, sessions *store.SessionStore, log hclog.Logger) *Server {
	s := &Server{cfg: cfg, sessions: sessions, log: log.Named("server")}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	api.GET("/health", s.health)
	api.GET("/sessions", s.listSessions)
	api.GET("/sessions/:id", s.getSession)
	api.POST("/sessions/:id/cancel", s.cancelSession)

	s.http = &http.Server{Addr: cfg.Addr, Handler: router}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("status API listening", "addr", s.cfg.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) health(c *gin.Context) {
	sessions, err := s.sessions.ListAll(0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	byStage := map[string]int{}
	for _, sess := range sessions {
		byStage[string(sess.Stage)]++
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"time":     time.Now().UTC(),
		"sessions": byStage,
	})
}

func (s *Server) listSessions(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	sessions, err := s.sessions.ListAll(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": summaries(sessions)})
}

func (s *Server) getSession(c *gin.Context) {
	sess, err := s.sessions.Load(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) cancelSession(c *gin.Context) {
	id := c.Param("id")
	sess, err := s.sessions.Load(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if sess.Stage.Terminal() {
		c.JSON(http.StatusConflict, gin.H{"error": "session already " + string(sess.Stage)})
		return
	}
	if err := s.sessions.SetCancelled(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id, "cancelled": true})
}

// sessionSummary is the list view of a session, without stage outputs.
type sessionSummary struct {
	ID            string    `json:"id"`
	SourceID      string    `json:"source_id"`
	Stage         string    `json:"stage"`
	Title         string    `json:"title,omitempty"`
	RemoteID      string    `json:"remote_id,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func summaries(sessions []*types.Session) []sessionSummary {
	out := make([]sessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		item := sessionSummary{
			ID:            sess.ID,
			SourceID:      sess.SourceID,
			Stage:         string(sess.Stage),
			RemoteID:      sess.Outputs.RemoteID,
			FailureReason: sess.FailureReason,
			UpdatedAt:     sess.UpdatedAt,
		}
		if sess.Outputs.Source != nil {
			item.Title = sess.Outputs.Source.Title
		}
		out = append(out, item)
	}
	return out
}
