// Package api serves the live Remote-ID catalog and scan control over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/saviobatista/rid-tracker/internal/catalog"
	"github.com/saviobatista/rid-tracker/internal/remoteid"
	"github.com/saviobatista/rid-tracker/internal/session"
	"github.com/saviobatista/rid-tracker/internal/types"
)

// ErrUnavailable is returned by a Backend whose event loop has stopped.
var ErrUnavailable = errors.New("tracker unavailable")

// View is a catalog snapshot with its broadcasters ordered most recent first.
type View struct {
	Order   []string
	Catalog catalog.Catalog
}

// SessionInfo describes the scan session.
type SessionInfo struct {
	State     string `json:"state"`
	Interface string `json:"interface"`
	SessionID string `json:"session_id"`
}

// Backend is the tracker side of the API. Implementations run every call on
// the goroutine that owns the controller and the catalog.
type Backend interface {
	View(ctx context.Context) (View, error)
	Entry(ctx context.Context, id string, kind remoteid.MessageKind) (remoteid.Message, bool, error)
	StartScan(ctx context.Context) error
	StopScan(ctx context.Context) error
	Session(ctx context.Context) (SessionInfo, error)
	Status(ctx context.Context) ([]types.StatusEvent, error)
}

// Entry is one described message of a broadcaster. Key is the path segment
// that looks the entry up again.
type Entry struct {
	Kind    remoteid.MessageKind `json:"kind"`
	Key     string               `json:"key"`
	Title   string               `json:"title"`
	Fields  []remoteid.Field     `json:"fields"`
	Message json.RawMessage      `json:"message,omitempty"`
}

// Broadcaster is one catalog row.
type Broadcaster struct {
	ID      string  `json:"id"`
	Entries []Entry `json:"entries"`
}

// Server is the HTTP presentation surface.
type Server struct {
	backend  Backend
	gatherer prometheus.Gatherer
	router   *gin.Engine
	timeout  time.Duration
	logger   *log.Logger
}

// New creates a Server. gatherer may be nil, in which case /metrics is not
// served.
func New(backend Backend, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		backend:  backend,
		gatherer: gatherer,
		timeout:  5 * time.Second,
		logger:   log.Default().WithPrefix("api"),
	}
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router = gin.New()
	s.router.Use(gin.Recovery(), s.requestLogger())

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	api := s.router.Group("/api")
	{
		api.GET("/broadcasters", s.listBroadcasters)
		api.GET("/broadcasters/:id/:kind", s.getEntry)

		api.GET("/session", s.getSession)
		api.POST("/session/start", s.startSession)
		api.POST("/session/stop", s.stopSession)

		api.GET("/status", s.getStatus)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) context(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), s.timeout)
}

// listBroadcasters returns the whole catalog, most recent broadcaster first
func (s *Server) listBroadcasters(c *gin.Context) {
	ctx, cancel := s.context(c)
	defer cancel()

	view, err := s.backend.View(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}

	out := make([]Broadcaster, 0, len(view.Order))
	for _, id := range view.Order {
		entries := view.Catalog[id]
		b := Broadcaster{ID: id}
		for _, kind := range entries.Kinds() {
			msg := entries[kind]
			b.Entries = append(b.Entries, Entry{
				Kind:   kind,
				Key:    kind.Key(),
				Title:  kind.String(),
				Fields: remoteid.Describe(id, msg),
			})
		}
		out = append(out, b)
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  out,
		"count": len(out),
	})
}

// getEntry returns one described message; kind is an entry key, a title
// ("LOCATION") or a type code ("0x1"). Unknown kinds share the title
// "UNKNOWN" and are looked up by code.
func (s *Server) getEntry(c *gin.Context) {
	id := c.Param("id")
	kind, ok := remoteid.ParseKind(c.Param("kind"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message kind"})
		return
	}

	ctx, cancel := s.context(c)
	defer cancel()

	msg, found, err := s.backend.Entry(ctx, id, kind)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return
	}

	raw, err := remoteid.Marshal(msg)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Entry{
		Kind:    msg.Kind(),
		Key:     msg.Kind().Key(),
		Title:   msg.Kind().String(),
		Fields:  remoteid.Describe(id, msg),
		Message: raw,
	})
}

func (s *Server) getSession(c *gin.Context) {
	ctx, cancel := s.context(c)
	defer cancel()

	info, err := s.backend.Session(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) startSession(c *gin.Context) {
	s.control(c, s.backend.StartScan)
}

func (s *Server) stopSession(c *gin.Context) {
	s.control(c, s.backend.StopScan)
}

func (s *Server) control(c *gin.Context, op func(context.Context) error) {
	ctx, cancel := s.context(c)
	defer cancel()

	if err := op(ctx); err != nil {
		s.fail(c, err)
		return
	}
	info, err := s.backend.Session(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) getStatus(c *gin.Context) {
	ctx, cancel := s.context(c)
	defer cancel()

	events, err := s.backend.Status(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": events})
}

// fail maps controller and backend errors to HTTP status codes.
func (s *Server) fail(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrNotIdle), errors.Is(err, session.ErrNotScanning):
		code = http.StatusConflict
	case errors.Is(err, session.ErrInterfaceUnavailable):
		code = http.StatusServiceUnavailable
	case errors.Is(err, session.ErrScanRequestFailed):
		code = http.StatusBadGateway
	case errors.Is(err, ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		code = http.StatusServiceUnavailable
	}
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Request.URL.Path, "err", err)
	}
	c.JSON(code, gin.H{"error": err.Error()})
}
