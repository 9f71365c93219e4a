package controlplane

import (
	"context"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fentz26/pomo/internal/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

// Server provides the HTTP API for pomo.
type Server struct {
	service *Service
	addr    string
	router  *gin.Engine
	server  *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(service *Service, addr string) *Server {
	s := &Server{
		service: service,
		addr:    addr,
	}
	s.router = s.routes()
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/health", s.handleHealth)

	api := r.Group("/api")
	api.GET("/state", s.getState)
	api.GET("/events", s.streamEvents)
	for _, ev := range []models.Event{models.EventStart, models.EventPause, models.EventReset, models.EventSkip} {
		api.POST("/"+ev.Intent(), s.applyIntent(ev.Intent()))
	}

	notice := api.Group("/notice")
	notice.POST("/ack", s.ackNotice)
	notice.POST("/dismiss", s.dismissNotice)

	api.PUT("/settings", s.updateSettings)
	api.GET("/intervals", s.listIntervals)
	api.DELETE("/intervals", s.clearIntervals)
	api.GET("/stats", s.getStats)
	api.GET("/transitions", s.listTransitions)

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	// No WriteTimeout: /api/events streams for as long as the client stays.
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("Starting pomo daemon on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func writeError(c *gin.Context, apiErr *APIError) {
	if apiErr == nil {
		apiErr = Internal("")
	}
	body := gin.H{
		"code":    apiErr.Code,
		"message": apiErr.Message,
	}
	if apiErr.Details != nil {
		body["details"] = apiErr.Details
	}
	c.JSON(apiErr.Status, gin.H{"error": body})
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := HealthResponse{
		OK:      true,
		DB:      "ok",
		Version: Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK
	if err := s.service.Ping(c.Request.Context()); err != nil {
		resp.OK = false
		resp.DB = err.Error()
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

// --- Timer Handlers ---

func (s *Server) getState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"state": s.service.State()})
}

func (s *Server) applyIntent(intent string) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := s.service.Apply(c.Request.Context(), intent)
		if err != nil {
			writeError(c, toAPIError(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"state": snap})
	}
}

// streamEvents sends the current snapshot, then every published one, as
// server-sent "state" events.
func (s *Server) streamEvents(c *gin.Context) {
	updates, cancel := s.service.Subscribe(16)
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.SSEvent("state", s.service.State())
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case snap, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("state", snap)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

type noticeRequest struct {
	ID string `json:"id"`
}

func (s *Server) ackNotice(c *gin.Context) {
	s.resolveNotice(c, s.service.Acknowledge)
}

func (s *Server) dismissNotice(c *gin.Context) {
	s.resolveNotice(c, s.service.Dismiss)
}

func (s *Server) resolveNotice(c *gin.Context, resolve func(string) error) {
	var req noticeRequest
	// An empty body resolves whatever notice is pending.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, BadRequest("invalid_json", "invalid request body"))
			return
		}
	}
	if err := resolve(req.ID); err != nil {
		writeError(c, toAPIError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) updateSettings(c *gin.Context) {
	var patch SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		writeError(c, BadRequest("invalid_json", "invalid request body"))
		return
	}
	snap, err := s.service.UpdateSettings(c.Request.Context(), patch)
	if err != nil {
		writeError(c, toAPIError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": snap})
}

// --- History Handlers ---

// parseDay accepts YYYY-MM-DD (local midnight) or RFC3339.
func parseDay(v string) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", v, time.Local); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}

func (s *Server) listIntervals(c *gin.Context) {
	now := time.Now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	to := from.AddDate(0, 0, 1)

	if v := c.Query("from"); v != "" {
		t, err := parseDay(v)
		if err != nil {
			writeError(c, BadRequest("invalid_from", "from must be YYYY-MM-DD or RFC3339"))
			return
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := parseDay(v)
		if err != nil {
			writeError(c, BadRequest("invalid_to", "to must be YYYY-MM-DD or RFC3339"))
			return
		}
		to = t
	}

	intervals, err := s.service.Intervals(c.Request.Context(), from, to)
	if err != nil {
		writeError(c, toAPIError(err))
		return
	}
	if intervals == nil {
		intervals = []models.CompletedInterval{}
	}
	c.JSON(http.StatusOK, gin.H{"intervals": intervals})
}

func (s *Server) clearIntervals(c *gin.Context) {
	n, err := s.service.ClearHistory(c.Request.Context())
	if err != nil {
		writeError(c, toAPIError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (s *Server) getStats(c *gin.Context) {
	days := 7
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 366 {
			writeError(c, BadRequest("invalid_days", "days must be between 1 and 366"))
			return
		}
		days = n
	}

	stats, err := s.service.Stats(c.Request.Context(), days)
	if err != nil {
		writeError(c, toAPIError(err))
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) listTransitions(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(c, BadRequest("invalid_limit", "limit must be a positive integer"))
			return
		}
		limit = n
	}

	entries, err := s.service.Transitions(c.Request.Context(), limit)
	if err != nil {
		writeError(c, toAPIError(err))
		return
	}
	if entries == nil {
		entries = []models.TransitionEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"transitions": entries})
}
