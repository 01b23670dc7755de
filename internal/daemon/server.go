package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"parley/internal/api"
	"parley/internal/config"
	"parley/internal/logging"
	"parley/internal/metrics"
	"parley/internal/orchestrator"
	"parley/internal/services"
	"parley/internal/session"
	"parley/internal/store"
)

type apiServer struct {
	bind   string
	token  string
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		token:  strings.TrimSpace(cfg.Paths.APIToken),
		daemon: d,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	authed := router.Group("/api", srv.requireToken)
	authed.POST("/scrapes", srv.handleSubmit)
	authed.GET("/jobs", srv.handleListJobs)
	authed.GET("/jobs/:id", srv.handleGetJob)
	authed.DELETE("/jobs", srv.handleClearJobs)
	authed.POST("/sessions", srv.handleCreateSession)
	authed.DELETE("/conversations/:id", srv.handleEndConversation)
	authed.GET("/personas", srv.handleListPersonas)
	authed.GET("/replicas", srv.handleListReplicas)
	authed.GET("/status", srv.handleStatus)

	srv.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.daemon.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.daemon.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr returns the bound listen address, useful when binding to port 0.
func (s *apiServer) Addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

// requireToken enforces bearer auth when an API token is configured.
func (s *apiServer) requireToken(c *gin.Context) {
	if s.token == "" {
		c.Next()
		return
	}
	header := c.GetHeader("Authorization")
	if header != "Bearer "+s.token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "invalid or missing api token"})
		return
	}
	c.Next()
}

func (s *apiServer) handleSubmit(c *gin.Context) {
	var req api.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request body"})
		return
	}

	mode := store.ModeCrawl
	if req.Mode != "" {
		mode = store.Mode(req.Mode)
		if mode != store.ModeCrawl && mode != store.ModeSingle {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: fmt.Sprintf("unknown mode %q", req.Mode)})
			return
		}
	}

	report, err := s.daemon.orch.SubmitBatch(c.Request.Context(), req.URLs, orchestrator.SubmitOptions{Mode: mode})
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	_ = s.daemon.notifier.NotifyBatchStarted(c.Request.Context(), len(report.JobIDs))
	c.JSON(http.StatusAccepted, api.SubmitResponse{
		JobIDs:      report.JobIDs,
		InvalidURLs: report.InvalidURLs,
	})
}

func (s *apiServer) handleListJobs(c *gin.Context) {
	var statuses []store.Status
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status, ok := store.ParseStatus(part)
			if !ok {
				c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: fmt.Sprintf("unknown status %q", strings.TrimSpace(part))})
				return
			}
			statuses = append(statuses, status)
		}
	}

	jobs, err := s.daemon.store.ListJobs(c.Request.Context(), statuses...)
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.JobsToViews(jobs))
}

func (s *apiServer) handleGetJob(c *gin.Context) {
	job, err := s.daemon.store.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "job not found"})
		return
	}
	c.JSON(http.StatusOK, api.JobToView(job))
}

func (s *apiServer) handleClearJobs(c *gin.Context) {
	removed, err := s.daemon.store.ClearJobs(c.Request.Context())
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.ClearResponse{Removed: removed})
}

func (s *apiServer) handleCreateSession(c *gin.Context) {
	var req api.SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request body"})
		return
	}

	handle, err := s.daemon.assembler.AssembleSession(c.Request.Context(), req.JobIDs, session.Options{
		AllowEmpty: req.AllowEmpty,
	})
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	_ = s.daemon.notifier.NotifySessionCreated(c.Request.Context(), handle.Label, handle.ConversationURL)

	resp := api.SessionResponse{
		ConversationID:  handle.ConversationID,
		ConversationURL: handle.ConversationURL,
		PersonaID:       handle.PersonaID,
		Label:           handle.Label,
	}
	if handle.PersonaErr != nil {
		resp.PersonaError = handle.PersonaErr.Error()
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *apiServer) handleEndConversation(c *gin.Context) {
	if s.daemon.avatar == nil {
		c.JSON(http.StatusServiceUnavailable, api.ErrorResponse{Error: "avatar service not configured"})
		return
	}
	if err := s.daemon.avatar.EndConversation(c.Request.Context(), c.Param("id")); err != nil {
		s.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *apiServer) handleListPersonas(c *gin.Context) {
	if s.daemon.avatar == nil {
		c.JSON(http.StatusServiceUnavailable, api.ErrorResponse{Error: "avatar service not configured"})
		return
	}
	personas, err := s.daemon.avatar.ListPersonas(c.Request.Context())
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	views := make([]api.PersonaView, 0, len(personas))
	for _, p := range personas {
		views = append(views, api.PersonaView{
			PersonaID:   p.PersonaID,
			PersonaName: p.PersonaName,
			CreatedAt:   p.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, views)
}

func (s *apiServer) handleListReplicas(c *gin.Context) {
	if s.daemon.avatar == nil {
		c.JSON(http.StatusServiceUnavailable, api.ErrorResponse{Error: "avatar service not configured"})
		return
	}
	replicas, err := s.daemon.avatar.ListReplicas(c.Request.Context())
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	views := make([]api.ReplicaView, 0, len(replicas))
	for _, r := range replicas {
		views = append(views, api.ReplicaView{
			ReplicaID:   r.ReplicaID,
			ReplicaName: r.ReplicaName,
			Status:      r.Status,
		})
	}
	c.JSON(http.StatusOK, views)
}

func (s *apiServer) handleStatus(c *gin.Context) {
	stats, err := s.daemon.Status(c.Request.Context())
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	jobs := make(map[string]int, len(stats))
	for status, count := range stats {
		jobs[string(status)] = count
	}
	c.JSON(http.StatusOK, api.StatusResponse{
		Running:      s.daemon.Running(),
		Jobs:         jobs,
		DatabasePath: s.daemon.store.Path(),
		LockFilePath: s.daemon.lockPath,
	})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func (s *apiServer) writeServiceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNoUsableContent):
		status = http.StatusConflict
	case errors.Is(err, services.ErrConcurrencyLimit):
		status = http.StatusTooManyRequests
	case errors.Is(err, services.ErrTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, services.ErrUpstream), errors.Is(err, services.ErrSessionCreation):
		status = http.StatusBadGateway
	}
	c.JSON(status, api.ErrorResponse{Error: err.Error()})
}
