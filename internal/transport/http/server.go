package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"simex/internal/config"
	"simex/internal/experiment"
	"simex/internal/logger"
	"simex/internal/recorder"
)

// Server exposes the results store and an experiment drop endpoint. It is
// a control plane for finished and in-flight runs, not an order-entry
// surface.
type Server struct {
	addr   string
	store  *recorder.Store
	tape   *recorder.TapeStore
	runner *experiment.Runner
	router *gin.Engine

	// baseCtx parents background experiment runs; set by Run before the
	// listener starts so host shutdown reaches them.
	baseCtx context.Context
}

type ServerConfig struct {
	Addr   string
	Store  *recorder.Store
	Tape   *recorder.TapeStore
	Runner *experiment.Runner
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil || cfg.Tape == nil {
		return nil, errors.New("http server needs the run and tape stores")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9981"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:   cfg.Addr,
		store:  cfg.Store,
		tape:   cfg.Tape,
		runner: cfg.Runner,
		router: router,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api")
	api.GET("/runs", s.handleRunList)
	api.GET("/runs/:id", s.handleRunDetail)
	api.GET("/runs/:id/trades", s.handleRunTrades)
	api.GET("/runs/:id/snapshots", s.handleRunSnapshots)
	api.POST("/experiments", s.handleExperimentSubmit)
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Infof("http server listening on %s", s.addr)
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleRunList(c *gin.Context) {
	runs, err := s.store.ListRuns()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleRunDetail(c *gin.Context) {
	info, err := s.store.GetRun(c.Param("id"))
	if errors.Is(err, recorder.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": info})
}

func (s *Server) handleRunTrades(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.store.GetRun(id); errors.Is(err, recorder.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	trades, err := s.tape.Trades(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) handleRunSnapshots(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.store.GetRun(id); errors.Is(err, recorder.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	snaps, err := s.store.Snapshots(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snaps})
}

// handleExperimentSubmit validates the posted document and runs it in the
// background; the response only acknowledges acceptance.
func (s *Server) handleExperimentSubmit(c *gin.Context) {
	if s.runner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "experiment runner disabled"})
		return
	}
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	info, err := experiment.ValidateDocument(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg, err := configFromRaw(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	runCtx := s.baseCtx
	if runCtx == nil {
		runCtx = context.Background()
	}
	go func() {
		if _, err := s.runner.Run(runCtx, cfg); err != nil {
			logger.Errorf("experiment %q failed: %v", info.Name, err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"name": info.Name, "seed": info.Seed})
}

func configFromRaw(raw []byte) (*config.Config, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return config.FromMap(doc)
}
