// Package api exposes the task CRUD endpoints consumed by the web layer.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"assetlink/internal/metrics"
	"assetlink/internal/registry"
	"assetlink/internal/store"
	logx "assetlink/pkg/logx"
)

type Config struct {
	Addr             string
	CreateRatePerSec int
}

type Server struct {
	cfg Config
	reg *registry.Registry
	st  store.Store
	met *metrics.Metrics
	log logx.Logger

	createLimiter *rate.Limiter
	srv           *http.Server
}

func New(cfg Config, reg *registry.Registry, st store.Store, met *metrics.Metrics, log logx.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	rps := cfg.CreateRatePerSec
	if rps <= 0 {
		rps = 20
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{
		cfg:           cfg,
		reg:           reg,
		st:            st,
		met:           met,
		log:           log,
		createLimiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

func (s *Server) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	r.GET("/healthz", s.healthz)
	r.GET("/readyz", s.readyz)
	if s.met != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.met.Registry(), promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/api/v1")
	{
		v1.POST("/tasks", s.createTask)
		v1.GET("/tasks", s.listTasks)
		v1.GET("/tasks/:id", s.getTask)
		v1.DELETE("/tasks/:id", s.deleteTask)
	}
	return r
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http request",
			logx.String("method", c.Request.Method),
			logx.String("path", c.FullPath()),
			logx.Int("status", c.Writer.Status()),
			logx.Duration("dur", time.Since(start)))
	}
}

func (s *Server) Start(ctx context.Context) {
	_ = ctx
	s.srv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		s.log.Info("api listening", logx.String("addr", s.cfg.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("api server exited", logx.Err(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) {
	if s.srv == nil {
		return
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.Warn("api shutdown", logx.Err(err))
	}
}
