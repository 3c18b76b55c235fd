// Package server exposes the aggregator over HTTP with gin.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rapfii/NEXUS-Terminal-sub001/config"
	"github.com/rapfii/NEXUS-Terminal-sub001/internal/cache"
	"github.com/rapfii/NEXUS-Terminal-sub001/internal/metrics"
	"github.com/rapfii/NEXUS-Terminal-sub001/logger"
	"github.com/rapfii/NEXUS-Terminal-sub001/models"
)

const (
	defaultPort     = "8080"
	shutdownTimeout = 5 * time.Second
)

// Service is the inbound surface of the gateway.
type Service interface {
	Aggregate(ctx context.Context, inst models.Instrument) (*models.Aggregate, error)
	AggregateFunding(ctx context.Context, inst models.Instrument) (*models.FundingAggregate, error)
	CompareExecution(ctx context.Context, inst models.Instrument, size float64, side models.Side) (*models.ExecutionComparison, error)
	FetchOne(ctx context.Context, source string, kind models.DataKind, inst models.Instrument) (any, error)
	Sources() []string
}

// Server hosts the gateway API.
type Server struct {
	cfg           config.ServerConfig
	version       string
	prometheus    bool
	svc           Service
	cache         *cache.Cache
	log           *logger.Log
	metricStore   *metricStore
	logStore      *logStore
	metricHandler metrics.MetricHandlerID
	httpServer    *http.Server
}

// NewServer registers the event stores with the metric dispatcher and the
// logger. c may be nil, in which case /healthz omits cache statistics.
func NewServer(cfg *config.Config, svc Service, c *cache.Cache, log *logger.Log) *Server {
	srvCfg := cfg.Server
	srvCfg.Address = normalizeAddress(srvCfg.Address)

	metricStore := newMetricStore(srvCfg.EventHistory)
	handlerID := metrics.RegisterMetricHandler(metricStore.handle)

	logStore := newLogStore(srvCfg.EventHistory)
	log.AddHook(logStore)

	return &Server{
		cfg:           srvCfg,
		version:       cfg.Gateway.Version,
		prometheus:    cfg.Metrics.Prometheus,
		svc:           svc,
		cache:         c,
		log:           log,
		metricStore:   metricStore,
		logStore:      logStore,
		metricHandler: handlerID,
	}
}

// Run starts the HTTP server and blocks until ctx is cancelled or the server
// fails. In-flight requests get shutdownTimeout to finish.
func (s *Server) Run(ctx context.Context) error {
	defer s.cleanup()

	router, err := s.buildRouter()
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.log.WithComponent("server").WithFields(logger.Fields{"address": s.cfg.Address}).Info("http server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if err == nil {
			return nil
		}
		return err
	}
}

func (s *Server) cleanup() {
	metrics.UnregisterMetricHandler(s.metricHandler)
	if s.logStore != nil {
		s.logStore.close()
	}
}

// Address reports the network address the server listens on.
func (s *Server) Address() string {
	return s.cfg.Address
}

func (s *Server) buildRouter() (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestContext())
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	router.GET("/healthz", s.health)
	if s.prometheus {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	api := router.Group("/api/v1")
	api.GET("/aggregate/:instrument", s.aggregate)
	api.GET("/funding/:instrument", s.funding)
	api.GET("/execution/:instrument", s.execution)
	api.GET("/sources/:source/:kind/:instrument", s.fetchOne)
	api.GET("/events/metrics", s.metricEvents)
	api.GET("/events/logs", s.logEvents)

	return router, nil
}

func (s *Server) health(c *gin.Context) {
	body := gin.H{
		"status":  "ok",
		"version": s.version,
		"sources": s.svc.Sources(),
	}
	if s.cache != nil {
		body["cache"] = s.cache.Stats()
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) metricEvents(c *gin.Context) {
	snapshot := s.metricStore.snapshot()
	payload := make([]gin.H, 0, len(snapshot))
	for _, m := range snapshot {
		payload = append(payload, gin.H{
			"timestamp": m.Timestamp.Format(time.RFC3339Nano),
			"component": m.Component,
			"name":      m.Name,
			"value":     m.Value,
			"type":      m.Type,
			"fields":    m.Fields,
		})
	}
	c.JSON(http.StatusOK, gin.H{"metrics": payload})
}

func (s *Server) logEvents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"logs": s.logStore.snapshot()})
}

// normalizeAddress turns listen addresses such as ":9090", "localhost" or
// "http://host:port/" into host:port. An empty or "*" host binds every
// interface.
func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return net.JoinHostPort("0.0.0.0", defaultPort)
	}
	if strings.Contains(addr, "://") {
		addr = stripScheme(addr)
	}

	if host, port, err := net.SplitHostPort(addr); err == nil {
		if host == "" || host == "*" {
			host = "0.0.0.0"
		}
		if port == "" {
			port = defaultPort
		}
		return net.JoinHostPort(host, port)
	}
	if net.ParseIP(addr) != nil || !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, defaultPort)
	}
	return addr
}

func stripScheme(addr string) string {
	u, err := url.Parse(addr)
	switch {
	case err != nil:
		return addr
	case u.Host != "":
		return u.Host
	case u.Opaque != "":
		return u.Opaque
	}
	return addr
}
