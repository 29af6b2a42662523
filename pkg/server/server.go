// Package server exposes the probe orchestrator over HTTP: an HTML
// status page, a JSON endpoint, and Prometheus exposition.
package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/redpill-linpro/kanari/pkg/config"
	"github.com/redpill-linpro/kanari/pkg/probe"
	"github.com/redpill-linpro/kanari/pkg/probe/mysql"
	"github.com/redpill-linpro/kanari/pkg/probe/postgres"
	"github.com/redpill-linpro/kanari/pkg/probe/s3"
)

// versionString is shown on the status page.
const versionString = "1.2.1"

// Server runs orchestration passes on demand and serves the results.
type Server struct {
	cfg       *config.Config
	logger    *logrus.Logger
	pool      *probe.Pool
	runner    *probe.Runner
	probes    []probe.Probe
	limiter   *rate.Limiter
	templates *template.Template
	registry  *prometheus.Registry
	pass      *passMetrics
	httpSrv   *http.Server
}

// Option is a functional option for configuring a Server.
type Option func(*Server) error

// WithProbes replaces the default probe set. Used by tests to
// substitute fixture probes.
func WithProbes(probes ...probe.Probe) Option {
	return func(s *Server) error {
		if len(probes) == 0 {
			return fmt.Errorf("at least one probe is required")
		}
		s.probes = probes
		return nil
	}
}

// New builds a Server from the given configuration. The worker pool,
// executor, and probes live for the lifetime of the server; backend
// connections do not — every pass creates and tears down its own.
func New(cfg *config.Config, logger *logrus.Logger, opts ...Option) (*Server, error) {
	templates, err := template.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("server: parsing templates: %w", err)
	}

	pool := probe.NewPool(cfg.ProbeWorkers, logger)
	exec := probe.NewExecutor(pool, cfg.ProbeDeadline, logger)

	mysqlProbe, err := mysql.New(mysql.Config{
		Host:     cfg.MySQL.Host,
		Port:     cfg.MySQL.Port,
		Database: cfg.MySQL.Database,
		Table:    cfg.MySQL.Table,
		User:     cfg.MySQL.User,
		Password: cfg.MySQL.Password,
	}, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("server: %w", err)
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		runner: probe.NewRunner(exec, logger),
		probes: []probe.Probe{
			mysqlProbe,
			postgres.New(postgres.Config{
				Host:     cfg.Postgres.Host,
				Port:     cfg.Postgres.Port,
				Database: cfg.Postgres.Database,
				Table:    cfg.Postgres.Table,
				User:     cfg.Postgres.User,
				Password: cfg.Postgres.Password,
			}, logger),
			s3.New(s3.Config{
				Endpoint:  cfg.S3.Endpoint,
				Region:    cfg.S3.Region,
				Bucket:    cfg.S3.Bucket,
				AccessKey: cfg.S3.AccessKey,
				SecretKey: cfg.S3.SecretKey,
			}, logger),
		},
		limiter:   rate.NewLimiter(rate.Limit(10), 20),
		templates: templates,
		registry:  prometheus.NewRegistry(),
	}
	s.pass = newPassMetrics(s.registry)

	for _, opt := range opts {
		if err := opt(s); err != nil {
			pool.Close()
			return nil, fmt.Errorf("server: %w", err)
		}
	}

	for _, p := range s.probes {
		if ok, _ := p.Enabled(); ok {
			logger.Infof("probe %s enabled", p.Name())
		} else {
			logger.Infof("probe %s disabled", p.Name())
		}
	}

	return s, nil
}

// Start begins serving HTTP in the background.
func (s *Server) Start() {
	s.httpSrv = s.newHTTPServer(s.cfg.ListenAddr())

	go func() {
		s.logger.Infof("starting HTTP server on %s", s.cfg.ListenAddr())
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Fatalf("HTTP server failed: %v", err)
		}
	}()
}

// Stop shuts the HTTP listener down gracefully and stops the pool
// workers. The context bounds the listener shutdown; pool teardown
// waits for abandoned probes still occupying workers to return.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Shutdown(ctx)
	}
	s.pool.Close()
	return err
}
