// Package mysql implements the MariaDB/MySQL latency probe.
//
// The probe connects (with a capped retry loop), times a first row
// fetch separately from ten warmed-up fetches, and times the teardown.
// Every step failure is converted into a soft error carrying the
// timings captured so far.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"github.com/redpill-linpro/kanari/pkg/probe"
)

const (
	// TypeName is the probe name and metric key prefix.
	TypeName = "mysql"

	// fetchRepetitions is the number of warmed-up fetches timed for
	// the worst/best/avg summary.
	fetchRepetitions = 10

	// DefaultMaxRetries is the default number of connection attempts.
	DefaultMaxRetries = 5

	// DefaultRetryDelay is the default pause between attempts.
	DefaultRetryDelay = 2 * time.Second
)

// Config holds the backend coordinates for a MySQL probe.
type Config struct {
	Host     string
	Port     int
	Database string
	Table    string
	User     string
	Password string
}

// Probe exercises a MariaDB/MySQL server.
type Probe struct {
	cfg        Config
	maxRetries int
	retryDelay time.Duration
	logger     *logrus.Logger
}

// Option is a functional option for configuring a Probe.
type Option func(*Probe) error

// WithRetry overrides the connection retry policy.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(p *Probe) error {
		if maxRetries < 1 {
			return fmt.Errorf("max retries must be at least 1, got %d", maxRetries)
		}
		if delay < 0 {
			return fmt.Errorf("retry delay must not be negative, got %v", delay)
		}
		p.maxRetries = maxRetries
		p.retryDelay = delay
		return nil
	}
}

// New creates a MySQL probe.
func New(cfg Config, logger *logrus.Logger, opts ...Option) (*Probe, error) {
	p := &Probe{
		cfg:        cfg,
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		logger:     logger,
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, fmt.Errorf("mysql: %w", err)
		}
	}
	return p, nil
}

// Name returns the probe name.
func (p *Probe) Name() string {
	return TypeName
}

// Enabled reports whether a MySQL host is configured.
func (p *Probe) Enabled() (bool, string) {
	if p.cfg.Host == "" {
		return false, "MariaDB/MySQL not configured (DB_HOST not set)"
	}
	return true, ""
}

// Run executes the probe steps and classifies the result.
func (p *Probe) Run(ctx context.Context) probe.Outcome {
	if ok, reason := p.Enabled(); !ok {
		return probe.Disabled(reason)
	}

	metrics := make(probe.Metrics)

	db, elapsed, err := probe.TimeValue(func() (*sql.DB, error) {
		return p.connect(ctx)
	})
	metrics["mysql_connect_time"] = elapsed
	if err != nil {
		return p.fail(metrics, err)
	}

	// Close best-effort on every early exit; the success path times
	// the close itself and flips closed first.
	closed := false
	defer func() {
		if closed {
			return
		}
		if cerr := db.Close(); cerr != nil {
			p.logger.Warnf("mysql: close after failure: %v", cerr)
		}
	}()

	query := fmt.Sprintf("SELECT * FROM %s ORDER BY (SELECT NULL) DESC LIMIT 1", p.cfg.Table)

	elapsed, err = probe.Time(func() error {
		return fetchOne(ctx, db, query)
	})
	metrics["mysql_first_fetch_time"] = elapsed
	if err != nil {
		return p.fail(metrics, err)
	}

	samples := make([]float64, 0, fetchRepetitions)
	for i := 0; i < fetchRepetitions; i++ {
		elapsed, err := probe.Time(func() error {
			return fetchOne(ctx, db, query)
		})
		if err != nil {
			return p.fail(metrics, err)
		}
		samples = append(samples, elapsed)
	}
	summary, _ := probe.Summarize(samples)
	metrics["mysql_fetch_worst"] = summary.Worst
	metrics["mysql_fetch_best"] = summary.Best
	metrics["mysql_fetch_avg"] = summary.Avg

	elapsed, err = probe.Time(db.Close)
	closed = true
	metrics["mysql_close_time"] = elapsed
	if err != nil {
		return p.fail(metrics, err)
	}

	return probe.Success(metrics)
}

// fail records the error description and classifies the run as a soft
// error, preserving whatever timings were captured before the failure.
func (p *Probe) fail(metrics probe.Metrics, err error) probe.Outcome {
	p.logger.Warnf("mysql: probe failed: %v", err)
	metrics["mysql_error"] = err.Error()
	return probe.SoftError(metrics)
}

// connect opens and pings the database, retrying transient failures up
// to the configured maximum with a fixed delay between attempts.
func (p *Probe) connect(ctx context.Context) (*sql.DB, error) {
	dsn := (&mysql.Config{
		User:                 p.cfg.User,
		Passwd:               p.cfg.Password,
		Net:                  "tcp",
		Addr:                 fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port),
		DBName:               p.cfg.Database,
		AllowNativePasswords: true,
	}).FormatDSN()

	var lastErr error
	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		p.logger.Infof("mysql: connecting to database %s on %s:%d (attempt %d/%d)",
			p.cfg.Database, p.cfg.Host, p.cfg.Port, attempt, p.maxRetries)

		db, err := sql.Open("mysql", dsn)
		if err == nil {
			if err = db.PingContext(ctx); err == nil {
				return db, nil
			}
			if cerr := db.Close(); cerr != nil {
				p.logger.Warnf("mysql: close after failed ping: %v", cerr)
			}
		}
		lastErr = err

		p.logger.Warnf("mysql: connection attempt %d failed: %v", attempt, err)
		if attempt < p.maxRetries {
			select {
			case <-time.After(p.retryDelay):
			case <-ctx.Done():
				return nil, fmt.Errorf("connect aborted after %d attempts: %w", attempt, ctx.Err())
			}
		}
	}

	return nil, fmt.Errorf("could not connect after %d attempts: %w", p.maxRetries, lastErr)
}

// fetchOne runs the query and scans a single row without caring about
// the table's shape.
func fetchOne(ctx context.Context, db *sql.DB, query string) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	if rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return err
		}
		values := make([]any, len(cols))
		for i := range values {
			values[i] = new(sql.RawBytes)
		}
		if err := rows.Scan(values...); err != nil {
			return err
		}
	}
	return rows.Err()
}
