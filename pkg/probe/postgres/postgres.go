// Package postgres implements the PostgreSQL latency probe.
//
// Same step sequence as the MySQL probe (connect, first fetch, ten
// warmed-up fetches, teardown) but with a single connection attempt;
// PostgreSQL deployments this probe targets sit behind stable poolers
// where a retry loop only masks real trouble.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	"github.com/sirupsen/logrus"

	"github.com/redpill-linpro/kanari/pkg/probe"
)

const (
	// TypeName is the probe name and metric key prefix.
	TypeName = "postgres"

	fetchRepetitions = 10
)

// Config holds the backend coordinates for a PostgreSQL probe.
type Config struct {
	Host     string
	Port     int
	Database string
	Table    string
	User     string
	Password string
}

// Probe exercises a PostgreSQL server.
type Probe struct {
	cfg    Config
	logger *logrus.Logger
}

// New creates a PostgreSQL probe.
func New(cfg Config, logger *logrus.Logger) *Probe {
	return &Probe{cfg: cfg, logger: logger}
}

// Name returns the probe name.
func (p *Probe) Name() string {
	return TypeName
}

// Enabled reports whether a PostgreSQL host is configured.
func (p *Probe) Enabled() (bool, string) {
	if p.cfg.Host == "" {
		return false, "PostgreSQL not configured (PG_HOST not set)"
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
	metrics["postgres_connect_time"] = elapsed
	if err != nil {
		return p.fail(metrics, err)
	}

	closed := false
	defer func() {
		if closed {
			return
		}
		if cerr := db.Close(); cerr != nil {
			p.logger.Warnf("postgres: close after failure: %v", cerr)
		}
	}()

	query := fmt.Sprintf("SELECT * FROM %s ORDER BY (SELECT NULL) DESC LIMIT 1", p.cfg.Table)

	elapsed, err = probe.Time(func() error {
		return fetchOne(ctx, db, query)
	})
	metrics["postgres_first_fetch_time"] = elapsed
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
	metrics["postgres_fetch_worst"] = summary.Worst
	metrics["postgres_fetch_best"] = summary.Best
	metrics["postgres_fetch_avg"] = summary.Avg

	elapsed, err = probe.Time(db.Close)
	closed = true
	metrics["postgres_close_time"] = elapsed
	if err != nil {
		return p.fail(metrics, err)
	}

	return probe.Success(metrics)
}

func (p *Probe) fail(metrics probe.Metrics, err error) probe.Outcome {
	p.logger.Warnf("postgres: probe failed: %v", err)
	metrics["postgres_error"] = err.Error()
	return probe.SoftError(metrics)
}

// dsn renders the keyword/value connection string. Every string value
// is quoted: libpq's parser treats an unquoted empty value as missing
// and consumes the next keyword as its content, so an empty password
// would otherwise swallow the dbname setting.
func (p *Probe) dsn() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		quoteSetting(p.cfg.Host), p.cfg.Port, quoteSetting(p.cfg.User),
		quoteSetting(p.cfg.Password), quoteSetting(p.cfg.Database))
}

func quoteSetting(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// connect opens and pings the database once.
func (p *Probe) connect(ctx context.Context) (*sql.DB, error) {
	dsn := p.dsn()

	p.logger.Infof("postgres: connecting to database %s on %s:%d",
		p.cfg.Database, p.cfg.Host, p.cfg.Port)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		if cerr := db.Close(); cerr != nil {
			p.logger.Warnf("postgres: close after failed ping: %v", cerr)
		}
		return nil, err
	}
	return db, nil
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
