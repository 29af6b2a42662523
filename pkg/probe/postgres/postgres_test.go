package postgres

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/redpill-linpro/kanari/pkg/probe"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestProbe_Name(t *testing.T) {
	p := New(Config{}, testLogger())
	if p.Name() != "postgres" {
		t.Errorf("expected name 'postgres', got %q", p.Name())
	}
}

func TestProbe_DisabledWithoutHost(t *testing.T) {
	p := New(Config{}, testLogger())

	ok, reason := p.Enabled()
	if ok {
		t.Fatal("expected disabled without a host")
	}
	if !strings.Contains(reason, "PG_HOST") {
		t.Errorf("reason should point at the missing setting, got %q", reason)
	}

	out := p.Run(context.Background())
	if out.Kind != probe.KindDisabled {
		t.Errorf("expected disabled outcome, got %v", out.Kind)
	}
}

func TestProbe_EnabledWithHost(t *testing.T) {
	p := New(Config{Host: "pg.example.com", Port: 5432}, testLogger())
	if ok, _ := p.Enabled(); !ok {
		t.Error("expected enabled with a host")
	}
}

func TestProbe_ConnectionStringSurvivesParsing(t *testing.T) {
	cases := []struct {
		name     string
		password string
	}{
		{"empty password", ""},
		{"plain password", "s3cr3t"},
		{"quotes and backslashes", `we'ird\pass word`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := New(Config{
				Host:     "localhost",
				Port:     5432,
				Database: "kanari",
				User:     "alexander",
				Password: tc.password,
			}, testLogger())

			cfg, err := pgconn.ParseConfig(p.dsn())
			if err != nil {
				t.Fatalf("ParseConfig(%q) failed: %v", p.dsn(), err)
			}
			if cfg.Database != "kanari" {
				t.Errorf("expected database 'kanari', got %q", cfg.Database)
			}
			if cfg.User != "alexander" {
				t.Errorf("expected user 'alexander', got %q", cfg.User)
			}
			if cfg.Password != tc.password {
				t.Errorf("expected password %q, got %q", tc.password, cfg.Password)
			}
			if cfg.Host != "localhost" {
				t.Errorf("expected host 'localhost', got %q", cfg.Host)
			}
			if cfg.Port != 5432 {
				t.Errorf("expected port 5432, got %d", cfg.Port)
			}
		})
	}
}

func TestProbe_ConnectFailureIsSoftError(t *testing.T) {
	p := New(Config{
		Host:     "127.0.0.1",
		Port:     1,
		Database: "kanari",
		Table:    "kanari",
		User:     "nobody",
	}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	out := p.Run(ctx)
	if out.Kind != probe.KindSoftError {
		t.Fatalf("expected soft error, got %v", out.Kind)
	}
	if _, ok := out.Metrics["postgres_error"].(string); !ok {
		t.Error("soft error must carry a postgres_error description")
	}
	if _, ok := out.Metrics["postgres_connect_time"].(float64); !ok {
		t.Error("soft error must carry the connect timing")
	}
}
