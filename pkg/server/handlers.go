package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/redpill-linpro/kanari/pkg/probe"
)

// pageData is the template payload for the status page.
type pageData struct {
	Metrics probe.Metrics
	Version string
}

// errorData is the template payload for the error page.
type errorData struct {
	Title   string
	Message string
}

// runPass executes one orchestration pass and records it in the
// Prometheus collectors.
func (s *Server) runPass(ctx context.Context) probe.Report {
	start := time.Now()
	report := s.runner.Run(ctx, s.probes)
	s.pass.observe(report, time.Since(start).Seconds())
	return report
}

// handleIndex renders the status page. The template is rendered once
// just to measure how long rendering takes, then rendered again with
// the completed mapping so the measurement itself is on the page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	s.logger.Info("processing index request")

	report := s.runPass(r.Context())
	if !report.Served() {
		s.renderError(w, http.StatusGatewayTimeout, errorData{
			Title:   "504 Gateway Timeout",
			Message: "Service request timed out",
		})
		return
	}
	metrics := report.Metrics

	renderStart := time.Now()
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", pageData{Metrics: metrics, Version: versionString}); err != nil {
		s.logger.Errorf("rendering index: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	metrics["template_read_time"] = probe.Round(float64(time.Since(renderStart)) / float64(time.Millisecond))
	metrics["total_time"] = probe.Round(float64(time.Since(start)) / float64(time.Millisecond))

	buf.Reset()
	if err := s.templates.ExecuteTemplate(&buf, "index.html", pageData{Metrics: metrics, Version: versionString}); err != nil {
		s.logger.Errorf("rendering index: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Errorf("writing index response: %v", err)
	}
}

// handleReconnect runs a pass and returns the combined mapping as JSON.
func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	s.logger.Info("processing reconnect request")

	report := s.runPass(r.Context())
	if !report.Served() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusGatewayTimeout)
		if err := json.NewEncoder(w).Encode(map[string]string{"error": "Service request timed out"}); err != nil {
			s.logger.Errorf("writing reconnect error response: %v", err)
		}
		return
	}
	metrics := report.Metrics

	// Rendered and discarded, purely to measure template performance
	// like the HTML route does.
	renderStart := time.Now()
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", pageData{Metrics: metrics, Version: versionString}); err != nil {
		s.logger.Errorf("rendering index for measurement: %v", err)
	}
	metrics["template_read_time"] = probe.Round(float64(time.Since(renderStart)) / float64(time.Millisecond))
	metrics["total_time"] = probe.Round(float64(time.Since(start)) / float64(time.Millisecond))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(metrics); err != nil {
		s.logger.Errorf("writing reconnect response: %v", err)
	}
}

// handleFavicon answers browser favicon requests with no content so
// every page load does not also 404 against the catch-all route.
func handleFavicon(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// renderError writes the error page with the given status code.
func (s *Server) renderError(w http.ResponseWriter, status int, data errorData) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "error.html", data); err != nil {
		s.logger.Errorf("rendering error page: %v", err)
		http.Error(w, data.Message, status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Errorf("writing error response: %v", err)
	}
}
