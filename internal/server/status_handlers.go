package server

import (
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/straja-ai/placeholder/internal/detection"
	"github.com/straja-ai/placeholder/internal/events"
	"github.com/straja-ai/placeholder/internal/logging"
)

const (
	isoFormat       = "2006-01-02T15:04:05.000000"
	defaultLogLimit = 100
	maxLogLimit     = 1000
)

type healthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Service:   serviceName,
		Timestamp: time.Now().Format(isoFormat),
		Version:   s.version,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ok")
}

type statusData struct {
	ServiceStatus     string         `json:"service_status"`
	Timestamp         string         `json:"timestamp"`
	UptimeSeconds     int64          `json:"uptime_seconds"`
	Version           string         `json:"version"`
	RecentLogsSummary map[string]int `json:"recent_logs_summary"`
	TotalRecentLogs   int            `json:"total_recent_logs"`
	Detector          detection.Info `json:"detector"`
	Events            events.Metrics `json:"events"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	recent := s.logs.Logs(defaultLogLimit, "")
	counts := make(map[string]int)
	for _, e := range recent {
		counts[e.Level]++
	}
	writeData(w, statusData{
		ServiceStatus:     "running",
		Timestamp:         time.Now().Format(isoFormat),
		UptimeSeconds:     int64(time.Since(s.started).Seconds()),
		Version:           s.version,
		RecentLogsSummary: counts,
		TotalRecentLogs:   len(recent),
		Detector:          s.svc.Info(),
		Events:            s.svc.EventMetrics(),
	})
}

type logsData struct {
	Logs        []logging.Entry `json:"logs"`
	Total       int             `json:"total"`
	Limit       int             `json:"limit"`
	LevelFilter *string         `json:"level_filter"`
}

// handleLogs serves the in-memory ring. An unparsable or non-positive limit
// falls back to 100; anything above 1000 is capped.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLogLimit
	}
	limit = min(limit, maxLogLimit)

	var filter *string
	level := strings.TrimSpace(q.Get("level"))
	if level != "" {
		filter = &level
	}
	entries := s.logs.Logs(limit, level)
	if entries == nil {
		entries = []logging.Entry{}
	}
	writeData(w, logsData{
		Logs:        entries,
		Total:       len(entries),
		Limit:       limit,
		LevelFilter: filter,
	})
}

func (s *Server) handleLogLevels(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeData(w, map[string][]string{"available_levels": logging.Levels})
}

var welcomeTmpl = template.Must(template.New("welcome").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>{{.Service}}</title></head>
<body>
<h1>{{.Service}} <small>{{.Version}}</small></h1>
<p>Status: running since {{.Started}}</p>
<ul>
<li>POST {{.Prefix}}/detect-company-name</li>
<li>GET {{.Prefix}}/detections/{id}</li>
<li>GET {{.Prefix}}/health</li>
<li>GET {{.Prefix}}/status</li>
<li>GET {{.Prefix}}/logs?limit=&amp;level=</li>
<li>GET {{.Prefix}}/logs/levels</li>
</ul>
</body>
</html>
`))

func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if !allowMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = welcomeTmpl.Execute(w, map[string]string{
		"Service": serviceName,
		"Version": s.version,
		"Prefix":  s.prefix,
		"Started": s.started.UTC().Format(time.RFC3339),
	})
}
