//go:generate mockgen -destination=mocks/mock_asker.go -package=mocks proclens/web Asker,SnapshotSource

// Package web serves the process table, the question form and a small JSON API.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"proclens/models"

	units "github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

//go:embed templates static
var assets embed.FS

const shutdownTimeout = 5 * time.Second

// SnapshotSource hands out the latest published snapshot
type SnapshotSource interface {
	Load() *models.Snapshot
}

// Asker answers a question about a snapshot. Failures come back as text.
type Asker interface {
	Ask(ctx context.Context, question string, snap *models.Snapshot) string
}

type askRequest struct {
	Question string `json:"question"`
}

type pageData struct {
	Snapshot      *models.Snapshot
	Latest        *models.QueryAnswer
	History       []models.QueryAnswer
	RefreshMillis int64
}

// Server is the browser-facing HTTP surface
type Server struct {
	snapshots SnapshotSource
	asker     Asker
	history   *History
	metrics   http.Handler
	refresh   time.Duration
	page      *template.Template

	// one query in flight at a time
	slot chan struct{}
}

// NewServer wires the handlers. metricsHandler may be nil, in which case
// /metrics is not served.
func NewServer(snapshots SnapshotSource, asker Asker, refresh time.Duration, metricsHandler http.Handler) (*Server, error) {
	page, err := template.New("index.html").Funcs(templateFuncs).ParseFS(assets, "templates/index.html")
	if err != nil {
		return nil, errors.Wrap(err, "parse templates")
	}
	return &Server{
		snapshots: snapshots,
		asker:     asker,
		history:   NewHistory(),
		metrics:   metricsHandler,
		refresh:   refresh,
		page:      page,
		slot:      make(chan struct{}, 1),
	}, nil
}

var templateFuncs = template.FuncMap{
	"kb": func(v float64) string { return fmt.Sprintf("%.2f K", v) },
	"ms": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"pct": func(v float64) string {
		return fmt.Sprintf("%.1f%%", v)
	},
	"bytes": func(v uint64) string { return units.BytesSize(float64(v)) },
	"uptime": func(secs uint64) string {
		return units.HumanDuration(time.Duration(secs) * time.Second)
	},
	"clock": func(t time.Time) string { return t.Format("15:04:05") },
}

// History exposes the chat log, mostly for tests and the CLI
func (s *Server) History() *History {
	return s.history
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	static, _ := fs.Sub(assets, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /ask", s.handleAskForm)
	mux.HandleFunc("GET /api/processes", s.handleProcesses)
	mux.HandleFunc("POST /api/ask", s.handleAskJSON)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

// ListenAndServe blocks until ctx is cancelled or the listener fails
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("Web UI listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrapf(err, "listen on %s", addr)
	case <-ctx.Done():
	}

	log.Info("Shutting down web UI...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown web UI")
	}
	return nil
}

// ask forwards one question against the current snapshot and records it
func (s *Server) ask(ctx context.Context, question string) (models.QueryAnswer, error) {
	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return models.QueryAnswer{}, ctx.Err()
	}
	defer func() { <-s.slot }()

	snap := s.snapshots.Load()
	entry := models.QueryAnswer{
		ID:       uuid.NewString(),
		Question: question,
		AskedAt:  time.Now(),
	}
	entry.Text = s.asker.Ask(ctx, question, snap)
	s.history.Append(entry)

	log.WithFields(log.Fields{
		"id":        entry.ID,
		"processes": len(snap.Processes),
		"took":      time.Since(entry.AskedAt).Round(time.Millisecond),
	}).Info("Answered question")
	return entry, nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Snapshot:      s.snapshots.Load(),
		History:       s.history.NewestFirst(),
		RefreshMillis: s.refresh.Milliseconds(),
	}
	if len(data.History) > 0 {
		data.Latest = &data.History[0]
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, data); err != nil {
		log.WithError(err).Error("Failed to render page")
	}
}

func (s *Server) handleAskForm(w http.ResponseWriter, r *http.Request) {
	question := strings.TrimSpace(r.FormValue("question"))
	if question != "" {
		if _, err := s.ask(r.Context(), question); err != nil {
			log.WithError(err).Debug("Question abandoned")
			return
		}
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleAskJSON(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}

	entry, err := s.ask(r.Context(), question)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, entry)
}

func (s *Server) handleProcesses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.snapshots.Load())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.history.All())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshots.Load()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if snap.CapturedAt.IsZero() {
		fmt.Fprintln(w, "ok (no snapshot yet)")
		return
	}
	fmt.Fprintf(w, "ok (snapshot age %s)\n", snap.Age().Round(time.Millisecond))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}
