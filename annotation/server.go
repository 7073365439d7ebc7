package annotation

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"k8s.io/klog/v2"
)

// Metrics of the annotation server.
type Metrics struct {
	RowsServed  prometheus.Counter
	Submissions *prometheus.CounterVec
}

// NewMetrics creates the server metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RowsServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autohighlight_rows_served_total",
			Help: "Count of rows sent to the annotation UI",
		}),
		Submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autohighlight_submissions_total",
				Help: "Count of highlight submissions by outcome",
			},
			[]string{"outcome"},
		),
	}
	reg.MustRegister(m.RowsServed, m.Submissions)
	return m
}

// Server is the HTTP API of the annotation UI.
type Server struct {
	Store     *Store
	Submitter *Submitter
	Metrics   *Metrics

	// Gatherer serves /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer

	// AllowedOrigins for CORS; empty allows every origin.
	AllowedOrigins []string
}

// NewServer wires a Server with its own metrics registry.
func NewServer(store *Store, file *HighlightFile, interleaved bool) *Server {
	reg := prometheus.NewRegistry()
	return &Server{
		Store:     store,
		Submitter: &Submitter{Store: store, File: file, Interleaved: interleaved},
		Metrics:   NewMetrics(reg),
		Gatherer:  reg,
	}
}

// Handler returns the routes wrapped with CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/columns", s.handleColumns)
	mux.HandleFunc("GET /api/row/{index}", s.handleRow)
	mux.HandleFunc("POST /api/highlights", s.handleHighlights)
	if s.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}
	opts := cors.Options{
		AllowedOrigins: s.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return cors.New(opts).Handler(mux)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		klog.Warningf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "Annotation server is running.")
}

func (s *Server) handleColumns(w http.ResponseWriter, _ *http.Request) {
	columns := s.Store.Columns()
	if len(columns) == 0 {
		writeError(w, http.StatusInternalServerError, "No columns found.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"columns": columns})
}

func (s *Server) handleRow(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Row index must be an integer")
		return
	}
	row, err := s.Store.Row(index)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Row index out of range")
		return
	}
	s.Metrics.RowsServed.Inc()
	writeJSON(w, http.StatusOK, map[string]any{"row": row, "total_rows": s.Store.Len()})
}

func (s *Server) handleHighlights(w http.ResponseWriter, r *http.Request) {
	var sub Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		s.Metrics.Submissions.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "No data provided.")
		return
	}
	receipt, err := s.Submitter.Submit(r.Context(), &sub)
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		s.Metrics.Submissions.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, verr.Message)
		return
	case err != nil:
		s.Metrics.Submissions.WithLabelValues("error").Inc()
		klog.Errorf("Failed to save highlights: %+v", err)
		writeError(w, http.StatusInternalServerError, "Failed to save highlights.")
		return
	}
	s.Metrics.Submissions.WithLabelValues("ok").Inc()
	klog.Infof("Submission %s: saved highlights of %d rows to %s", receipt.SubmissionID, len(receipt.Stored), s.Submitter.File.Path)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       fmt.Sprintf("Highlights saved to %s successfully.", s.Submitter.File.Path),
		"submission_id": receipt.SubmissionID,
		"rows":          len(receipt.Stored),
	})
}
