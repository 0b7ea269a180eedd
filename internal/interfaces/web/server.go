package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/tock-booker/internal/domain/reservation"
	"github.com/example/tock-booker/internal/infrastructure/logging"
	"github.com/example/tock-booker/internal/internaltypes"
)

//go:embed templates/*.html
var templatesFS embed.FS

// RunReader is the read side of the attempt ledger.
type RunReader interface {
	List(ctx context.Context, limit int) ([]reservation.Run, error)
	Get(ctx context.Context, id string) (reservation.Run, error)
	Steps(ctx context.Context, runID string) ([]reservation.Step, error)
	Events(ctx context.Context, runID string) ([]reservation.RunEvent, error)
}

// Server exposes health, metrics and the run ledger.
type Server struct {
	runs    RunReader // nil when the ledger is disabled
	metrics http.Handler
	ping    func(context.Context) error
	log     *logging.Logger
	tmpl    *template.Template
}

type Options struct {
	Runs    RunReader
	Metrics http.Handler
	// Ping checks dependencies for /healthz; optional.
	Ping func(context.Context) error
	Log  *logging.Logger
}

func New(o Options) (*Server, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	log := o.Log
	if log == nil {
		log = logging.Nop()
	}
	return &Server{runs: o.Runs, metrics: o.Metrics, ping: o.Ping, log: log, tmpl: tmpl}, nil
}

func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logging)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
	r.HandleFunc("/", s.handleHome).Methods(http.MethodGet)
	r.HandleFunc("/runs", s.handleRuns).Methods(http.MethodGet)
	r.HandleFunc("/runs/{id}", s.handleRun).Methods(http.MethodGet)
	return r
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debugf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error, code int) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

var errLedgerDisabled = errors.New("attempt ledger disabled (DATABASE_URL not set)")

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.ping(ctx); err != nil {
			writeErr(w, err, http.StatusServiceUnavailable)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type homeData struct {
	Enabled bool
	Runs    []reservation.Run
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	data := homeData{Enabled: s.runs != nil}
	if s.runs != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		runs, err := s.runs.List(ctx, 50)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		data.Runs = runs
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "runs.html", data); err != nil {
		s.log.Errorf("render runs: %v", err)
	}
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeErr(w, errLedgerDisabled, http.StatusServiceUnavailable)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeErr(w, errors.New("limit must be a positive integer"), http.StatusBadRequest)
			return
		}
		limit = n
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	runs, err := s.runs.List(ctx, limit)
	if err != nil {
		writeErr(w, err, http.StatusInternalServerError)
		return
	}
	out := make([]RunView, 0, len(runs))
	for _, run := range runs {
		out = append(out, NewRunView(run))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeErr(w, errLedgerDisabled, http.StatusServiceUnavailable)
		return
	}
	id := mux.Vars(r)["id"]
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	detail, err := LoadRunDetail(ctx, s.runs, id)
	if errors.Is(err, internaltypes.ErrNotFound) {
		writeErr(w, err, http.StatusNotFound)
		return
	}
	if err != nil {
		writeErr(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Start serves h on addr until ctx is cancelled, then shuts down gracefully.
func Start(ctx context.Context, addr string, h http.Handler, log *logging.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("forced shutdown: %v", err)
		}
	}()
	log.Infof("listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}
