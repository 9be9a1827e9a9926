package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"compgrid/internal/config"
	"compgrid/internal/definition"
	"compgrid/internal/grid"
	"compgrid/internal/model"
	"compgrid/internal/notifier"
	"compgrid/internal/recorder"
	"compgrid/internal/timeref"
)

// Jobs exposes the scheduled jobs.
type Jobs interface {
	JobInfos() []notifier.JobInfo
	Anchor() model.Date
}

// GridBuilder builds a grid from a definition file without delivering it.
type GridBuilder interface {
	Build(ctx context.Context, path string, anchor model.Date) (*definition.Definition, *model.Grid, error)
}

type Dependencies struct {
	Jobs     Jobs
	Config   []config.Job
	Builder  GridBuilder
	Recorder recorder.Recorder
}

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	Dependencies    Dependencies
}

// WebAPI serves read-only access to jobs, grids and run history.
type WebAPI struct {
	router *chi.Mux
	logger *zerolog.Logger
	server *http.Server
	cfg    Config
}

func NewWebAPI(logger zerolog.Logger, cfg Config) *WebAPI {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	w := &WebAPI{logger: &logger, cfg: cfg}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(Logger(&logger))
	router.Use(middleware.Recoverer)

	router.Get("/healthz", w.health)
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/jobs", w.listJobs)
		r.Get("/grids/{job}", w.getGrid)
		r.Get("/runs", w.listRuns)
	})

	w.router = router
	w.server = &http.Server{Addr: cfg.Addr, Handler: router}
	return w
}

// Handler exposes the router, mainly for tests.
func (w *WebAPI) Handler() http.Handler { return w.router }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (w *WebAPI) Start(ctx context.Context) error {
	serverErrors := make(chan error, 1)
	go func() {
		w.logger.Info().Str("addr", w.server.Addr).Msg("starting server")
		serverErrors <- w.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		w.logger.Info().Msg("shutdown initiated")

		// Give outstanding requests a deadline for completion.
		sctx, cancel := context.WithTimeout(context.Background(), w.cfg.ShutdownTimeout)
		defer cancel()

		if err := w.server.Shutdown(sctx); err != nil {
			w.logger.Error().Err(err).Msg("graceful shutdown failed")
			return w.server.Close()
		}
	}
	return nil
}

func (w *WebAPI) health(rw http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), rw, http.StatusOK, map[string]string{"status": "ok"})
}

func (w *WebAPI) listJobs(rw http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), rw, http.StatusOK, w.cfg.Dependencies.Jobs.JobInfos())
}

func (w *WebAPI) getGrid(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "job")

	var job *config.Job
	for i := range w.cfg.Dependencies.Config {
		if w.cfg.Dependencies.Config[i].Name == name {
			job = &w.cfg.Dependencies.Config[i]
			break
		}
	}
	if job == nil {
		writeError(ctx, rw, http.StatusNotFound, "unknown job "+strconv.Quote(name))
		return
	}

	anchor := w.cfg.Dependencies.Jobs.Anchor()
	if v := r.URL.Query().Get("date"); v != "" {
		d, err := model.ParseDate(v)
		if err != nil {
			writeError(ctx, rw, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		anchor = d
	}

	_, g, err := w.cfg.Dependencies.Builder.Build(ctx, job.Definition, anchor)
	if err != nil {
		status := http.StatusInternalServerError
		var pe *timeref.ParseError
		var de *definition.Error
		var me *grid.MissingSeriesError
		if errors.As(err, &pe) || errors.As(err, &de) || errors.As(err, &me) {
			status = http.StatusUnprocessableEntity
		}
		zerolog.Ctx(ctx).Error().Err(err).Str("job", name).Msg("build grid")
		writeError(ctx, rw, status, err.Error())
		return
	}
	writeJSON(ctx, rw, http.StatusOK, g)
}

type runResponse struct {
	ID        string     `json:"id"`
	Grid      string     `json:"grid"`
	Target    string     `json:"target"`
	Anchor    model.Date `json:"anchor"`
	CreatedAt time.Time  `json:"created_at"`
	Delivered bool       `json:"delivered"`
	Error     string     `json:"error,omitempty"`
}

func (w *WebAPI) listRuns(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(ctx, rw, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	runs, err := w.cfg.Dependencies.Recorder.RecentRuns(limit)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("list runs")
		writeError(ctx, rw, http.StatusInternalServerError, "cannot read run history")
		return
	}
	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, runResponse{
			ID:        run.ID,
			Grid:      run.Grid,
			Target:    run.Target,
			Anchor:    run.Anchor,
			CreatedAt: run.CreatedAt,
			Delivered: run.Delivered,
			Error:     run.Error,
		})
	}
	writeJSON(ctx, rw, http.StatusOK, out)
}

func writeJSON(ctx context.Context, rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(ctx context.Context, rw http.ResponseWriter, status int, msg string) {
	writeJSON(ctx, rw, status, map[string]string{"error": msg})
}
