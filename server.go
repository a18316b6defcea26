package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/mgazza/energy-costs/billing"
)

// Server exposes the cost calculation over HTTP.
type Server struct {
	app    *App
	logger *zap.Logger
}

func NewServer(app *App) *Server {
	return &Server{app: app, logger: app.Logger.Named("http")}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.healthz)
	r.Get("/costs", s.costs)
	r.Get("/years", s.years)
	r.Handle("/metrics", metricsHandler())
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("query", r.URL.RawQuery),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())))
	})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) costs(w http.ResponseWriter, r *http.Request) {
	g, opts, err := s.costsQuery(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	points, err := s.app.Costs(r.Context(), g, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) years(w http.ResponseWriter, r *http.Request) {
	years, err := s.app.Years(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if years == nil {
		years = []int{}
	}
	writeJSON(w, http.StatusOK, map[string][]int{"years": years})
}

// errBadRequest marks query parameters that could not be parsed.
var errBadRequest = errors.New("bad request")

// costsQuery reads granularity, year, past, future, extrapolate and periods,
// falling back to the configured report settings.
func (s *Server) costsQuery(r *http.Request) (billing.Granularity, billing.Options, error) {
	q := r.URL.Query()
	cfg := s.app.Config

	granularity := cfg.Granularity
	if v := q.Get("granularity"); v != "" {
		granularity = v
	}
	g, err := billing.ParseGranularity(granularity)
	if err != nil {
		return "", billing.Options{}, err
	}

	opts := cfg.options()
	if v := q.Get("extrapolate"); v != "" {
		if opts.IncludeExtrapolation, err = strconv.ParseBool(v); err != nil {
			return "", billing.Options{}, fmt.Errorf("%w: extrapolate: %v", errBadRequest, err)
		}
	}
	if v := q.Get("periods"); v != "" {
		if opts.ExtrapolatePeriods, err = strconv.Atoi(v); err != nil {
			return "", billing.Options{}, fmt.Errorf("%w: periods: %v", errBadRequest, err)
		}
	}
	if v := q.Get("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return "", billing.Options{}, fmt.Errorf("%w: year: %v", errBadRequest, err)
		}
		opts.Year = &year
		opts.YearRange = nil
	}
	if q.Has("past") || q.Has("future") {
		var yr billing.YearRange
		if yr.Past, err = intParam(q.Get("past")); err != nil {
			return "", billing.Options{}, fmt.Errorf("%w: past: %v", errBadRequest, err)
		}
		if yr.Future, err = intParam(q.Get("future")); err != nil {
			return "", billing.Options{}, fmt.Errorf("%w: future: %v", errBadRequest, err)
		}
		opts.YearRange = &yr
		if q.Get("year") == "" {
			opts.Year = nil
		}
	}
	return g, opts, nil
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// writeError maps validation failures to 400 and source failures to 502.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, billing.ErrInvalidGranularity),
		errors.Is(err, billing.ErrInvalidOptions),
		errors.Is(err, billing.ErrInvalidPeriodKey):
		status = http.StatusBadRequest
	case errors.Is(err, errSource):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
