// Package server exposes the place store as a read-only JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"placesweep/internal/logging"
	"placesweep/internal/store"
)

// DataStore is the subset of *store.Store the API reads from.
type DataStore interface {
	Count(ctx context.Context) (int, error)
	List(ctx context.Context, limit, offset int) ([]store.Record, error)
	Get(ctx context.Context, id string) (store.Record, error)
	RecentRuns(ctx context.Context, limit int) ([]store.Run, error)
	Ping(ctx context.Context) error
}

// PlacesPage is the response of GET /api/places.
type PlacesPage struct {
	Name     string            `json:"name"`
	Total    int               `json:"total"`
	Places   []json.RawMessage `json:"places"`
	Page     int               `json:"page"`
	LastPage int               `json:"last_page"`
	PrevPage int               `json:"prev_page,omitempty"`
	NextPage int               `json:"next_page,omitempty"`
}

// Stats is the response of GET /api/stats.
type Stats struct {
	Places int       `json:"places"`
	Runs   []RunInfo `json:"runs"`
}

// RunInfo summarises one sweep run.
type RunInfo struct {
	ID          string `json:"id"`
	BBox        string `json:"bbox"`
	Status      string `json:"status"`
	StartedAt   int64  `json:"started_at"`
	FinishedAt  int64  `json:"finished_at,omitempty"`
	Requests    int    `json:"requests"`
	Encountered int    `json:"encountered"`
	New         int    `json:"new"`
	ResumePath  string `json:"resume_path,omitempty"`
}

// Server serves the browse API.
type Server struct {
	store    DataStore
	pageSize int
	logger   *zap.Logger
	router   *mux.Router
}

// New builds the router. pageSize <= 0 falls back to 10.
func New(ds DataStore, pageSize int, logger *zap.Logger) *Server {
	if pageSize <= 0 {
		pageSize = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{store: ds, pageSize: pageSize, logger: logger, router: mux.NewRouter()}
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/places", s.handlePlaces).Methods(http.MethodGet)
	s.router.HandleFunc("/api/places/{id}", s.handlePlace).Methods(http.MethodGet)
	s.router.HandleFunc("/api/stats", s.handleStats).Methods(http.MethodGet)
	s.router.Use(s.logRequests)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Server("Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		logging.ServerError("Health check failed: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePlaces(w http.ResponseWriter, r *http.Request) {
	pageStr := r.URL.Query().Get("page")
	if pageStr == "" {
		pageStr = "1"
	}
	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		http.Error(w, "Invalid page number", http.StatusBadRequest)
		return
	}

	total, err := s.store.Count(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	lastPage := (total + s.pageSize - 1) / s.pageSize
	if lastPage == 0 {
		lastPage = 1
	}
	if page > lastPage {
		http.Error(w, "Invalid 'page' value: "+pageStr, http.StatusBadRequest)
		return
	}

	records, err := s.store.List(r.Context(), s.pageSize, (page-1)*s.pageSize)
	if err != nil {
		s.internalError(w, err)
		return
	}

	data := PlacesPage{
		Name:     "Places",
		Total:    total,
		Places:   make([]json.RawMessage, 0, len(records)),
		Page:     page,
		LastPage: lastPage,
	}
	for _, rec := range records {
		data.Places = append(data.Places, rec.Data)
	}
	if page > 1 {
		data.PrevPage = page - 1
	}
	if page < lastPage {
		data.NextPage = page + 1
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := s.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Place not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(rec.Data); err != nil {
		logging.ServerError("Error writing response: %v", err)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	total, err := s.store.Count(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	runs, err := s.store.RecentRuns(r.Context(), 10)
	if err != nil {
		s.internalError(w, err)
		return
	}

	out := Stats{Places: total, Runs: make([]RunInfo, 0, len(runs))}
	for _, run := range runs {
		info := RunInfo{
			ID:          run.ID,
			BBox:        run.BBox,
			Status:      run.Status,
			StartedAt:   run.StartedAt.Unix(),
			Requests:    run.Requests,
			Encountered: run.Encountered,
			New:         run.Inserted,
			ResumePath:  run.ResumePath,
		}
		if !run.FinishedAt.IsZero() {
			info.FinishedAt = run.FinishedAt.Unix()
		}
		out.Runs = append(out.Runs, info)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	logging.ServerError("Request failed: %v", err)
	s.logger.Error("request failed", zap.Error(err))
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.ServerError("Error encoding response: %v", err)
	}
}
