package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/Ripplz/QuakeReport/internal/config"
	"github.com/Ripplz/QuakeReport/internal/loader"
	"github.com/Ripplz/QuakeReport/internal/model"
	"github.com/Ripplz/QuakeReport/internal/query"
	"github.com/Ripplz/QuakeReport/internal/source"
	"github.com/Ripplz/QuakeReport/internal/store"
)

var (
	// ErrAlreadyLoading is returned by Refresh while a load is in flight.
	ErrAlreadyLoading = errors.New("a load is already in flight")
	// ErrAbandoned is returned by Refresh once the loader has been abandoned.
	ErrAbandoned = errors.New("loader abandoned, reset to resume")
)

type Options struct {
	Server   config.ServerConfig
	Feed     config.FeedConfig
	Loader   *loader.Loader
	Board    *Board
	Settings *store.SettingsStore
	Probe    source.Connectivity // nil means AlwaysOnline
	Gatherer prometheus.Gatherer // nil means prometheus.DefaultGatherer
	Logger   *log.Logger
}

type Server struct {
	feed     config.FeedConfig
	loader   *loader.Loader
	board    *Board
	settings *store.SettingsStore
	probe    source.Connectivity
	logger   *log.Logger

	handler http.Handler
	server  *http.Server
}

func NewServer(o Options) *Server {
	s := &Server{
		feed:     o.Feed,
		loader:   o.Loader,
		board:    o.Board,
		settings: o.Settings,
		probe:    o.Probe,
		logger:   o.Logger,
	}
	if s.probe == nil {
		s.probe = source.AlwaysOnline
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	gatherer := o.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/earthquakes", s.handleGetEarthquakes).Methods(http.MethodGet)
	api.HandleFunc("/earthquakes", s.handleReset).Methods(http.MethodDelete)
	api.HandleFunc("/earthquakes/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/settings", s.handleGetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.handlePutSettings).Methods(http.MethodPut)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	c := cors.New(cors.Options{
		AllowedOrigins: o.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	s.handler = c.Handler(r)
	s.server = &http.Server{
		Addr:         o.Server.ListenAddress,
		Handler:      s.handler,
		ReadTimeout:  o.Server.ReadTimeout,
		WriteTimeout: o.Server.WriteTimeout,
		IdleTimeout:  o.Server.IdleTimeout,
	}
	return s
}

func (s *Server) Handler() http.Handler              { return s.handler }
func (s *Server) Serve() error                       { return s.server.ListenAndServe() }
func (s *Server) Shutdown(ctx context.Context) error { return s.server.Shutdown(ctx) }

// Refresh starts a load with the current settings. When no network path
// exists the loader delivers a NetworkUnavailable failure instead and no
// request is made.
func (s *Server) Refresh(ctx context.Context) error {
	if !s.probe.Online(ctx) {
		err := model.NewLoadError(model.NetworkUnavailable, errors.New("no internet connection detected"))
		if !s.loader.Fail(err) {
			return s.refused()
		}
		return err
	}
	st := s.settings.Get()
	req := query.NewFetchRequest(s.feed.BaseURL, st.MinMagnitude, st.OrderBy).WithLimit(s.feed.Limit)
	if !s.loader.Start(req) {
		return s.refused()
	}
	return nil
}

func (s *Server) refused() error {
	if s.loader.State() == loader.Abandoned {
		return ErrAbandoned
	}
	return ErrAlreadyLoading
}

func (s *Server) handleGetEarthquakes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.board.Snapshot(s.loader.State().String()))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	err := s.Refresh(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"state": s.loader.State().String()})
	case errors.Is(err, ErrAlreadyLoading), errors.Is(err, ErrAbandoned):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, model.ErrNetworkUnavailable):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.loader.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.settings.Get())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var in store.Settings
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.settings.Put(in); err != nil {
		s.logger.Printf("api: %v", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s.settings.Get())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
