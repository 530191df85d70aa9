package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-trainer/internal/drills"
	"github.com/park285/cheese-trainer/internal/msgcat"
	"github.com/park285/cheese-trainer/internal/progress"
	"github.com/park285/cheese-trainer/internal/store"
)

const (
	maxJSONBodyBytes int64 = 1 << 16
	chatTimeout            = 30 * time.Second
)

// Server is the HTTP and websocket surface over a Hub.
type Server struct {
	hub      *Hub
	drills   *drills.Catalog
	progress progress.Store
	repo     store.Repository
	cat      *msgcat.Catalog
	log      *zap.Logger
	origins  map[string]bool

	walkMu sync.Mutex
	walks  map[string]*drills.Walkthrough

	srvMu sync.Mutex
	srv   *http.Server
}

type Options struct {
	Hub      *Hub
	Drills   *drills.Catalog
	Progress progress.Store
	Repo     store.Repository
	Catalog  *msgcat.Catalog
	Logger   *zap.Logger
	Origins  []string
}

func NewServer(o Options) *Server {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Catalog == nil {
		o.Catalog = msgcat.Default()
	}
	if o.Progress == nil {
		o.Progress = progress.NewMemoryStore()
	}
	if o.Repo == nil {
		o.Repo = store.NewMemory()
	}
	if o.Hub == nil {
		o.Hub = NewHub(defaultSessionDeps(o.Catalog, o.Logger), o.Logger, WithRepository(o.Repo))
	}
	origins := make(map[string]bool, len(o.Origins))
	for _, a := range o.Origins {
		if a = strings.TrimSpace(a); a != "" {
			origins[a] = true
		}
	}
	return &Server{
		hub:      o.Hub,
		drills:   o.Drills,
		progress: o.Progress,
		repo:     o.Repo,
		cat:      o.Catalog,
		log:      o.Logger,
		origins:  origins,
		walks:    make(map[string]*drills.Walkthrough),
	}
}

func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the routed handler wrapped in the CORS check.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.hub.Len()})
	})

	mux.HandleFunc("POST /sessions", s.handleCreate)
	mux.HandleFunc("GET /sessions/{id}", s.withSession(s.handleSnapshot))
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDelete)
	mux.HandleFunc("POST /sessions/{id}/start", s.withSession(s.handleStart))
	mux.HandleFunc("POST /sessions/{id}/move", s.withSession(s.handleMove))
	mux.HandleFunc("POST /sessions/{id}/resign", s.withSession(s.handleResign))
	mux.HandleFunc("POST /sessions/{id}/draw", s.withSession(s.handleDraw))
	mux.HandleFunc("POST /sessions/{id}/undo", s.withSession(s.handleUndo))
	mux.HandleFunc("POST /sessions/{id}/new", s.withSession(s.handleNewGame))
	mux.HandleFunc("GET /sessions/{id}/hint", s.withSession(s.handleHint))
	mux.HandleFunc("POST /sessions/{id}/chat", s.withSession(s.handleChat))
	mux.HandleFunc("GET /sessions/{id}/board.png", s.withSession(s.handleBoard))
	mux.HandleFunc("GET /sessions/{id}/feed", s.withSession(s.handleFeed))

	mux.HandleFunc("GET /drills", s.handleDrills)
	mux.HandleFunc("POST /drills/{name}/step", s.handleDrillStep)
	mux.HandleFunc("GET /progress", s.handleProgress)

	mux.HandleFunc("GET /leaderboard", s.handleLeaderboard)
	mux.HandleFunc("GET /profiles/{player}", s.handleProfile)

	return s.cors(mux)
}

// Listen serves until Close or a listener error.
func (s *Server) Listen(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	s.srvMu.Lock()
	s.srv = srv
	s.srvMu.Unlock()

	s.log.Info("http_listening", zap.String("addr", addr))
	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Close(ctx context.Context) error {
	s.srvMu.Lock()
	srv := s.srv
	s.srvMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if !s.origins[origin] {
				writeError(w, forbiddenOrigin(origin))
				return
			}
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return badRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
