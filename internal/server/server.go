// Package server exposes diagram workspaces over an HTTP JSON API.
//
// Each workspace owns a [store.Store]. Workspaces are loaded from
// [storage.Store] on first use and saved after every mutation. Text-service
// calls run on a snapshot of the model and only touch the store after they
// succeed.
package server

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/ercanvas/pkg/buildinfo"
	"github.com/matzehuels/ercanvas/pkg/cache"
	"github.com/matzehuels/ercanvas/pkg/errors"
	"github.com/matzehuels/ercanvas/pkg/geometry"
	"github.com/matzehuels/ercanvas/pkg/storage"
	"github.com/matzehuels/ercanvas/pkg/store"
	"github.com/matzehuels/ercanvas/pkg/tutor"
	"github.com/matzehuels/ercanvas/pkg/viewport"
)

// Defaults for [New].
const (
	DefaultAddr            = ":8080"
	DefaultMaxBodyBytes    = 4 << 20
	DefaultShutdownTimeout = 10 * time.Second
	saveTimeout            = 10 * time.Second
)

type healthResponse struct {
	Status string         `json:"status"`
	Build  buildinfo.Info `json:"build"`
}

// Server is the HTTP API.
type Server struct {
	addr            string
	maxBody         int64
	shutdownTimeout time.Duration
	layout          geometry.Metrics
	logger          *log.Logger
	storage         storage.Store
	tutor           tutor.Service
	cache           cache.Cache
	keyer           cache.Keyer
	cacheTTL        time.Duration
	metrics         *Metrics

	mu         sync.Mutex
	workspaces map[string]*workspace
}

// Option configures a [Server].
type Option func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) {
		if addr != "" {
			s.addr = addr
		}
	}
}

// WithLogger sets the request and error logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStorage sets workspace persistence. The default is in-memory.
func WithStorage(st storage.Store) Option {
	return func(s *Server) {
		if st != nil {
			s.storage = st
		}
	}
}

// WithTutor sets the text-generation service. Without one the tutor
// endpoints answer 501.
func WithTutor(t tutor.Service) Option {
	return func(s *Server) { s.tutor = t }
}

// WithExportCache caches rendered exports, keyed by model content and format.
func WithExportCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Server) {
		if c != nil {
			s.cache = c
			s.cacheTTL = ttl
		}
	}
}

// WithLayout overrides the card and routing constants.
func WithLayout(m geometry.Metrics) Option {
	return func(s *Server) { s.layout = m.WithDefaults() }
}

// WithMetrics serves m on /metrics and records HTTP request series.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithMaxBodyBytes bounds request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// WithShutdownTimeout bounds graceful shutdown in [Server.Run].
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// New creates a server.
func New(opts ...Option) *Server {
	s := &Server{
		addr:            DefaultAddr,
		maxBody:         DefaultMaxBodyBytes,
		shutdownTimeout: DefaultShutdownTimeout,
		layout:          geometry.DefaultMetrics(),
		logger:          log.New(io.Discard),
		storage:         storage.NewMemoryStore(),
		cache:           cache.NewNullCache(),
		keyer:           cache.NewDefaultKeyer(),
		workspaces:      make(map[string]*workspace),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.instrument)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Build: buildinfo.Current()})
	})

	r.Route("/api/workspaces", func(r chi.Router) {
		r.Use(s.limitBody)
		r.Get("/", s.handleListWorkspaces)
		r.Route("/{ws}", func(r chi.Router) {
			r.Get("/", s.handleGetDiagram)
			r.Delete("/", s.handleDeleteWorkspace)
			r.Put("/case-study", s.handleSetCaseStudy)
			r.Put("/view", s.handleSetView)
			r.Get("/scene", s.handleScene)
			r.Post("/import", s.handleImport)
			r.Get("/export/{format}", s.handleExport)

			r.Post("/entities", s.handleAddEntity)
			r.Route("/entities/{id}", func(r chi.Router) {
				r.Patch("/", s.handleUpdateEntity)
				r.Delete("/", s.handleDeleteEntity)
				r.Post("/collapse", s.handleToggleCollapse)
				r.Put("/data", s.handleSetData)
				r.Post("/attributes", s.handleAddAttribute)
				r.Post("/attributes/reorder", s.handleReorderAttribute)
				r.Patch("/attributes/{index}", s.handleUpdateAttribute)
				r.Delete("/attributes/{index}", s.handleRemoveAttribute)
			})

			r.Post("/relationships", s.handleAddRelationship)
			r.Patch("/relationships/{id}", s.handleUpdateRelationship)
			r.Delete("/relationships/{id}", s.handleDeleteRelationship)

			r.Post("/tutor/scenario", s.handleScenario)
			r.Post("/tutor/evaluate", s.handleEvaluate)
			r.Post("/tutor/sql", s.handleSQL)
			r.Post("/tutor/hint", s.handleHint)
		})
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// =============================================================================
// Workspaces
// =============================================================================

type workspace struct {
	id    string
	store *store.Store

	mu    sync.Mutex
	view  viewport.Transform
	saved uint64
}

// workspace returns the live workspace id, loading it from storage on first
// use. A workspace that does not exist yet starts empty.
func (s *Server) workspace(ctx context.Context, id string) (*workspace, error) {
	if err := errors.ValidateWorkspaceID(id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ws, ok := s.workspaces[id]; ok {
		return ws, nil
	}

	ws := &workspace{id: id, view: viewport.Identity()}
	saved, err := s.storage.Get(ctx, id)
	switch {
	case err == nil:
		ws.store = store.New(store.WithModel(saved.Model))
		if saved.View.K > 0 {
			ws.view = saved.View
		}
	case stderrors.Is(err, storage.ErrNotFound):
		ws.store = store.New()
	default:
		return nil, err
	}
	ws.store.Subscribe(func(store.Change) { s.save(ws, false) })
	s.workspaces[id] = ws
	return ws, nil
}

// save persists the latest snapshot of ws. Concurrent mutations may trigger
// several saves; unless force is set, versions already written are skipped.
func (s *Server) save(ws *workspace, force bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	snap := ws.store.Snapshot()
	if !force && snap.Version <= ws.saved {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	err := s.storage.Put(ctx, &storage.Workspace{ID: ws.id, Model: snap.Model, View: ws.view})
	if err != nil {
		s.logger.Error("autosave failed", "workspace", ws.id, "err", err)
		return
	}
	ws.saved = snap.Version
}

func (s *Server) dropWorkspace(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.workspaces, id)
}

// =============================================================================
// Middleware
// =============================================================================

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Microsecond),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
