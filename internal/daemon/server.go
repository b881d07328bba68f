package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/singleflight"

	"github.com/jcdickinson/applefetch/internal/cas"
	"github.com/jcdickinson/applefetch/internal/config"
	"github.com/jcdickinson/applefetch/internal/db"
	"github.com/jcdickinson/applefetch/internal/docs"
	md "github.com/jcdickinson/applefetch/internal/markdown"
	"github.com/jcdickinson/applefetch/internal/metrics"
	"github.com/jcdickinson/applefetch/internal/rpc"
	"github.com/jcdickinson/applefetch/internal/search"
)

// technologiesPath addresses the technologies root when no path is given.
const technologiesPath = "/documentation/technologies"

type Server struct {
	db         *db.DB
	catalog    *search.Catalog
	client     *docs.Client
	cfg        *config.Config
	socketPath string
	httpServer *http.Server
	listener   net.Listener
	started    time.Time

	mu         sync.Mutex
	expTimer   *time.Timer
	expiration time.Duration

	memory    map[string]memEntry
	memoryMu  sync.RWMutex
	loadGroup singleflight.Group
}

func NewServer(cfg *config.Config, database *db.DB, catalog *search.Catalog, socketPath string) *Server {
	expiration := cfg.Daemon.Expiration
	if expiration <= 0 {
		expiration = 10 * time.Minute
	}

	return &Server{
		db:         database,
		catalog:    catalog,
		client:     docs.NewClient(cfg.API.BaseURL.String(), cfg.API.UserAgent, cfg.API.Timeout),
		cfg:        cfg,
		socketPath: socketPath,
		started:    time.Now(),
		expiration: expiration,
		memory:     make(map[string]memEntry),
	}
}

// Handler returns the daemon's routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(metrics.Middleware())

	r.Post("/shutdown", s.handleShutdown)
	r.Group(func(r chi.Router) {
		r.Use(s.withExpReset)
		r.Get("/technologies", s.handleTechnologies)
		r.Post("/get-doc", s.handleGetDoc)
		r.Post("/get-index", s.handleGetIndex)
		r.Post("/changes", s.handleChanges)
		r.Post("/search", s.handleSearch)
		r.Get("/status", s.handleStatus)
		r.Post("/clear-cache", s.handleClearCache)
		r.Handle("/metrics", promhttp.Handler())
	})
	return r
}

func (s *Server) Start(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0755); err != nil {
		return fmt.Errorf("creating socket directory: %w", err)
	}
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("setting socket permissions: %w", err)
	}
	httpServer := &http.Server{
		Handler:     s.Handler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.listener = listener
	s.httpServer = httpServer
	s.expTimer = time.AfterFunc(s.expiration, s.expire)
	s.mu.Unlock()

	log.Printf("daemon: listening on %s (expires after %s of inactivity)", s.socketPath, s.expiration)

	if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	httpServer, listener := s.httpServer, s.listener
	if s.expTimer != nil {
		s.expTimer.Stop()
		s.expTimer = nil
	}
	s.mu.Unlock()

	var errs []error
	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Printf("daemon: shutdown error: %v", err)
			errs = append(errs, err)
		}
	}
	if listener != nil {
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Printf("daemon: listener close error: %v", err)
			errs = append(errs, err)
		}
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		log.Printf("daemon: socket remove error: %v", err)
		errs = append(errs, err)
	}
	if err := s.catalog.Close(); err != nil {
		log.Printf("daemon: catalog close error: %v", err)
		errs = append(errs, err)
	}
	if err := s.db.Close(); err != nil {
		log.Printf("daemon: db close error: %v", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Server) expire() {
	log.Printf("daemon: expiring due to inactivity")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)
	os.Exit(0)
}

func (s *Server) resetExpiration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expTimer != nil {
		s.expTimer.Stop()
		s.expTimer.Reset(s.expiration)
	}
}

func (s *Server) withExpReset(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.resetExpiration()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleTechnologies(w http.ResponseWriter, r *http.Request) {
	payload, err := s.loadTechnologies(r.Context())
	if err != nil {
		writeLoadError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rpc.TechnologiesResponse{
		Technologies:     payload.technologies.Filter(r.URL.Query().Get("tag")),
		Tags:             payload.technologies.Tags(),
		DiffAvailability: payload.diff.Sorted(),
	})
}

func (s *Server) handleGetDoc(w http.ResponseWriter, r *http.Request) {
	var req rpc.GetDocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "missing path")
		return
	}

	path := docs.DocumentPath(req.Path)
	detail, err := s.loadDetail(r.Context(), path)
	if err != nil {
		writeLoadError(w, err)
		return
	}

	base := md.ResourceBase
	if req.Web {
		base = s.cfg.API.WebURL.String()
	}
	writeJSON(w, http.StatusOK, rpc.GetDocResponse{
		Title:    detail.Metadata.Title,
		Markdown: md.Export(detail, docs.DocumentPath(normalizePath(path)), base),
	})
}

func (s *Server) handleGetIndex(w http.ResponseWriter, r *http.Request) {
	var req rpc.GetIndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "missing path")
		return
	}

	nodes, err := s.loadIndex(r.Context(), docs.DocumentPath(req.Path))
	if err != nil {
		writeLoadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rpc.GetIndexResponse{Nodes: trimIndex(nodes, req.Depth)})
}

// trimIndex copies nodes down to depth levels. Depth 0 keeps everything.
func trimIndex(nodes []docs.TechnologyDetailIndex, depth int) []docs.TechnologyDetailIndex {
	if depth <= 0 {
		return nodes
	}
	out := make([]docs.TechnologyDetailIndex, len(nodes))
	for i, n := range nodes {
		out[i] = n
		if depth == 1 {
			out[i].Children = []docs.TechnologyDetailIndex{}
		} else {
			out[i].Children = trimIndex(n.Children, depth-1)
		}
	}
	return out
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	var req rpc.ChangesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Path == "" {
		req.Path = technologiesPath
	}
	if req.Key == "" {
		req.Key = string(docs.DiffMinor)
	}
	key, err := docs.ParseDiffKey(req.Key)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	changes, err := s.loadChanges(r.Context(), docs.DocumentPath(req.Path), key)
	if err != nil {
		writeLoadError(w, err)
		return
	}

	entries := make([]rpc.ChangeEntry, 0, changes.Len())
	for id, change := range changes {
		entries = append(entries, rpc.ChangeEntry{Identifier: id, Change: change})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Identifier < entries[j].Identifier })

	writeJSON(w, http.StatusOK, rpc.ChangesResponse{Key: string(key), Changes: entries})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req rpc.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "missing query")
		return
	}
	if req.Limit <= 0 {
		req.Limit = s.cfg.Search.DefaultLimit
	}

	// The catalog only knows technologies once the root has been loaded.
	if _, err := s.loadTechnologies(r.Context()); err != nil {
		log.Printf("daemon: loading technologies for search: %v", err)
	}
	if len(req.Technologies) > 0 {
		if err := s.warmIndexes(r.Context(), req.Technologies); err != nil {
			writeLoadError(w, err)
			return
		}
	}

	results, err := s.catalog.Search(req.Query, req.Kinds, req.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rpc.SearchResponse{Results: results})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.db.CountPages()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	pages := make(map[string]int, len(counts))
	for kind, n := range counts {
		pages[string(kind)] = n
	}

	catalog, err := s.catalog.Count()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, rpc.StatusResponse{
		Pages:       pages,
		Catalog:     catalog,
		MemoryPages: s.memoryLen(),
		Uptime:      time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.clearMemory()
	n, err := s.db.DeletePages()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := cas.Clear(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Printf("daemon: cache cleared (%d pages)", n)
	writeJSON(w, http.StatusOK, rpc.ClearCacheResponse{Pages: n})
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "shutting down"})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Stop(ctx)
		os.Exit(0)
	}()
}

// writeLoadError maps load failures to a status code.
func writeLoadError(w http.ResponseWriter, err error) {
	var decodeErr *docs.DecodeError
	switch {
	case errors.Is(err, docs.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, docs.ErrInvalidPath):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &decodeErr):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
