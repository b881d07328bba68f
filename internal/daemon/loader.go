package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jcdickinson/applefetch/internal/cas"
	"github.com/jcdickinson/applefetch/internal/db"
	"github.com/jcdickinson/applefetch/internal/docs"
	"github.com/jcdickinson/applefetch/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// warmConcurrency bounds parallel index fetches when warming the catalog.
const warmConcurrency = 4

type memEntry struct {
	value     any
	fetchedAt time.Time
}

// loadRequest names one payload: where it is cached and where it is fetched from.
type loadRequest struct {
	kind  db.PageKind
	path  string
	extra []string
	url   string
}

func (r loadRequest) key() string {
	return db.PageKey(r.kind, r.path, r.extra...)
}

type technologiesPayload struct {
	technologies docs.Technologies
	diff         docs.DiffAvailability
}

// load returns the decoded payload for req along with the layer that served
// it. Memory is checked first, then a fresh page in the store, then the API.
// Concurrent loads of the same key share one store lookup and fetch. When the
// API fails and a stale copy is stored, the stale copy is served.
func load[T any](ctx context.Context, s *Server, req loadRequest, decode func([]byte) (T, string, error)) (T, string, error) {
	var zero T
	key := req.key()
	kind := string(req.kind)

	if v, ok := s.memoryGet(key); ok {
		if typed, ok := v.(T); ok {
			metrics.PayloadLoadsTotal.WithLabelValues(kind, metrics.LayerMemory).Inc()
			return typed, metrics.LayerMemory, nil
		}
	}

	type result struct {
		value T
		layer string
	}

	// Callers may give up; the shared load finishes for the others.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := s.loadGroup.Do(key, func() (interface{}, error) {
		page, err := s.db.GetPage(key)
		if err != nil {
			return nil, err
		}

		if page != nil && page.Fresh(s.cfg.Cache.TTL, time.Now()) {
			value, err := readStored(page, decode)
			if err == nil {
				s.memoryPut(key, value, page.FetchedAt)
				return result{value, metrics.LayerStore}, nil
			}
			slog.Warn("stored page unreadable, refetching", "key", key, "error", err)
		}

		start := time.Now()
		data, fetchErr := s.client.Fetch(loadCtx, req.url)
		metrics.ObserveFetch(kind, start, fetchErr)
		if fetchErr != nil {
			if page != nil && !errors.Is(fetchErr, docs.ErrNotFound) {
				if value, err := readStored(page, decode); err == nil {
					slog.Warn("fetch failed, serving stale page", "key", key, "fetched_at", page.FetchedAt, "error", fetchErr)
					s.memoryPut(key, value, page.FetchedAt)
					return result{value, metrics.LayerStore}, nil
				}
			}
			return nil, fetchErr
		}

		value, title, err := decode(data)
		if err != nil {
			metrics.DecodeErrorsTotal.WithLabelValues(kind).Inc()
			return nil, err
		}

		hash, err := cas.Write(data)
		if err != nil {
			return nil, err
		}
		now := time.Now()
		if err := s.db.UpsertPage(&db.Page{
			Key:         key,
			Kind:        req.kind,
			Path:        req.path,
			Title:       title,
			ContentHash: hash,
			FetchedAt:   now,
		}); err != nil {
			return nil, err
		}
		s.memoryPut(key, value, now)
		slog.Info("fetched page", "key", key, "bytes", len(data), "duration", time.Since(start))
		return result{value, metrics.LayerFetch}, nil
	})
	if err != nil {
		return zero, "", err
	}

	res := v.(result)
	metrics.PayloadLoadsTotal.WithLabelValues(kind, res.layer).Inc()
	return res.value, res.layer, nil
}

func readStored[T any](page *db.Page, decode func([]byte) (T, string, error)) (T, error) {
	var zero T
	data, err := cas.Read(page.ContentHash)
	if err != nil {
		return zero, err
	}
	value, _, err := decode(data)
	if err != nil {
		return zero, fmt.Errorf("decoding stored %s: %w", page.Key, err)
	}
	return value, nil
}

func (s *Server) memoryGet(key string) (any, bool) {
	s.memoryMu.RLock()
	defer s.memoryMu.RUnlock()
	e, ok := s.memory[key]
	if !ok || time.Since(e.fetchedAt) >= s.cfg.Cache.TTL {
		return nil, false
	}
	return e.value, true
}

func (s *Server) memoryPut(key string, value any, fetchedAt time.Time) {
	s.memoryMu.Lock()
	defer s.memoryMu.Unlock()
	s.memory[key] = memEntry{value: value, fetchedAt: fetchedAt}
}

func (s *Server) memoryLen() int {
	s.memoryMu.RLock()
	defer s.memoryMu.RUnlock()
	return len(s.memory)
}

func (s *Server) clearMemory() {
	s.memoryMu.Lock()
	defer s.memoryMu.Unlock()
	s.memory = make(map[string]memEntry)
}

func decodeTechnologies(data []byte) (technologiesPayload, string, error) {
	techs, diff, err := docs.DecodeTechnologies(data)
	return technologiesPayload{techs, diff}, "Technologies", err
}

func decodeDetail(data []byte) (*docs.TechnologyDetail, string, error) {
	detail, err := docs.DecodeTechnologyDetail(data)
	if err != nil {
		return nil, "", err
	}
	return detail, detail.Metadata.Title, nil
}

func decodeIndex(data []byte) ([]docs.TechnologyDetailIndex, string, error) {
	nodes, err := docs.DecodeTechnologyDetailIndex(data)
	if err != nil {
		return nil, "", err
	}
	title := ""
	if len(nodes) > 0 {
		title = nodes[0].Title
	}
	return nodes, title, nil
}

func decodeChanges(data []byte) (docs.Changes, string, error) {
	changes, err := docs.DecodeTechnologyChanges(data)
	return changes, "", err
}

func (s *Server) loadTechnologies(ctx context.Context) (technologiesPayload, error) {
	req := loadRequest{kind: db.KindTechnologies, path: technologiesPath, url: s.client.TechnologiesURL()}
	payload, layer, err := load(ctx, s, req, decodeTechnologies)
	if err != nil {
		return technologiesPayload{}, err
	}
	if layer != metrics.LayerMemory {
		if err := s.catalog.IndexTechnologies(payload.technologies); err != nil {
			slog.Warn("indexing technologies failed", "error", err)
		}
		s.updateCatalogGauge()
	}
	return payload, nil
}

func (s *Server) loadDetail(ctx context.Context, path docs.DocumentPath) (*docs.TechnologyDetail, error) {
	u, err := s.client.DetailURL(path)
	if err != nil {
		return nil, err
	}
	req := loadRequest{kind: db.KindDetail, path: normalizePath(path), url: u}
	detail, _, err := load(ctx, s, req, decodeDetail)
	return detail, err
}

func (s *Server) loadIndex(ctx context.Context, path docs.DocumentPath) ([]docs.TechnologyDetailIndex, error) {
	u, err := s.client.IndexURL(path)
	if err != nil {
		return nil, err
	}
	// Every page of a technology shares one index.
	req := loadRequest{kind: db.KindIndex, path: technologyPath(path), url: u}
	nodes, layer, err := load(ctx, s, req, decodeIndex)
	if err != nil {
		return nil, err
	}
	if layer != metrics.LayerMemory {
		technology := technologyPath(path)
		if len(nodes) > 0 && nodes[0].Title != "" {
			technology = nodes[0].Title
		}
		if _, err := s.catalog.IndexSymbols(technology, nodes); err != nil {
			slog.Warn("indexing symbols failed", "technology", technology, "error", err)
		}
		s.updateCatalogGauge()
	}
	return nodes, nil
}

func (s *Server) loadChanges(ctx context.Context, path docs.DocumentPath, key docs.DiffKey) (docs.Changes, error) {
	u, err := s.client.ChangesURL(path, key)
	if err != nil {
		return nil, err
	}
	req := loadRequest{kind: db.KindChanges, path: normalizePath(path), extra: []string{string(key)}, url: u}
	changes, _, err := load(ctx, s, req, decodeChanges)
	return changes, err
}

// warmIndexes loads the indexes of paths concurrently so their symbols are
// searchable.
func (s *Server) warmIndexes(ctx context.Context, paths []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(warmConcurrency)
	for _, p := range paths {
		g.Go(func() error {
			if _, err := s.loadIndex(ctx, docs.DocumentPath(p)); err != nil {
				return fmt.Errorf("indexing %s: %w", p, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Server) updateCatalogGauge() {
	if n, err := s.catalog.Count(); err == nil {
		metrics.CatalogDocuments.Set(float64(n))
	}
}

// normalizePath gives every spelling of a documentation path one cache key.
func normalizePath(path docs.DocumentPath) string {
	p := strings.TrimSuffix(strings.TrimSuffix(path.String(), "/"), ".json")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// technologyPath returns the /documentation/<technology> prefix of path.
func technologyPath(path docs.DocumentPath) string {
	parts := strings.SplitN(strings.TrimPrefix(normalizePath(path), "/"), "/", 3)
	if len(parts) < 2 {
		return normalizePath(path)
	}
	return "/" + parts[0] + "/" + parts[1]
}
