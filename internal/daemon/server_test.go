package daemon

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jcdickinson/applefetch/internal/config"
	"github.com/jcdickinson/applefetch/internal/db"
	"github.com/jcdickinson/applefetch/internal/rpc"
	"github.com/jcdickinson/applefetch/internal/search"
)

const technologiesJSON = `{
  "sections": [{"kind": "technologies", "groups": [{"name": "All", "technologies": [
    {"title": "SwiftUI", "languages": ["swift"], "tags": ["UI"],
     "destination": {"identifier": "doc://swiftui", "type": "reference", "isActive": true}},
    {"title": "Metal", "languages": ["swift", "occ"], "tags": ["Graphics"],
     "destination": {"identifier": "doc://metal", "type": "reference", "isActive": true}}
  ]}]}],
  "references": {
    "doc://swiftui": {"type": "topic", "title": "SwiftUI", "url": "/documentation/swiftui",
      "abstract": [{"type": "text", "text": "Declare the user interface."}]},
    "doc://metal": {"type": "topic", "title": "Metal", "url": "/documentation/metal",
      "abstract": [{"type": "text", "text": "Render advanced 3D graphics."}]}
  },
  "diffAvailability": {
    "major": {"change": "modified", "platform": "Xcode", "versions": ["15.0", "16.0"]},
    "minor": {"change": "modified", "platform": "Xcode", "versions": ["16.0", "16.1"]}
  }
}`

const viewJSON = `{
  "metadata": {"title": "View", "roleHeading": "Protocol"},
  "abstract": [{"type": "reference", "identifier": "doc://swiftui/Text", "isActive": true}],
  "references": {"doc://swiftui/Text": {"type": "topic", "title": "Text", "url": "/documentation/swiftui/text"}}
}`

const indexJSON = `{"interfaceLanguages": {"swift": [
  {"title": "SwiftUI", "path": "/documentation/swiftui", "type": "module", "children": [
    {"title": "Views", "type": "groupMarker"},
    {"title": "View", "path": "/documentation/swiftui/view", "type": "protocol", "children": [
      {"title": "body", "path": "/documentation/swiftui/view/body", "type": "property"}
    ]}
  ]}
]}}`

const changesJSON = `{
  "doc://swiftui/View": {"change": "modified"},
  "doc://swiftui/App": {"change": "added"},
  "doc://swiftui/Old": {"change": null}
}`

type fakeAPI struct {
	*httptest.Server
	mu      sync.Mutex
	hits    map[string]int
	failing atomic.Bool
	delay   time.Duration
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{hits: make(map[string]int)}
	api.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		api.hits[r.URL.Path]++
		api.mu.Unlock()
		if api.delay > 0 {
			time.Sleep(api.delay)
		}
		if api.failing.Load() {
			http.Error(w, "upstream down", http.StatusServiceUnavailable)
			return
		}
		switch r.URL.Path {
		case "/documentation/technologies.json":
			w.Write([]byte(technologiesJSON))
		case "/documentation/swiftui/view.json":
			w.Write([]byte(viewJSON))
		case "/documentation/swiftui/garbled.json":
			w.Write([]byte(`{"metadata": {}}`))
		case "/index/swiftui":
			w.Write([]byte(indexJSON))
		case "/diffs/documentation/swiftui.json":
			w.Write([]byte(changesJSON))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(api.Close)
	return api
}

func (a *fakeAPI) hitCount(path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hits[path]
}

type testEnv struct {
	api    *fakeAPI
	cfg    *config.Config
	dbPath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", dir)

	api := newFakeAPI(t)
	return &testEnv{
		api: api,
		cfg: &config.Config{
			API: config.APIConfig{
				BaseURL:   config.BaseURL(api.URL),
				UserAgent: "applefetch-test",
				Timeout:   5 * time.Second,
				WebURL:    "https://developer.apple.com",
			},
			Cache:  config.CacheConfig{TTL: time.Hour},
			Daemon: config.DaemonConfig{Expiration: time.Minute},
			Search: config.SearchConfig{DefaultLimit: 10},
		},
		dbPath: filepath.Join(dir, "test.duckdb"),
	}
}

// server builds a daemon over the env's store. Servers built from the same
// env share the database and CAS but not memory.
func (e *testEnv) server(t *testing.T) *Server {
	t.Helper()
	database, err := db.New(e.dbPath)
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	catalog, err := search.NewMemory()
	if err != nil {
		t.Fatalf("creating catalog: %v", err)
	}
	srv := NewServer(e.cfg, database, catalog, filepath.Join(t.TempDir(), "test.sock"))
	t.Cleanup(func() {
		catalog.Close()
		database.Close()
	})
	return srv
}

func call(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding response: %v\n%s", err, rec.Body.String())
	}
	return v
}

func TestServer_Technologies(t *testing.T) {
	env := newTestEnv(t)
	srv := env.server(t)

	resp := decodeBody[rpc.TechnologiesResponse](t, call(t, srv, "GET", "/technologies", nil))
	if len(resp.Technologies) != 2 {
		t.Fatalf("technologies = %+v", resp.Technologies)
	}
	if len(resp.Tags) != 2 {
		t.Errorf("tags = %v, want [UI Graphics]", resp.Tags)
	}
	if len(resp.DiffAvailability) != 2 || resp.DiffAvailability[0].Key != "minor" {
		t.Errorf("diff availability = %+v, want minor first", resp.DiffAvailability)
	}

	filtered := decodeBody[rpc.TechnologiesResponse](t, call(t, srv, "GET", "/technologies?tag=graphics", nil))
	if len(filtered.Technologies) != 1 || filtered.Technologies[0].Title != "Metal" {
		t.Errorf("filtered = %+v, want only Metal", filtered.Technologies)
	}

	if n := env.api.hitCount("/documentation/technologies.json"); n != 1 {
		t.Errorf("upstream hit %d times, want 1", n)
	}
}

func TestServer_StoreSurvivesRestart(t *testing.T) {
	env := newTestEnv(t)

	first := env.server(t)
	call(t, first, "POST", "/get-doc", rpc.GetDocRequest{Path: "/documentation/swiftui/view"})
	first.db.Close()

	second := env.server(t)
	resp := decodeBody[rpc.GetDocResponse](t, call(t, second, "POST", "/get-doc", rpc.GetDocRequest{Path: "documentation/swiftui/view/"}))
	if resp.Title != "View" {
		t.Errorf("title = %q", resp.Title)
	}
	if n := env.api.hitCount("/documentation/swiftui/view.json"); n != 1 {
		t.Errorf("upstream hit %d times, want 1 (second load served from store)", n)
	}
}

func TestServer_StaleOnFetchFailure(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Cache.TTL = 0
	srv := env.server(t)

	decodeBody[rpc.TechnologiesResponse](t, call(t, srv, "GET", "/technologies", nil))

	env.api.failing.Store(true)
	resp := decodeBody[rpc.TechnologiesResponse](t, call(t, srv, "GET", "/technologies", nil))
	if len(resp.Technologies) != 2 {
		t.Errorf("stale technologies = %+v", resp.Technologies)
	}
	if n := env.api.hitCount("/documentation/technologies.json"); n != 2 {
		t.Errorf("upstream hit %d times, want 2 (zero TTL always refetches)", n)
	}
}

func TestServer_GetDoc(t *testing.T) {
	env := newTestEnv(t)
	srv := env.server(t)

	tests := []struct {
		name string
		web  bool
		want string
	}{
		{"resource links", false, "[Text](appledoc://documentation/swiftui/text)"},
		{"web links", true, "[Text](https://developer.apple.com/documentation/swiftui/text)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := decodeBody[rpc.GetDocResponse](t, call(t, srv, "POST", "/get-doc",
				rpc.GetDocRequest{Path: "/documentation/swiftui/view", Web: tt.web}))
			if !strings.Contains(resp.Markdown, tt.want) {
				t.Errorf("markdown missing %q:\n%s", tt.want, resp.Markdown)
			}
			if !strings.Contains(resp.Markdown, "path: /documentation/swiftui/view\n") {
				t.Errorf("front matter missing path:\n%s", resp.Markdown)
			}
		})
	}
}

func TestServer_Errors(t *testing.T) {
	env := newTestEnv(t)
	srv := env.server(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"missing page", "POST", "/get-doc", rpc.GetDocRequest{Path: "/documentation/nope"}, http.StatusNotFound},
		{"missing path", "POST", "/get-doc", rpc.GetDocRequest{}, http.StatusBadRequest},
		{"undecodable page", "POST", "/get-doc", rpc.GetDocRequest{Path: "/documentation/swiftui/garbled"}, http.StatusBadGateway},
		{"index outside documentation", "POST", "/get-index", rpc.GetIndexRequest{Path: "/tutorials/swiftui"}, http.StatusBadRequest},
		{"unknown diff key", "POST", "/changes", rpc.ChangesRequest{Path: "/documentation/swiftui", Key: "patch"}, http.StatusBadRequest},
		{"empty query", "POST", "/search", rpc.SearchRequest{}, http.StatusBadRequest},
		{"unknown route", "GET", "/nope", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := call(t, srv, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestServer_ConcurrentLoadsShareFetch(t *testing.T) {
	env := newTestEnv(t)
	env.api.delay = 50 * time.Millisecond
	srv := env.server(t)

	var wg sync.WaitGroup
	codes := make([]int, 8)
	for i := range codes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes[i] = call(t, srv, "POST", "/get-doc", rpc.GetDocRequest{Path: "/documentation/swiftui/view"}).Code
		}()
	}
	wg.Wait()

	for i, code := range codes {
		if code != http.StatusOK {
			t.Errorf("request %d status = %d", i, code)
		}
	}
	if n := env.api.hitCount("/documentation/swiftui/view.json"); n != 1 {
		t.Errorf("upstream hit %d times, want 1", n)
	}
}

func TestServer_GetIndex(t *testing.T) {
	env := newTestEnv(t)
	srv := env.server(t)

	full := decodeBody[rpc.GetIndexResponse](t, call(t, srv, "POST", "/get-index", rpc.GetIndexRequest{Path: "/documentation/swiftui/view"}))
	if len(full.Nodes) != 1 || len(full.Nodes[0].Children) != 2 || len(full.Nodes[0].Children[1].Children) != 1 {
		t.Fatalf("full index = %+v", full.Nodes)
	}

	shallow := decodeBody[rpc.GetIndexResponse](t, call(t, srv, "POST", "/get-index", rpc.GetIndexRequest{Path: "/documentation/swiftui", Depth: 1}))
	if len(shallow.Nodes) != 1 || len(shallow.Nodes[0].Children) != 0 {
		t.Errorf("depth 1 index = %+v", shallow.Nodes)
	}

	if n := env.api.hitCount("/index/swiftui"); n != 1 {
		t.Errorf("index fetched %d times, want 1 (pages of one technology share it)", n)
	}
}

func TestServer_Changes(t *testing.T) {
	env := newTestEnv(t)
	srv := env.server(t)

	resp := decodeBody[rpc.ChangesResponse](t, call(t, srv, "POST", "/changes", rpc.ChangesRequest{Path: "/documentation/swiftui"}))
	if resp.Key != "minor" {
		t.Errorf("key = %q, want minor", resp.Key)
	}
	if len(resp.Changes) != 2 {
		t.Fatalf("changes = %+v, want 2 (null change omitted)", resp.Changes)
	}
	if resp.Changes[0].Identifier != "doc://swiftui/App" || resp.Changes[0].Change != "added" {
		t.Errorf("first change = %+v", resp.Changes[0])
	}
}

func TestServer_Search(t *testing.T) {
	env := newTestEnv(t)
	srv := env.server(t)

	resp := decodeBody[rpc.SearchResponse](t, call(t, srv, "POST", "/search", rpc.SearchRequest{Query: "metal"}))
	if len(resp.Results) == 0 || resp.Results[0].Path != "/documentation/metal" {
		t.Fatalf("results = %+v, want Metal first", resp.Results)
	}

	symbols := decodeBody[rpc.SearchResponse](t, call(t, srv, "POST", "/search", rpc.SearchRequest{
		Query:        "body",
		Kinds:        []string{search.KindSymbol},
		Technologies: []string{"/documentation/swiftui"},
	}))
	if len(symbols.Results) == 0 || symbols.Results[0].URI != "appledoc://documentation/swiftui/view/body" {
		t.Errorf("symbol results = %+v", symbols.Results)
	}
}

func TestServer_ClearCache(t *testing.T) {
	env := newTestEnv(t)
	srv := env.server(t)

	call(t, srv, "GET", "/technologies", nil)
	call(t, srv, "POST", "/get-doc", rpc.GetDocRequest{Path: "/documentation/swiftui/view"})

	status := decodeBody[rpc.StatusResponse](t, call(t, srv, "GET", "/status", nil))
	if status.Pages["technologies"] != 1 || status.Pages["detail"] != 1 || status.MemoryPages != 2 {
		t.Errorf("status before clear = %+v", status)
	}
	if status.Catalog != 2 {
		t.Errorf("catalog = %d, want 2", status.Catalog)
	}

	cleared := decodeBody[rpc.ClearCacheResponse](t, call(t, srv, "POST", "/clear-cache", nil))
	if cleared.Pages != 2 {
		t.Errorf("cleared %d pages, want 2", cleared.Pages)
	}

	status = decodeBody[rpc.StatusResponse](t, call(t, srv, "GET", "/status", nil))
	if len(status.Pages) != 0 || status.MemoryPages != 0 {
		t.Errorf("status after clear = %+v", status)
	}

	call(t, srv, "GET", "/technologies", nil)
	if n := env.api.hitCount("/documentation/technologies.json"); n != 2 {
		t.Errorf("upstream hit %d times, want 2 after clearing", n)
	}
}

func TestServer_Metrics(t *testing.T) {
	env := newTestEnv(t)
	srv := env.server(t)

	call(t, srv, "GET", "/technologies", nil)
	rec := call(t, srv, "GET", "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	for _, want := range []string{
		"applefetch_payload_loads_total",
		"applefetch_http_requests_total",
	} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}
