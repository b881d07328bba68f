package rpc

import "github.com/jcdickinson/applefetch/internal/docs"

// TechnologiesResponse is the response body for GET /technologies.
type TechnologiesResponse struct {
	Technologies     docs.Technologies `json:"technologies"`
	Tags             []string          `json:"tags"`
	DiffAvailability []docs.DiffEntry  `json:"diff_availability,omitempty"`
}

// GetDocRequest is the request body for POST /get-doc. Web links point at
// the public website instead of appledoc:// resources.
type GetDocRequest struct {
	Path string `json:"path"`
	Web  bool   `json:"web,omitempty"`
}

// GetDocResponse is the response body for POST /get-doc.
type GetDocResponse struct {
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
}

// GetIndexRequest is the request body for POST /get-index.
// Depth 0 returns the full tree.
type GetIndexRequest struct {
	Path  string `json:"path"`
	Depth int    `json:"depth,omitempty"`
}

// GetIndexResponse is the response body for POST /get-index.
type GetIndexResponse struct {
	Nodes []docs.TechnologyDetailIndex `json:"nodes"`
}

// ChangesRequest is the request body for POST /changes.
type ChangesRequest struct {
	Path string `json:"path"`
	Key  string `json:"key,omitempty"`
}

// ChangesResponse is the response body for POST /changes.
type ChangesResponse struct {
	Key     string        `json:"key"`
	Changes []ChangeEntry `json:"changes"`
}

type ChangeEntry struct {
	Identifier docs.Identifier `json:"identifier"`
	Change     docs.Change     `json:"change"`
}

// SearchRequest is the request body for POST /search. The symbol indexes of
// Technologies are loaded before searching.
type SearchRequest struct {
	Query        string   `json:"query"`
	Kinds        []string `json:"kinds,omitempty"`
	Limit        int      `json:"limit,omitempty"`
	Technologies []string `json:"technologies,omitempty"`
}

// SearchResponse is the response body for POST /search.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

type SearchResult struct {
	URI      string  `json:"uri"`
	Kind     string  `json:"kind"`
	Title    string  `json:"title"`
	Path     string  `json:"path"`
	Abstract string  `json:"abstract,omitempty"`
	Score    float64 `json:"score"`
}

// StatusResponse is the response body for GET /status.
type StatusResponse struct {
	Pages       map[string]int `json:"pages"`
	Catalog     uint64         `json:"catalog"`
	MemoryPages int            `json:"memory_pages"`
	Uptime      string         `json:"uptime"`
}

// ClearCacheResponse is the response body for POST /clear-cache.
type ClearCacheResponse struct {
	Pages int `json:"pages"`
}
