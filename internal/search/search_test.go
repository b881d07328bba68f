package search

import (
	"path/filepath"
	"testing"

	"github.com/jcdickinson/applefetch/internal/docs"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewMemory()
	if err != nil {
		t.Fatalf("creating catalog: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

var testTechnologies = docs.Technologies{
	{
		Title: "SwiftUI",
		Tags:  []string{"UI"},
		Destination: docs.Destination{
			Identifier: "doc://swiftui",
			Value:      "/documentation/swiftui",
			Abstract:   "Declare the user interface and behavior for your app.",
		},
	},
	{
		Title: "Metal",
		Tags:  []string{"Graphics"},
		Destination: docs.Destination{
			Identifier: "doc://metal",
			Value:      "/documentation/metal",
			Abstract:   "Render advanced 3D graphics and compute data in parallel.",
		},
	},
}

var testIndex = []docs.TechnologyDetailIndex{{
	Title: "SwiftUI",
	Path:  "/documentation/swiftui",
	Kind:  docs.KindModule,
	Children: []docs.TechnologyDetailIndex{
		{Title: "Views", Kind: docs.KindGroupMarker},
		{Title: "View", Path: "/documentation/swiftui/view", Kind: docs.KindProtocol},
		{Title: "NavigationStack", Path: "/documentation/swiftui/navigationstack", Kind: docs.KindStruct},
		{Title: "Combine", Path: "/documentation/combine", Kind: docs.KindModule, External: true},
	},
}}

func TestCatalogSearch(t *testing.T) {
	t.Parallel()
	c := testCatalog(t)

	if err := c.IndexTechnologies(testTechnologies); err != nil {
		t.Fatal(err)
	}
	n, err := c.IndexSymbols("SwiftUI", testIndex)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("IndexSymbols indexed %d, want 3 (group markers and external nodes skipped)", n)
	}

	count, err := c.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 5 {
		t.Errorf("Count = %d, want 5", count)
	}

	tests := []struct {
		name     string
		query    string
		kinds    []string
		wantPath string
		wantKind string
	}{
		{"title match", "metal", nil, "/documentation/metal", KindTechnology},
		{"abstract match", "graphics parallel", nil, "/documentation/metal", KindTechnology},
		{"title prefix", "navigation", nil, "/documentation/swiftui/navigationstack", KindSymbol},
		{"symbol filter", "swiftui", []string{KindSymbol}, "/documentation/swiftui", KindSymbol},
		{"tag match", "Graphics", []string{KindTechnology}, "/documentation/metal", KindTechnology},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := c.Search(tt.query, tt.kinds, 5)
			if err != nil {
				t.Fatal(err)
			}
			if len(results) == 0 {
				t.Fatalf("no results for %q", tt.query)
			}
			top := results[0]
			if top.Path != tt.wantPath || top.Kind != tt.wantKind {
				t.Errorf("top hit = %+v, want %s %s", top, tt.wantKind, tt.wantPath)
			}
			if top.URI != "appledoc://"+tt.wantPath[1:] {
				t.Errorf("uri = %q", top.URI)
			}
			for _, r := range results {
				if len(tt.kinds) > 0 && r.Kind != tt.kinds[0] {
					t.Errorf("result %+v escaped kind filter", r)
				}
			}
		})
	}
}

func TestCatalogSearch_Reindex(t *testing.T) {
	t.Parallel()
	c := testCatalog(t)

	for i := 0; i < 2; i++ {
		if err := c.IndexTechnologies(testTechnologies); err != nil {
			t.Fatal(err)
		}
	}
	count, err := c.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != uint64(len(testTechnologies)) {
		t.Errorf("re-indexing duplicated documents: count = %d", count)
	}
}

func TestCatalogSearch_EmptyQuery(t *testing.T) {
	t.Parallel()
	c := testCatalog(t)

	if _, err := c.Search("   ", nil, 5); err == nil {
		t.Error("expected error for empty query")
	}
}

func TestOpen_Persists(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "catalog.bleve")

	c, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.IndexTechnologies(testTechnologies); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	c, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	count, err := c.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("reopened catalog has %d documents, want 2", count)
	}
}
