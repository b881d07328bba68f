package search

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/jcdickinson/applefetch/internal/docs"
	"github.com/jcdickinson/applefetch/internal/rpc"
)

const (
	KindTechnology = "technology"
	KindSymbol     = "symbol"

	fieldKind     = "kind"
	fieldTitle    = "title"
	fieldPath     = "path"
	fieldAbstract = "abstract"
	fieldTags     = "tags"

	maxBatchSize = 500
)

// Document is what the catalog stores per page.
type Document struct {
	Kind     string   `json:"kind"`
	Title    string   `json:"title"`
	Path     string   `json:"path"`
	Abstract string   `json:"abstract"`
	Tags     []string `json:"tags"`
}

// Catalog is a full-text index over technologies and index symbols.
type Catalog struct {
	index bleve.Index
}

func indexMapping() mapping.IndexMapping {
	doc := bleve.NewDocumentMapping()

	title := bleve.NewTextFieldMapping()
	title.Analyzer = standard.Name
	title.Store = true
	doc.AddFieldMappingsAt(fieldTitle, title)

	abstract := bleve.NewTextFieldMapping()
	abstract.Analyzer = standard.Name
	abstract.Store = true
	doc.AddFieldMappingsAt(fieldAbstract, abstract)

	for _, name := range []string{fieldKind, fieldPath, fieldTags} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = keyword.Name
		f.Store = true
		doc.AddFieldMappingsAt(name, f)
	}

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = standard.Name
	return m
}

// Open opens the catalog at path, creating it when absent.
func Open(path string) (*Catalog, error) {
	idx, err := bleve.Open(path)
	if err == nil {
		return &Catalog{index: idx}, nil
	}
	if _, statErr := os.Stat(path); statErr == nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	idx, err = bleve.New(path, indexMapping())
	if err != nil {
		return nil, fmt.Errorf("creating catalog: %w", err)
	}
	return &Catalog{index: idx}, nil
}

// NewMemory returns a catalog that lives only in memory.
func NewMemory() (*Catalog, error) {
	idx, err := bleve.NewMemOnly(indexMapping())
	if err != nil {
		return nil, fmt.Errorf("creating catalog: %w", err)
	}
	return &Catalog{index: idx}, nil
}

func (c *Catalog) Close() error {
	return c.index.Close()
}

func docID(kind, path string) string {
	return kind + ":" + path
}

// IndexTechnologies adds or replaces one document per technology.
func (c *Catalog) IndexTechnologies(techs docs.Technologies) error {
	batch := c.index.NewBatch()
	for _, t := range techs {
		path := t.Destination.Value.String()
		doc := Document{
			Kind:     KindTechnology,
			Title:    t.Title,
			Path:     path,
			Abstract: t.Destination.Abstract,
			Tags:     t.Tags,
		}
		if err := batch.Index(docID(KindTechnology, path), doc); err != nil {
			return fmt.Errorf("indexing technology %s: %w", t.Title, err)
		}
	}
	if err := c.index.Batch(batch); err != nil {
		return fmt.Errorf("writing technologies batch: %w", err)
	}
	slog.Debug("indexed technologies", "count", len(techs))
	return nil
}

// IndexSymbols adds every index node that has a path. technology is stored
// as the symbol's tag so results can be traced back.
func (c *Catalog) IndexSymbols(technology string, nodes []docs.TechnologyDetailIndex) (int, error) {
	batch := c.index.NewBatch()
	count := 0
	flush := func() error {
		if batch.Size() == 0 {
			return nil
		}
		if err := c.index.Batch(batch); err != nil {
			return fmt.Errorf("writing symbols batch: %w", err)
		}
		batch.Reset()
		return nil
	}

	var walkErr error
	for _, root := range nodes {
		root.Walk(func(n docs.TechnologyDetailIndex, _ int) bool {
			if walkErr != nil {
				return false
			}
			if n.Path == "" || n.External || n.Kind == docs.KindGroupMarker {
				return true
			}
			doc := Document{
				Kind:     KindSymbol,
				Title:    n.Title,
				Path:     n.Path.String(),
				Abstract: n.Kind.String(),
				Tags:     []string{technology},
			}
			if err := batch.Index(docID(KindSymbol, doc.Path), doc); err != nil {
				walkErr = fmt.Errorf("indexing symbol %s: %w", n.Path, err)
				return false
			}
			count++
			if batch.Size() >= maxBatchSize {
				walkErr = flush()
			}
			return walkErr == nil
		})
		if walkErr != nil {
			return count, walkErr
		}
	}
	if err := flush(); err != nil {
		return count, err
	}
	slog.Debug("indexed symbols", "technology", technology, "count", count)
	return count, nil
}

func buildQuery(q string, kinds []string) query.Query {
	q = strings.TrimSpace(q)

	title := bleve.NewMatchQuery(q)
	title.SetField(fieldTitle)
	title.SetBoost(5.0)

	prefix := bleve.NewPrefixQuery(strings.ToLower(q))
	prefix.SetField(fieldTitle)
	prefix.SetBoost(2.0)

	abstract := bleve.NewMatchQuery(q)
	abstract.SetField(fieldAbstract)

	tag := bleve.NewTermQuery(q)
	tag.SetField(fieldTags)

	text := bleve.NewDisjunctionQuery(title, prefix, abstract, tag)
	if len(kinds) == 0 {
		return text
	}

	kindQueries := make([]query.Query, 0, len(kinds))
	for _, k := range kinds {
		tq := bleve.NewTermQuery(k)
		tq.SetField(fieldKind)
		kindQueries = append(kindQueries, tq)
	}
	return bleve.NewConjunctionQuery(text, bleve.NewDisjunctionQuery(kindQueries...))
}

// Search runs q against titles, abstracts and tags. kinds restricts the
// document kinds; empty means all.
func (c *Catalog) Search(q string, kinds []string, limit int) ([]rpc.SearchResult, error) {
	if strings.TrimSpace(q) == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if limit <= 0 {
		limit = 10
	}
	slog.Info("search", "query", q, "kinds", kinds, "limit", limit)

	req := bleve.NewSearchRequest(buildQuery(q, kinds))
	req.Size = limit
	req.Fields = []string{fieldKind, fieldTitle, fieldPath, fieldAbstract}

	res, err := c.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("searching catalog: %w", err)
	}

	results := make([]rpc.SearchResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		r := rpc.SearchResult{Score: hit.Score}
		r.Kind, _ = hit.Fields[fieldKind].(string)
		r.Title, _ = hit.Fields[fieldTitle].(string)
		r.Path, _ = hit.Fields[fieldPath].(string)
		r.Abstract, _ = hit.Fields[fieldAbstract].(string)
		r.URI = "appledoc://" + strings.TrimPrefix(r.Path, "/")
		results = append(results, r)
	}
	return results, nil
}

// Count returns the number of catalogued documents.
func (c *Catalog) Count() (uint64, error) {
	return c.index.DocCount()
}
