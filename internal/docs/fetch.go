package docs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client downloads render JSON from the developer documentation API.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		http:      &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the API base without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// TechnologiesURL is the address of the technologies root payload.
func (c *Client) TechnologiesURL() string {
	return c.baseURL + "/documentation/technologies.json"
}

// DetailURL is the address of the render JSON for path.
func (c *Client) DetailURL(path DocumentPath) (string, error) {
	p, err := cleanPath(path)
	if err != nil {
		return "", err
	}
	return c.baseURL + p + ".json", nil
}

// IndexURL is the address of the symbol index of the technology that path
// belongs to. Only paths under /documentation have an index.
func (c *Client) IndexURL(path DocumentPath) (string, error) {
	p, err := cleanPath(path)
	if err != nil {
		return "", err
	}
	parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
	if len(parts) < 2 || parts[0] != "documentation" || parts[1] == "" {
		return "", fmt.Errorf("%w: %q has no technology component", ErrInvalidPath, path)
	}
	return c.baseURL + "/index/" + parts[1], nil
}

// ChangesURL is the address of the diff payload of path against the latest
// release of the given kind.
func (c *Client) ChangesURL(path DocumentPath, key DiffKey) (string, error) {
	p, err := cleanPath(path)
	if err != nil {
		return "", err
	}
	q := url.Values{"changes": {"latest_" + string(key)}}
	return c.baseURL + "/diffs" + p + ".json?" + q.Encode(), nil
}

func cleanPath(path DocumentPath) (string, error) {
	p := strings.TrimSuffix(strings.TrimSpace(string(path)), ".json")
	p = strings.TrimRight(p, "/")
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if strings.Contains(p, "..") || strings.ContainsAny(p, "?#") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return p, nil
}

// Fetch downloads the body at url. A 404 wraps ErrNotFound.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("fetching %s: %w", url, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("documentation API returned %d for %s: %s", resp.StatusCode, url, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return data, nil
}

// Technologies fetches and decodes the technologies root.
func (c *Client) Technologies(ctx context.Context) (Technologies, DiffAvailability, error) {
	data, err := c.Fetch(ctx, c.TechnologiesURL())
	if err != nil {
		return nil, nil, err
	}
	return DecodeTechnologies(data)
}

// Detail fetches and decodes the page at path.
func (c *Client) Detail(ctx context.Context, path DocumentPath) (*TechnologyDetail, error) {
	u, err := c.DetailURL(path)
	if err != nil {
		return nil, err
	}
	data, err := c.Fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	return DecodeTechnologyDetail(data)
}

// Index fetches and decodes the Swift symbol index for path.
func (c *Client) Index(ctx context.Context, path DocumentPath) ([]TechnologyDetailIndex, error) {
	u, err := c.IndexURL(path)
	if err != nil {
		return nil, err
	}
	data, err := c.Fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	return DecodeTechnologyDetailIndex(data)
}

// Changes fetches and decodes the change annotations of path.
func (c *Client) Changes(ctx context.Context, path DocumentPath, key DiffKey) (Changes, error) {
	u, err := c.ChangesURL(path, key)
	if err != nil {
		return nil, err
	}
	data, err := c.Fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	return DecodeTechnologyChanges(data)
}
