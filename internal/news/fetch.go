package news

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "epdnews/internal/log"
	"epdnews/internal/model"
)

// FetchResult contains the outcome of fetching the news document.
type FetchResult struct {
	URL       string
	Body      []byte // JSON payload (either freshly fetched or from cache)
	FromCache bool   // true if the cached body was reused
}

// cacheEntry holds HTTP cache metadata for a single URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Options tunes a Fetcher.
type Options struct {
	// CacheDir holds per-URL cache subdirectories.
	CacheDir string
	// MaxRetries is the number of additional attempts after a failed fetch.
	MaxRetries int
	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration
	// Client defaults to an http.Client with a 15 s timeout.
	Client *http.Client
}

// Fetcher downloads the news document with HTTP caching (ETag /
// Last-Modified) and a disk-backed fallback copy. file:// URLs and bare
// paths are read from the local filesystem.
type Fetcher struct {
	client     *http.Client
	cacheDir   string
	maxRetries int
	retryDelay time.Duration
}

// NewFetcher creates a new Fetcher.
func NewFetcher(opts Options) *Fetcher {
	if opts.CacheDir == "" {
		// Relative so that development runs work without root permissions.
		opts.CacheDir = "./var/news-cache"
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Fetcher{
		client:     opts.Client,
		cacheDir:   opts.CacheDir,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
	}
}

// Document fetches, parses and applies the display policy to the document
// at rawURL. Fetch failures are retried up to MaxRetries times; a malformed
// document is returned immediately.
func (f *Fetcher) Document(ctx context.Context, rawURL string) (*model.Document, error) {
	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			appLog.Info("news fetch retry", "attempt", attempt, "max_retries", f.maxRetries, "url", redactURL(rawURL))
			if err := sleepCtx(ctx, f.retryDelay); err != nil {
				return nil, err
			}
		}

		res, err := f.FetchOne(ctx, rawURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			appLog.Error("news fetch failed", err, "attempt", attempt, "url", redactURL(rawURL))
			lastErr = err
			continue
		}

		doc, err := Parse(res.Body)
		if err != nil {
			appLog.Error("news parse failed", err, "url", redactURL(rawURL), "from_cache", res.FromCache)
			return nil, err
		}
		Apply(doc)
		appLog.Info("news document loaded", "title", doc.Title, "entries", len(doc.Entries), "from_cache", res.FromCache)
		return doc, nil
	}
	return nil, fmt.Errorf("news: fetch failed after %d attempts: %w", f.maxRetries+1, lastErr)
}

// FetchOne fetches rawURL once. HTTP(S) URLs honor ETag and Last-Modified
// and use a disk cache under the cache directory keyed by a hash of the URL.
func (f *Fetcher) FetchOne(ctx context.Context, rawURL string) (FetchResult, error) {
	if rawURL == "" {
		return FetchResult{}, errors.New("news: URL is empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return FetchResult{}, err
	}
	switch u.Scheme {
	case "http", "https":
	case "file":
		return readLocal(rawURL, u.Path)
	case "":
		return readLocal(rawURL, rawURL)
	default:
		return FetchResult{}, fmt.Errorf("news: unsupported URL scheme %q", u.Scheme)
	}

	cachePath, err := f.cachePathForURL(rawURL)
	if err != nil {
		return FetchResult{}, err
	}

	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return FetchResult{}, err
	}

	meta, _ := f.loadCacheMeta(cachePath)
	cachedBody, _ := f.loadCacheBody(cachePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	req.Header.Set("Accept", "application/json")

	// Conditional headers from cache metadata.
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Debug("news fetch start", "url", redactURL(rawURL))

	resp, err := f.client.Do(req)
	if err != nil {
		// Network error; if we have a cached body, fall back to it.
		if len(cachedBody) > 0 && ctx.Err() == nil {
			appLog.Error("news fetch network error, using cached body", err, "url", redactURL(rawURL))
			return FetchResult{URL: rawURL, Body: cachedBody, FromCache: true}, nil
		}
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return FetchResult{}, readErr
		}

		newMeta := cacheEntry{
			URL:          rawURL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := f.saveCache(cachePath, newMeta, body); err != nil {
			// Log but still return the freshly fetched body.
			appLog.Error("news cache save failed", err, "url", redactURL(rawURL))
		}

		appLog.Info("news fetch success", "url", redactURL(rawURL), "status", resp.StatusCode, "bytes", len(body))
		return FetchResult{URL: rawURL, Body: body}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, errors.New("news: received 304 Not Modified but no cached body available")
		}
		appLog.Info("news fetch not modified; using cache", "url", redactURL(rawURL))
		return FetchResult{URL: rawURL, Body: cachedBody, FromCache: true}, nil

	default:
		if len(cachedBody) > 0 {
			appLog.Error("news fetch non-OK, using cached body", errors.New(resp.Status), "url", redactURL(rawURL), "status", resp.StatusCode)
			return FetchResult{URL: rawURL, Body: cachedBody, FromCache: true}, nil
		}
		return FetchResult{}, fmt.Errorf("news: %s", resp.Status)
	}
}

func readLocal(rawURL, path string) (FetchResult, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return FetchResult{}, err
	}
	return FetchResult{URL: rawURL, Body: body}, nil
}

func (f *Fetcher) cachePathForURL(u string) (string, error) {
	if u == "" {
		return "", errors.New("empty url")
	}
	sum := sha256.Sum256([]byte(u))
	// First 16 hex chars as directory name.
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8])), nil
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body.json"))
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	metaFile := filepath.Join(cachePath, "meta.json")
	bodyFile := filepath.Join(cachePath, "body.json")

	// Write body first so meta never points at missing body.
	if err := os.WriteFile(bodyFile, body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(metaFile, data, 0o600)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// redactURL hides the path and query of a URL for logging purposes:
//
//	https://bucket.s3.amazonaws.com/news.json?X-Amz-Signature=abcd
//	-> https://bucket.s3.amazonaws.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "news://...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + redactedSuffix
}

// Feed binds a Fetcher to one document URL.
type Feed struct {
	Fetcher *Fetcher
	URL     string
}

// Document fetches the bound document.
func (s *Feed) Document(ctx context.Context) (*model.Document, error) {
	return s.Fetcher.Document(ctx, s.URL)
}
