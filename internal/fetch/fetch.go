package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cratewatch/cratewatch/internal/logging"
	"github.com/cratewatch/cratewatch/internal/model"
)

// etagCacheSize bounds the in-memory URL-to-ETag map. Bodies are keyed
// by ETag in the on-disk cache and evicted together with their ETag.
const etagCacheSize = 10240

// BodyCache stores response bodies keyed by ETag. Implemented by the
// package store's http_cache bucket.
type BodyCache interface {
	CacheGet(etag string) ([]byte, error)
	CachePut(etag string, data []byte) error
	CacheDelete(etag string) error
}

// Fetcher retrieves raw files from source hosts with conditional GET.
type Fetcher struct {
	client *http.Client
	etags  *lru.Cache[string, string]
	bodies BodyCache
	log    *logging.Logger
	// raw builds the request URL; swapped out in tests.
	raw func(model.RepoIdentity, string) string
}

// New builds a Fetcher. proxyURL routes outbound requests when set.
func New(proxyURL string, bodies BodyCache, log *logging.Logger) (*Fetcher, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(u)
		log.Debug("using proxy for manifest fetches", "proxy", proxyURL)
	}

	f := &Fetcher{
		client: &http.Client{Transport: transport},
		bodies: bodies,
		log:    log,
		raw:    rawURL,
	}
	etags, err := lru.NewWithEvict[string, string](etagCacheSize, f.onEvict)
	if err != nil {
		return nil, err
	}
	f.etags = etags
	return f, nil
}

func (f *Fetcher) onEvict(_ string, etag string) {
	if err := f.bodies.CacheDelete(etag); err != nil {
		f.log.Error("failed to drop cached body", "etag", etag, "error", err)
	}
}

// rawURL builds the site-specific raw-file URL for a repository path.
func rawURL(ident model.RepoIdentity, relpath string) string {
	switch ident.Site {
	case model.GitLab:
		return fmt.Sprintf("https://gitlab.com/%s/%s/raw/HEAD/%s", ident.Owner, ident.Repo, relpath)
	case model.BitBucket:
		return fmt.Sprintf("https://bitbucket.org/%s/%s/raw/HEAD/%s", ident.Owner, ident.Repo, relpath)
	default:
		return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/HEAD/%s", ident.Owner, ident.Repo, relpath)
	}
}

// Fetch retrieves a file from the repository. When a cached ETag
// exists the request is conditional and a 304 is answered from the
// body cache.
func (f *Fetcher) Fetch(ctx context.Context, ident model.RepoIdentity, relpath string) ([]byte, error) {
	u := f.raw(ident, path.Join(relpath))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	cachedETag, haveETag := f.etags.Get(u)
	if haveETag {
		req.Header.Set("If-None-Match", cachedETag)
	}

	f.log.Debug("fetching", "url", u)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", u, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		if !haveETag {
			return nil, fmt.Errorf("304 without conditional request: %s", u)
		}
		data, err := f.bodies.CacheGet(cachedETag)
		if err != nil {
			return nil, fmt.Errorf("read cached body: %w", err)
		}
		if data == nil {
			return nil, fmt.Errorf("304 but no cached body: %s", u)
		}
		return data, nil

	case resp.StatusCode == http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", u, err)
		}
		if etag := resp.Header.Get("ETag"); etag != "" {
			if err := f.bodies.CachePut(etag, data); err != nil {
				f.log.Error("failed to cache body", "url", u, "error", err)
			} else {
				f.etags.Add(u, etag)
			}
		}
		return data, nil

	default:
		return nil, fmt.Errorf("get %s: unexpected status %s", u, resp.Status)
	}
}
