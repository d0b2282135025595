package asset

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	assetPath    = "/assets/"
	maxFetchSize = 20 << 20
)

// Loader fetches annotation images. References under /assets/ on the
// public URL are read straight from the store; anything else is fetched
// over HTTP.
type Loader struct {
	client *http.Client
	base   *url.URL
	store  Store
}

// NewLoader resolves relative references against publicURL. store may be
// nil, in which case every image is fetched over HTTP.
func NewLoader(publicURL string, store Store) (*Loader, error) {
	base, err := url.Parse(publicURL)
	if err != nil {
		return nil, fmt.Errorf("parse public url: %w", err)
	}
	return &Loader{
		client: &http.Client{Timeout: 30 * time.Second},
		base:   base,
		store:  store,
	}, nil
}

// Load returns the decoded image at ref.
func (l *Loader) Load(ctx context.Context, ref string) (image.Image, error) {
	u, err := l.base.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("parse image ref %q: %w", ref, err)
	}

	if l.store != nil && u.Host == l.base.Host && strings.HasPrefix(u.Path, assetPath) {
		return l.loadStored(ctx, strings.TrimPrefix(u.Path, assetPath))
	}
	return l.fetch(ctx, u.String())
}

func (l *Loader) loadStored(ctx context.Context, name string) (image.Image, error) {
	rc, err := l.store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return decode(rc, name)
}

func (l *Loader) fetch(ctx context.Context, rawURL string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	return decode(io.LimitReader(resp.Body, maxFetchSize), rawURL)
}

func decode(r io.Reader, source string) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", source, err)
	}
	return img, nil
}
