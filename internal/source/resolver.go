// Package source turns a source reference into a local, readable file.
// Remote sources are fully downloaded before transcoding begins; there is
// no streaming transcode from a URL.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// FetchError wraps a failed remote download with its transport cause.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch %s: %v", e.URL, e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

type Resolver struct {
	client *http.Client
	dir    string
	logger zerolog.Logger
}

// New builds a resolver that stores downloads under dir. Timeouts are the
// caller's responsibility via ctx.
func New(dir string, logger zerolog.Logger) *Resolver {
	return &Resolver{
		client: &http.Client{},
		dir:    dir,
		logger: logger.With().Str("component", "source").Logger(),
	}
}

// Resolve returns a local path for ref. Local refs are abs-resolved and
// must already exist; http(s) refs are downloaded to a uuid-named file in
// the resolver's directory. cleanup removes anything Resolve materialized.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, func(), error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return r.fetch(ctx, ref)
	}

	abs, err := filepath.Abs(ref)
	if err != nil {
		return "", nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		return "", nil, fmt.Errorf("stat source: %w", err)
	}
	return abs, func() {}, nil
}

func (r *Resolver) fetch(ctx context.Context, rawURL string) (string, func(), error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", nil, err
	}

	dst := filepath.Join(r.dir, "source-"+uuid.NewString()+extOf(rawURL))
	cleanup := func() { _ = os.Remove(dst) }

	r.logger.Info().Str("url", rawURL).Str("dst", dst).Msg("downloading source")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", nil, &FetchError{URL: rawURL, Err: err}
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", nil, &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", nil, &FetchError{URL: rawURL, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	f, err := os.Create(dst)
	if err != nil {
		return "", nil, err
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		return "", nil, &FetchError{URL: rawURL, Err: err}
	}

	r.logger.Info().Str("url", rawURL).Int64("bytes", n).Msg("source downloaded")
	return dst, cleanup, nil
}

func extOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ".mp4"
	}
	if ext := filepath.Ext(u.Path); ext != "" {
		return ext
	}
	return ".mp4"
}
