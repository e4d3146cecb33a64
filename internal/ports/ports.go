package ports

import (
	"context"

	"github.com/diwenne/clutch-shot-searcher/internal/types"
)

// SourceResolver guarantees a local, readable media file for a source
// reference (local path or http(s) URL) before any transcoding starts.
// cleanup releases whatever the resolver materialized; it is always
// non-nil on success.
type SourceResolver interface {
	Resolve(ctx context.Context, ref string) (path string, cleanup func(), err error)
}

// Transcoder runs the external engine against one compiled graph and
// blocks until the process exits. Success requires both a zero exit and a
// non-empty file at outPath; the exit code alone is not trusted.
type Transcoder interface {
	Run(ctx context.Context, sourcePath string, graph types.FilterGraph, outPath string, hint types.OutputHint) (types.FileMeta, error)
}
