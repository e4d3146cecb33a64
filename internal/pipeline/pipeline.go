// Package pipeline is the composition root: it validates configuration,
// wires adapters to the orchestrator, and owns the store lifecycle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/diwenne/clutch-shot-searcher/internal/ports"
	"github.com/diwenne/clutch-shot-searcher/internal/ports/adapters/ffmpeg"
	"github.com/diwenne/clutch-shot-searcher/internal/source"
	"github.com/diwenne/clutch-shot-searcher/internal/store"
	"github.com/diwenne/clutch-shot-searcher/internal/types"
	"github.com/diwenne/clutch-shot-searcher/internal/usecase"
)

type Config struct {
	// ExportDir is the artifact directory; the store owns it exclusively.
	ExportDir string
	// CacheDir holds downloaded sources. If empty, defaults to ".cache".
	CacheDir string

	Workers     int
	ShotTimeout time.Duration

	FFmpegPath string

	VideoCodec string
	AudioCodec string
	Preset     string
	CRF        int

	Logger zerolog.Logger
}

func (c Config) Validate() error {
	if c.ExportDir == "" {
		return errors.New("export directory is empty")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0")
	}
	if c.ShotTimeout < 0 {
		return fmt.Errorf("shot timeout must be >= 0")
	}
	if c.CRF < 0 || c.CRF > 51 {
		return fmt.Errorf("crf must be within [0, 51]")
	}
	return nil
}

func (c Config) hint() types.OutputHint {
	hint := types.DefaultOutputHint()
	if c.VideoCodec != "" {
		hint.VideoCodec = c.VideoCodec
	}
	if c.AudioCodec != "" {
		hint.AudioCodec = c.AudioCodec
	}
	if c.Preset != "" {
		hint.Preset = c.Preset
	}
	if c.CRF > 0 {
		hint.CRF = c.CRF
	}
	return hint
}

type Pipeline struct {
	cfg Config
	st  *store.Store
	orc usecase.Orchestrator
}

func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	st, err := store.Open(cfg.ExportDir, cfg.Logger)
	if err != nil {
		return nil, err
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = ".cache"
	}

	orc := usecase.New(usecase.Deps{
		Source:      source.New(cacheDir, cfg.Logger),
		Engine:      ffmpeg.New(cfg.FFmpegPath),
		Store:       st,
		Logger:      cfg.Logger,
		Workers:     cfg.Workers,
		ShotTimeout: cfg.ShotTimeout,
	})

	return &Pipeline{cfg: cfg, st: st, orc: orc}, nil
}

func (p *Pipeline) Close() error { return p.st.Close() }

// Store exposes the artifact store to retrieval surfaces (CLI, HTTP).
func (p *Pipeline) Store() *store.Store { return p.st }

func (p *Pipeline) ExportConcatenated(ctx context.Context, sourceRef string, raw []types.RawShot, outputFilename string) (usecase.ConcatResult, error) {
	return p.orc.ExportConcatenated(ctx, usecase.ConcatInput{
		Source:         sourceRef,
		Shots:          raw,
		OutputFilename: outputFilename,
		Hint:           p.cfg.hint(),
	})
}

func (p *Pipeline) ExportSeparate(ctx context.Context, sourceRef string, raw []types.RawShot) (usecase.SeparateResult, error) {
	return p.orc.ExportSeparate(ctx, usecase.SeparateInput{
		Source: sourceRef,
		Shots:  raw,
		Hint:   p.cfg.hint(),
	})
}

// ensure adapters implement ports
var _ ports.Transcoder = (*ffmpeg.Adapter)(nil)
var _ ports.SourceResolver = (*source.Resolver)(nil)
