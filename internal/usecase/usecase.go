package usecase

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/diwenne/clutch-shot-searcher/internal/domain/filtergraph"
	"github.com/diwenne/clutch-shot-searcher/internal/domain/shots"
	"github.com/diwenne/clutch-shot-searcher/internal/ports"
	"github.com/diwenne/clutch-shot-searcher/internal/store"
	"github.com/diwenne/clutch-shot-searcher/internal/types"
)

// DefaultWorkers bounds the per-shot transcode pool for separate exports.
const DefaultWorkers = 4

// Stage names the orchestrator step a failure happened in. A job moves
// strictly forward through resolving, planning, compiling, executing,
// storing; no stage is revisited.
type Stage string

const (
	StageResolving Stage = "resolving"
	StagePlanning  Stage = "planning"
	StageCompiling Stage = "compiling"
	StageExecuting Stage = "executing"
	StageStoring   Stage = "storing"
)

// StageError is the only error shape that crosses the orchestrator
// boundary for whole-job failures.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

type Deps struct {
	Source ports.SourceResolver
	Engine ports.Transcoder
	Store  *store.Store
	Logger zerolog.Logger

	// Workers caps concurrent per-shot transcodes; <=0 means
	// DefaultWorkers.
	Workers int
	// ShotTimeout bounds each engine invocation; zero means no bound
	// beyond the caller's context.
	ShotTimeout time.Duration
}

type Orchestrator struct{ d Deps }

func New(d Deps) Orchestrator {
	if d.Workers <= 0 {
		d.Workers = DefaultWorkers
	}
	d.Logger = d.Logger.With().Str("component", "export").Logger()
	return Orchestrator{d: d}
}

type ConcatInput struct {
	Source         string
	Shots          []types.RawShot
	OutputFilename string
	Hint           types.OutputHint
}

type ConcatResult struct {
	Artifact  types.Artifact
	ShotCount int
}

// ExportConcatenated renders every shot, in order, into one artifact.
func (o Orchestrator) ExportConcatenated(ctx context.Context, in ConcatInput) (ConcatResult, error) {
	if in.OutputFilename == "" {
		return ConcatResult{}, &StageError{Stage: StagePlanning, Err: fmt.Errorf("output filename is empty")}
	}

	src, release, err := o.d.Source.Resolve(ctx, in.Source)
	if err != nil {
		return ConcatResult{}, &StageError{Stage: StageResolving, Err: err}
	}
	defer release()

	canonical, err := shots.Plan(in.Shots)
	if err != nil {
		return ConcatResult{}, &StageError{Stage: StagePlanning, Err: err}
	}

	graph, err := filtergraph.CompileConcatenated(canonical)
	if err != nil {
		return ConcatResult{}, &StageError{Stage: StageCompiling, Err: err}
	}

	o.d.Logger.Info().Int("shots", len(canonical)).Str("output", in.OutputFilename).Msg("concatenated export started")

	scratch := o.d.Store.Scratch(in.OutputFilename)
	meta, err := o.runEngine(ctx, src, graph, scratch, in.Hint)
	if err != nil {
		return ConcatResult{}, &StageError{Stage: StageExecuting, Err: err}
	}

	art, err := o.d.Store.Put(ctx, in.OutputFilename, meta.Path)
	if err != nil {
		return ConcatResult{}, &StageError{Stage: StageStoring, Err: err}
	}

	o.d.Logger.Info().Str("filename", art.Filename).Int64("size_bytes", art.SizeBytes).Msg("concatenated export done")
	return ConcatResult{Artifact: art, ShotCount: len(canonical)}, nil
}

type SeparateInput struct {
	Source string
	Shots  []types.RawShot
	Hint   types.OutputHint
}

type ShotArtifact struct {
	ShotIndex int            `json:"shot_index"`
	Artifact  types.Artifact `json:"artifact"`
}

type ShotFailure struct {
	ShotIndex int    `json:"shot_index"`
	Reason    string `json:"reason"`
}

// SeparateResult keys completed artifacts by shot index, reassembled in
// input order regardless of completion order.
type SeparateResult struct {
	Artifacts []ShotArtifact `json:"artifacts"`
	Failures  []ShotFailure  `json:"failures,omitempty"`
}

// Partial reports a mixed outcome: some shots produced artifacts, some
// failed. Distinct from full success (no failures) and full failure,
// which surfaces as a StageError instead.
func (r SeparateResult) Partial() bool {
	return len(r.Failures) > 0 && len(r.Artifacts) > 0
}

// ExportSeparate renders one independent clip per shot, named
// shot_<index>.mp4 so a re-export overwrites rather than duplicates.
// Shots run through a bounded worker pool; one shot's failure does not
// cancel its siblings.
func (o Orchestrator) ExportSeparate(ctx context.Context, in SeparateInput) (SeparateResult, error) {
	src, release, err := o.d.Source.Resolve(ctx, in.Source)
	if err != nil {
		return SeparateResult{}, &StageError{Stage: StageResolving, Err: err}
	}
	defer release()

	canonical, err := shots.Plan(in.Shots)
	if err != nil {
		return SeparateResult{}, &StageError{Stage: StagePlanning, Err: err}
	}

	graphs, err := filtergraph.CompileSeparate(canonical)
	if err != nil {
		return SeparateResult{}, &StageError{Stage: StageCompiling, Err: err}
	}

	o.d.Logger.Info().Int("shots", len(canonical)).Int("workers", o.d.Workers).Msg("separate export started")

	// Slots are indexed by input position; workers write disjoint
	// entries, so no lock is needed.
	arts := make([]*types.Artifact, len(canonical))
	errs := make([]error, len(canonical))

	var g errgroup.Group
	g.SetLimit(o.d.Workers)
	for i := range canonical {
		i := i
		g.Go(func() error {
			name := fmt.Sprintf("shot_%d.mp4", canonical[i].Index)
			scratch := o.d.Store.Scratch(name)

			meta, err := o.runEngine(ctx, src, graphs[i], scratch, in.Hint)
			if err != nil {
				errs[i] = err
				return nil
			}
			art, err := o.d.Store.Put(ctx, name, meta.Path)
			if err != nil {
				errs[i] = err
				return nil
			}
			arts[i] = &art
			o.d.Logger.Info().Int("shot", canonical[i].Index).Str("filename", name).Msg("shot exported")
			return nil
		})
	}
	_ = g.Wait()

	var res SeparateResult
	for i, s := range canonical {
		switch {
		case arts[i] != nil:
			res.Artifacts = append(res.Artifacts, ShotArtifact{ShotIndex: s.Index, Artifact: *arts[i]})
		case errs[i] != nil:
			o.d.Logger.Error().Err(errs[i]).Int("shot", s.Index).Msg("shot export failed")
			res.Failures = append(res.Failures, ShotFailure{ShotIndex: s.Index, Reason: errs[i].Error()})
		}
	}

	if len(res.Artifacts) == 0 {
		first := errs[0]
		for _, err := range errs {
			if err != nil {
				first = err
				break
			}
		}
		return SeparateResult{}, &StageError{
			Stage: StageExecuting,
			Err:   fmt.Errorf("all %d shots failed, first failure: %w", len(canonical), first),
		}
	}
	return res, nil
}

// runEngine wraps one engine invocation with the per-shot timeout and
// discards any partial scratch output on failure.
func (o Orchestrator) runEngine(ctx context.Context, src string, graph types.FilterGraph, scratch string, hint types.OutputHint) (types.FileMeta, error) {
	if hint == (types.OutputHint{}) {
		hint = types.DefaultOutputHint()
	}
	if o.d.ShotTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.d.ShotTimeout)
		defer cancel()
	}

	meta, err := o.d.Engine.Run(ctx, src, graph, scratch, hint)
	if err != nil {
		_ = os.Remove(scratch)
		return types.FileMeta{}, err
	}
	return meta, nil
}
