// Package filtergraph compiles canonical shot sequences into ffmpeg
// filter_complex graphs. Compilation is pure: no probing, no IO.
package filtergraph

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/diwenne/clutch-shot-searcher/internal/types"
)

// All concatenated segments are normalized to one canvas; concat requires
// identical frame geometry across inputs.
const (
	TargetWidth  = 1920
	TargetHeight = 1080
)

// ErrEmptyPlan is returned for a plan with zero shots. Concatenation is
// undefined for zero inputs, and a zero-clip separate export would be a
// silent no-op.
var ErrEmptyPlan = errors.New("empty plan: no shots")

// CompileConcatenated builds a single multi-input graph: per shot a
// trim+reset stage and a scale+pad stage on video, a trim+reset stage on
// audio, then one concat stage consuming every pair in input order.
//
// The timestamp reset (setpts/asetpts) directly after each trim is
// required; concat fed with original-timeline timestamps desyncs audio
// from video.
func CompileConcatenated(shots []types.Shot) (types.FilterGraph, error) {
	if len(shots) == 0 {
		return types.FilterGraph{}, ErrEmptyPlan
	}

	g := types.FilterGraph{VideoOut: "outv", AudioOut: "outa"}
	concatInputs := make([]string, 0, 2*len(shots))

	for i, s := range shots {
		vLabel := fmt.Sprintf("v%d", i)
		aLabel := fmt.Sprintf("a%d", i)

		g.Stages = append(g.Stages, types.FilterStage{
			Inputs: []string{"0:v"},
			Ops: trimOps(s) +
				fmt.Sprintf(",scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
					TargetWidth, TargetHeight, TargetWidth, TargetHeight),
			Outputs: []string{vLabel},
		})
		g.Stages = append(g.Stages, types.FilterStage{
			Inputs:  []string{"0:a"},
			Ops:     atrimOps(s),
			Outputs: []string{aLabel},
		})
		concatInputs = append(concatInputs, vLabel, aLabel)
	}

	g.Stages = append(g.Stages, types.FilterStage{
		Inputs:  concatInputs,
		Ops:     fmt.Sprintf("concat=n=%d:v=1:a=1", len(shots)),
		Outputs: []string{g.VideoOut, g.AudioOut},
	})
	return g, nil
}

// CompileSeparate builds one trim-only graph per shot. No scale/pad: each
// clip stands alone, so the source's native geometry is preserved.
func CompileSeparate(shots []types.Shot) ([]types.FilterGraph, error) {
	if len(shots) == 0 {
		return nil, ErrEmptyPlan
	}

	graphs := make([]types.FilterGraph, 0, len(shots))
	for _, s := range shots {
		g := types.FilterGraph{VideoOut: "outv", AudioOut: "outa"}
		g.Stages = append(g.Stages,
			types.FilterStage{
				Inputs:  []string{"0:v"},
				Ops:     trimOps(s),
				Outputs: []string{g.VideoOut},
			},
			types.FilterStage{
				Inputs:  []string{"0:a"},
				Ops:     atrimOps(s),
				Outputs: []string{g.AudioOut},
			},
		)
		graphs = append(graphs, g)
	}
	return graphs, nil
}

// Trim stages use start+duration semantics, not start+end.

func trimOps(s types.Shot) string {
	return fmt.Sprintf("trim=start=%s:duration=%s,setpts=PTS-STARTPTS",
		fmtSeconds(s.Start), fmtSeconds(s.Duration))
}

func atrimOps(s types.Shot) string {
	return fmt.Sprintf("atrim=start=%s:duration=%s,asetpts=PTS-STARTPTS",
		fmtSeconds(s.Start), fmtSeconds(s.Duration))
}

func fmtSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
