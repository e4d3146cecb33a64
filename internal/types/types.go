package types

import (
	"strings"
	"time"
)

// RawShot is an externally supplied shot descriptor. Timing fields are
// pointers because callers routinely omit them: EndTime xor Duration xor
// neither may be present, and some callers send Timestamp instead of
// StartTime. Raw shots are never consumed downstream of the planner.
type RawShot struct {
	StartTime *float64 `json:"startTime,omitempty"`
	Timestamp *float64 `json:"timestamp,omitempty"`
	EndTime   *float64 `json:"endTime,omitempty"`
	Duration  *float64 `json:"duration,omitempty"`
	Index     *int     `json:"index,omitempty"`
}

// Shot is the canonical form: a concrete start and a concrete positive
// duration, both in seconds. Index is carried into output filenames.
type Shot struct {
	Index    int
	Start    float64
	Duration float64
}

func (s Shot) End() float64 { return s.Start + s.Duration }

// ConcatenatedPlan joins all shots, in order, into one output file.
type ConcatenatedPlan struct {
	Shots          []Shot
	OutputFilename string
}

// SeparatePlan renders one independent clip per shot.
type SeparatePlan struct {
	Shots []Shot
}

// FilterStage is one node of a filter graph: input labels, a filter chain,
// output labels. String renders it in ffmpeg filter_complex syntax.
type FilterStage struct {
	Inputs  []string
	Ops     string
	Outputs []string
}

func (st FilterStage) String() string {
	var b strings.Builder
	for _, in := range st.Inputs {
		b.WriteString("[" + in + "]")
	}
	b.WriteString(st.Ops)
	for _, out := range st.Outputs {
		b.WriteString("[" + out + "]")
	}
	return b.String()
}

// FilterGraph is an ordered stage list plus the pair of labels the engine
// must map as the final video and audio streams. Built once per plan,
// consumed exactly once.
type FilterGraph struct {
	Stages   []FilterStage
	VideoOut string
	AudioOut string
}

// Expr renders the whole graph as a single -filter_complex expression.
func (g FilterGraph) Expr() string {
	parts := make([]string, 0, len(g.Stages))
	for _, st := range g.Stages {
		parts = append(parts, st.String())
	}
	return strings.Join(parts, ";")
}

// OutputHint selects the target codecs and quality for an engine run.
type OutputHint struct {
	VideoCodec string
	AudioCodec string
	Preset     string
	CRF        int
}

// DefaultOutputHint matches the encoder settings the export volume was
// originally populated with.
func DefaultOutputHint() OutputHint {
	return OutputHint{
		VideoCodec: "libx264",
		AudioCodec: "aac",
		Preset:     "fast",
		CRF:        23,
	}
}

// FileMeta describes a file the engine reports as produced.
type FileMeta struct {
	Path      string
	SizeBytes int64
}

// Artifact is a durably stored output file. Owned by the store from the
// moment the engine reports success.
type Artifact struct {
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
	Path      string    `json:"-"`
}
