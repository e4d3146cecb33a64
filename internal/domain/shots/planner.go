// Package shots normalizes raw shot descriptors into canonical shots.
// Everything downstream of this package works only with the canonical form.
package shots

import (
	"fmt"

	"github.com/diwenne/clutch-shot-searcher/internal/types"
)

// FallbackDuration is applied when a shot carries neither an end time nor
// an explicit duration.
const FallbackDuration = 3.0

// MalformedShotError reports a shot whose timing cannot be resolved.
type MalformedShotError struct {
	Index  int
	Reason string
}

func (e *MalformedShotError) Error() string {
	return fmt.Sprintf("malformed shot %d: %s", e.Index, e.Reason)
}

// Plan derives a canonical shot per raw shot, preserving input order.
// Order is load-bearing: the concatenation graph interleaves streams in
// exactly this sequence.
//
// Duration resolution, first match wins: endTime-start, explicit duration,
// FallbackDuration. A missing start or a non-positive derived duration is
// an error, never clamped.
func Plan(raw []types.RawShot) ([]types.Shot, error) {
	out := make([]types.Shot, 0, len(raw))
	for pos, rs := range raw {
		idx := pos
		if rs.Index != nil {
			idx = *rs.Index
		}

		start, ok := startOf(rs)
		if !ok {
			return nil, &MalformedShotError{Index: idx, Reason: "missing start time"}
		}
		if start < 0 {
			return nil, &MalformedShotError{Index: idx, Reason: fmt.Sprintf("negative start time %v", start)}
		}

		dur := durationOf(rs, start)
		if dur <= 0 {
			return nil, &MalformedShotError{Index: idx, Reason: fmt.Sprintf("non-positive duration %v", dur)}
		}

		out = append(out, types.Shot{Index: idx, Start: start, Duration: dur})
	}
	return out, nil
}

func startOf(rs types.RawShot) (float64, bool) {
	if rs.StartTime != nil {
		return *rs.StartTime, true
	}
	if rs.Timestamp != nil {
		return *rs.Timestamp, true
	}
	return 0, false
}

func durationOf(rs types.RawShot, start float64) float64 {
	if rs.EndTime != nil {
		return *rs.EndTime - start
	}
	if rs.Duration != nil {
		return *rs.Duration
	}
	return FallbackDuration
}
