package ffmpeg

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/diwenne/clutch-shot-searcher/internal/types"
)

func testGraph() types.FilterGraph {
	return types.FilterGraph{
		Stages: []types.FilterStage{
			{Inputs: []string{"0:v"}, Ops: "trim=start=0:duration=5,setpts=PTS-STARTPTS", Outputs: []string{"outv"}},
			{Inputs: []string{"0:a"}, Ops: "atrim=start=0:duration=5,asetpts=PTS-STARTPTS", Outputs: []string{"outa"}},
		},
		VideoOut: "outv",
		AudioOut: "outa",
	}
}

func TestBuildArgs(t *testing.T) {
	t.Parallel()

	args := buildArgs("/tmp/in.mp4", testGraph(), "/tmp/out.mp4", types.DefaultOutputHint())
	require.Equal(t, []string{
		"-hide_banner",
		"-nostdin",
		"-i", "/tmp/in.mp4",
		"-filter_complex", "[0:v]trim=start=0:duration=5,setpts=PTS-STARTPTS[outv];[0:a]atrim=start=0:duration=5,asetpts=PTS-STARTPTS[outa]",
		"-map", "[outv]",
		"-map", "[outa]",
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		"-y",
		"/tmp/out.mp4",
	}, args)
}

// fakeEngine writes a shell script standing in for ffmpeg. Like the real
// engine, the output path is the final argument.
func fakeEngine(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func TestRun_Success(t *testing.T) {
	t.Parallel()

	bin := fakeEngine(t, `for a in "$@"; do out="$a"; done; printf fakevideo > "$out"`)
	outPath := filepath.Join(t.TempDir(), "out.mp4")

	meta, err := New(bin).Run(context.Background(), "in.mp4", testGraph(), outPath, types.DefaultOutputHint())
	require.NoError(t, err)
	require.Equal(t, outPath, meta.Path)
	require.Equal(t, int64(len("fakevideo")), meta.SizeBytes)
}

func TestRun_EngineFailure(t *testing.T) {
	t.Parallel()

	bin := fakeEngine(t, `echo "Invalid filtergraph" 1>&2; exit 3`)
	outPath := filepath.Join(t.TempDir(), "out.mp4")

	_, err := New(bin).Run(context.Background(), "in.mp4", testGraph(), outPath, types.DefaultOutputHint())
	var engineErr *EngineError
	require.ErrorAs(t, err, &engineErr)
	require.Equal(t, 3, engineErr.ExitCode)
	require.Contains(t, engineErr.StderrTail, "Invalid filtergraph")
}

func TestRun_IncompleteOutput(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		script string
	}{
		{name: "no file at all", script: `exit 0`},
		{name: "empty file", script: `for a in "$@"; do out="$a"; done; : > "$out"`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			bin := fakeEngine(t, tc.script)
			outPath := filepath.Join(t.TempDir(), "out.mp4")

			_, err := New(bin).Run(context.Background(), "in.mp4", testGraph(), outPath, types.DefaultOutputHint())
			require.ErrorIs(t, err, ErrIncompleteOutput)
		})
	}
}

func TestRun_Timeout(t *testing.T) {
	t.Parallel()

	bin := fakeEngine(t, `sleep 10`)
	outPath := filepath.Join(t.TempDir(), "out.mp4")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := New(bin).Run(ctx, "in.mp4", testGraph(), outPath, types.DefaultOutputHint())
	require.ErrorIs(t, err, ErrTimeout)
	require.Less(t, time.Since(start), 5*time.Second, "subprocess must be killed, not awaited")
}

func TestTail(t *testing.T) {
	t.Parallel()

	require.Equal(t, "abc", tail([]byte("  abc\n"), 10))
	require.Equal(t, "cdef", tail([]byte("abcdef"), 4))
	require.Equal(t, "", tail(nil, 4))
}
