package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/diwenne/clutch-shot-searcher/internal/types"
)

// stderr is kept only as a bounded tail; ffmpeg is chatty and a runaway
// job can emit megabytes of progress lines.
const stderrTailLimit = 4096

// ErrIncompleteOutput means the engine exited zero but the declared output
// file is missing or empty. Treated as failure, never as success.
var ErrIncompleteOutput = errors.New("engine reported success but produced no output")

// ErrTimeout means the subprocess exceeded the caller's deadline and was
// killed.
var ErrTimeout = errors.New("transcode timed out")

// EngineError is a nonzero exit from the engine process.
type EngineError struct {
	ExitCode   int
	StderrTail string
}

func (e *EngineError) Error() string {
	if e.StderrTail == "" {
		return fmt.Sprintf("ffmpeg exited with code %d", e.ExitCode)
	}
	return fmt.Sprintf("ffmpeg exited with code %d: %s", e.ExitCode, e.StderrTail)
}

type Adapter struct {
	bin string
}

func New(ffmpegPath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Adapter{bin: ffmpegPath}
}

// Run executes one isolated engine process for the graph and blocks until
// it exits. An existing file at outPath is unconditionally replaced. No
// retries here; that is the caller's call to make.
func (a *Adapter) Run(ctx context.Context, sourcePath string, graph types.FilterGraph, outPath string, hint types.OutputHint) (types.FileMeta, error) {
	args := buildArgs(sourcePath, graph, outPath, hint)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, a.bin, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return types.FileMeta{}, fmt.Errorf("%w: %s", ErrTimeout, sourcePath)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return types.FileMeta{}, &EngineError{
				ExitCode:   exitErr.ExitCode(),
				StderrTail: tail(stderr.Bytes(), stderrTailLimit),
			}
		}
		return types.FileMeta{}, fmt.Errorf("run %s: %w", a.bin, err)
	}

	st, err := os.Stat(outPath)
	if err != nil || st.Size() == 0 {
		return types.FileMeta{}, fmt.Errorf("%w: %s", ErrIncompleteOutput, outPath)
	}
	return types.FileMeta{Path: outPath, SizeBytes: st.Size()}, nil
}

func buildArgs(sourcePath string, graph types.FilterGraph, outPath string, hint types.OutputHint) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-i", sourcePath,
		"-filter_complex", graph.Expr(),
		"-map", "[" + graph.VideoOut + "]",
		"-map", "[" + graph.AudioOut + "]",
		"-c:v", hint.VideoCodec,
		"-preset", hint.Preset,
		"-crf", strconv.Itoa(hint.CRF),
		"-c:a", hint.AudioCodec,
		"-y",
		outPath,
	}
}

func tail(b []byte, limit int) string {
	b = bytes.TrimSpace(b)
	if len(b) > limit {
		b = b[len(b)-limit:]
	}
	return string(b)
}
