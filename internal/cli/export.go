package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/diwenne/clutch-shot-searcher/internal/pipeline"
	"github.com/diwenne/clutch-shot-searcher/internal/types"
)

func newExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <source>",
		Short: "Export all shots concatenated into one clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shotsPath, _ := cmd.Flags().GetString("shots")
			outName, _ := cmd.Flags().GetString("out")

			raw, err := readShots(shotsPath)
			if err != nil {
				return err
			}

			p, err := buildPipeline(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			res, err := p.ExportConcatenated(cmd.Context(), args[0], raw, outName)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d shots to %s (%d bytes)\n",
				res.ShotCount, res.Artifact.Filename, res.Artifact.SizeBytes)
			return nil
		},
	}
	cmd.Flags().String("shots", "", "Path to a JSON file with the shot list")
	cmd.Flags().String("out", "export.mp4", "Output artifact filename")
	_ = cmd.MarkFlagRequired("shots")
	return cmd
}

func newSplitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split <source>",
		Short: "Export every shot as its own clip (shot_<index>.mp4)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shotsPath, _ := cmd.Flags().GetString("shots")

			raw, err := readShots(shotsPath)
			if err != nil {
				return err
			}

			p, err := buildPipeline(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			res, err := p.ExportSeparate(cmd.Context(), args[0], raw)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, a := range res.Artifacts {
				fmt.Fprintf(out, "shot %d -> %s (%d bytes)\n", a.ShotIndex, a.Artifact.Filename, a.Artifact.SizeBytes)
			}
			for _, f := range res.Failures {
				fmt.Fprintf(out, "shot %d FAILED: %s\n", f.ShotIndex, f.Reason)
			}
			if res.Partial() {
				return fmt.Errorf("partial export: %d succeeded, %d failed", len(res.Artifacts), len(res.Failures))
			}
			return nil
		},
	}
	cmd.Flags().String("shots", "", "Path to a JSON file with the shot list")
	_ = cmd.MarkFlagRequired("shots")
	return cmd
}

func readShots(path string) ([]types.RawShot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read shots: %w", err)
	}
	var raw []types.RawShot
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse shots: %w", err)
	}
	return raw, nil
}

func buildPipeline(cmd *cobra.Command) (*pipeline.Pipeline, error) {
	flags := cmd.Flags()
	exportDir, _ := flags.GetString("exports")
	cacheDir, _ := flags.GetString("cache")
	ffmpegPath, _ := flags.GetString("ffmpeg")
	workers, _ := flags.GetInt("workers")
	shotTimeout, _ := flags.GetDuration("shot-timeout")

	return pipeline.New(pipeline.Config{
		ExportDir:   exportDir,
		CacheDir:    cacheDir,
		FFmpegPath:  ffmpegPath,
		Workers:     workers,
		ShotTimeout: shotTimeout,
		Logger:      newLogger(cmd),
	})
}
