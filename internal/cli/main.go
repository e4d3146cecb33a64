package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := &cobra.Command{
		Use:          "clutch",
		Short:        "Export shots of a source video as concatenated or separate clips",
		SilenceUsage: true,
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	pf := root.PersistentFlags()
	pf.String("exports", getenvDefault("CLUTCH_EXPORT_DIR", "exports"), "Artifact directory")
	pf.String("cache", getenvDefault("CLUTCH_CACHE_DIR", ".cache"), "Cache directory for downloaded sources")
	pf.String("ffmpeg", getenvDefault("CLUTCH_FFMPEG", "ffmpeg"), "ffmpeg binary path")
	pf.String("log-level", getenvDefault("CLUTCH_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	pf.Int("workers", 4, "Concurrent per-shot transcodes for split exports")
	pf.Duration("shot-timeout", 0, "Per-transcode timeout (0 disables)")

	root.AddCommand(
		newExportCommand(),
		newSplitCommand(),
		newListCommand(),
		newGetCommand(),
		newCleanupCommand(),
		newServeCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cmd *cobra.Command) zerolog.Logger {
	levelName, _ := cmd.Flags().GetString("log-level")
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
