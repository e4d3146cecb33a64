package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/diwenne/clutch-shot-searcher/internal/store"
)

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List exported artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			arts, err := st.Artifacts(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, a := range arts {
				fmt.Fprintf(out, "%s\t%d\t%s\n", a.Filename, a.SizeBytes, a.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <filename>",
		Short: "Copy an exported artifact to a local path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outPath, _ := cmd.Flags().GetString("out")
			if outPath == "" {
				outPath = args[0]
			}

			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			b, err := st.Get(args[0])
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, b, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", outPath, len(b))
			return nil
		},
	}
	cmd.Flags().String("out", "", "Destination path (defaults to the artifact name)")
	return cmd
}

func newCleanupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete artifacts older than the age threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			hours, _ := cmd.Flags().GetFloat64("max-age-hours")
			if hours < 0 {
				return fmt.Errorf("max-age-hours must be >= 0")
			}

			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := st.Cleanup(cmd.Context(), time.Duration(hours*float64(time.Hour)))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d, remaining %d\n", stats.Deleted, stats.Remaining)
			return nil
		},
	}
	cmd.Flags().Float64("max-age-hours", 24, "Delete artifacts older than this many hours")
	return cmd
}

func openStore(cmd *cobra.Command) (*store.Store, error) {
	exportDir, _ := cmd.Flags().GetString("exports")
	return store.Open(exportDir, newLogger(cmd))
}
