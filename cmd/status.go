package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/stephenschott/affluence-cli/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Show checkpoint progress for a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "status")
		}
		counts, err := st.PointCounts(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		total := counts[model.PointStatusPending] + counts[model.PointStatusComplete] + counts[model.PointStatusDropped]

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "Run:\t%s\n", run.ID)
		_, _ = fmt.Fprintf(w, "Status:\t%s\n", run.Status)
		_, _ = fmt.Fprintf(w, "Points:\t%d\n", total)
		_, _ = fmt.Fprintf(w, "  Complete:\t%d\n", counts[model.PointStatusComplete])
		_, _ = fmt.Fprintf(w, "  Pending:\t%d\n", counts[model.PointStatusPending])
		_, _ = fmt.Fprintf(w, "  Dropped:\t%d\n", counts[model.PointStatusDropped])
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
