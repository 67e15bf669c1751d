package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCmd(e *env) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently hosted games",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := openLibrary(cmd.Context(), e.cfg, e.log)
			if err != nil {
				return err
			}
			defer lib.Close()
			records, err := lib.history.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no games recorded")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FINISHED\tCODE\tQUIZ\tOUTCOME\tWINNER")
			for _, rec := range records {
				winner := "-"
				if len(rec.Podium) > 0 {
					winner = fmt.Sprintf("%s (%d)", rec.Podium[0].Nickname, rec.Podium[0].Score)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					rec.FinishedAt.Local().Format(time.DateTime), rec.GameCode, rec.QuizTitle, rec.Outcome, winner)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of games to show")
	return cmd
}
