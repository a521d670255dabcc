package commands

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func historyCmd(flags *globalFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent resize and qrcode calls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			invs, err := a.store.ListInvocations(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(invs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No calls recorded yet.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tKIND\tOUTCOME\tERROR\tIN\tOUT\tDURATION")
			for _, inv := range invs {
				errCol := "-"
				if inv.ErrorKind != "" {
					errCol = inv.ErrorKind
					if inv.ExitCode != 0 {
						errCol += " (" + strconv.Itoa(inv.ExitCode) + ")"
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
					inv.StartedAt.Format("2006-01-02 15:04:05"), inv.Kind, inv.Outcome, errCol,
					inv.InputBytes, inv.OutputBytes, inv.Duration.Round(time.Millisecond))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of calls to show (0 for all)")
	return cmd
}
