package commands

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/outranker/qrimzn-bridge/internal/platform"
	"github.com/outranker/qrimzn-bridge/internal/state"
)

func statusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the installed binary, last install and call counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			inst, err := a.installer()
			if err != nil {
				return err
			}
			binPath := inst.BinaryPath(runtime.GOOS)
			installed := "missing"
			if inst.IsInstalled() {
				installed = "present"
			}
			fmt.Fprintf(w, "Binary:      %s (%s)\n", binPath, installed)

			if info, err := platform.Detect(ctx); err == nil {
				fmt.Fprintf(w, "Platform:    %s\n", info.Describe())
			} else {
				fmt.Fprintf(w, "Platform:    %v\n", err)
			}

			last, err := a.store.LatestInstall(ctx)
			switch {
			case errors.Is(err, state.ErrNotFound):
				fmt.Fprintf(w, "Installed:   never\n")
			case err != nil:
				return err
			default:
				verified := "unverified"
				if last.Verified {
					verified = "verified"
				}
				fmt.Fprintf(w, "Version:     %s (%s/%s, %s)\n", last.Version, last.OS, last.Arch, verified)
				fmt.Fprintf(w, "Installed:   %s\n", last.InstalledAt.Format("2006-01-02 15:04:05"))
			}

			stats, err := a.store.InvocationStats(ctx)
			if err != nil {
				return err
			}
			for _, s := range stats {
				fmt.Fprintf(w, "Calls:       %s %d ok, %d failed\n", s.Kind, s.Resolved, s.Rejected)
			}
			return nil
		},
	}
}
