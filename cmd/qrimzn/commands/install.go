package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/outranker/qrimzn-bridge/internal/installer"
)

func installCmd(flags *globalFlags) *cobra.Command {
	var req installer.Request

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Download and install the qrimzn binary for this platform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			inst, err := a.installer()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			req.Step = func(msg string) { fmt.Fprintf(w, "  %s\n", msg) }

			result, err := inst.Install(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("install failed: %w", err)
			}
			if result.Skipped {
				fmt.Fprintln(w, "Nothing to do; use --force to reinstall.")
				return nil
			}

			fmt.Fprintf(w, "✓ qrimzn %s installed\n", result.Version)
			fmt.Fprintf(w, "  Platform: %s\n", result.Target)
			fmt.Fprintf(w, "  Binary:   %s\n", result.BinaryPath)
			fmt.Fprintf(w, "  SHA256:   %s\n", result.SHA256)
			if result.Verified {
				fmt.Fprintf(w, "  Checksum: verified\n")
			} else {
				fmt.Fprintf(w, "  Checksum: not verified\n")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Version, "version", "", "Release version or \"latest\" (default: install.version from config)")
	cmd.Flags().StringVar(&req.OS, "os", "", "Target operating system (default: this host)")
	cmd.Flags().StringVar(&req.Arch, "arch", "", "Target architecture (default: this host)")
	cmd.Flags().BoolVar(&req.Force, "force", false, "Reinstall even if the binary is present")
	cmd.Flags().BoolVar(&req.NoVerify, "no-verify", false, "Skip checksum verification")

	return cmd
}
