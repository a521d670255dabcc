package commands

import (
	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath string
	logLevel   string
}

// Root returns the root cobra command with all subcommands attached.
func Root() *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:          "qrimzn",
		Short:        "Resize images and render QR codes with the qrimzn binary",
		Long:         "qrimzn installs the prebuilt qrimzn release for this platform and runs it to resize images and generate QR codes.",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Config file (default: $QRIMZN_CONFIG or the user config dir)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override log.level from the config file")

	cmd.AddCommand(initCmd(&flags))
	cmd.AddCommand(installCmd(&flags))
	cmd.AddCommand(resizeCmd(&flags))
	cmd.AddCommand(qrcodeCmd(&flags))
	cmd.AddCommand(statusCmd(&flags))
	cmd.AddCommand(historyCmd(&flags))
	cmd.AddCommand(versionCmd())

	return cmd
}
