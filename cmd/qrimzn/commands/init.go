package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/outranker/qrimzn-bridge/internal/config"
	"github.com/outranker/qrimzn-bridge/internal/platform"
	"github.com/outranker/qrimzn-bridge/internal/state"
)

func initCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "First-time setup: write a config template and create directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()

			// 1. Write template config if missing
			configPath := flags.configPath
			if configPath == "" {
				configPath = config.DefaultPath()
			}
			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
					return fmt.Errorf("creating config directory: %w", err)
				}
				if err := os.WriteFile(configPath, []byte(config.TemplateConfig()), 0600); err != nil {
					return fmt.Errorf("writing config template: %w", err)
				}
				fmt.Fprintf(w, "  wrote config template to %s\n", configPath)
			} else {
				fmt.Fprintf(w, "  config %s already exists\n", configPath)
			}

			// 2. Load it back
			cfg, err := config.LoadFrom(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			// 3. Create directories
			for _, d := range []string{cfg.Install.Root, cfg.BinDir(), filepath.Dir(cfg.State.Path)} {
				if err := os.MkdirAll(d, 0755); err != nil {
					return fmt.Errorf("creating directory %s: %w", d, err)
				}
				fmt.Fprintf(w, "  directory %s\n", d)
			}

			// 4. Initialize state database
			store, err := state.Open(cfg.State.Path)
			if err != nil {
				return fmt.Errorf("initializing state database: %w", err)
			}
			store.Close()
			fmt.Fprintf(w, "  state database: OK\n")

			// 5. Report the platform
			info, err := platform.Detect(cmd.Context())
			if err != nil {
				fmt.Fprintf(w, "  platform: %v\n", err)
			} else {
				fmt.Fprintf(w, "  platform: %s\n", info.Describe())
			}

			fmt.Fprintf(w, "\nRun 'qrimzn install' to download the binary.\n")
			return nil
		},
	}
}
