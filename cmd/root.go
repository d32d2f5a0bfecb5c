package cmd

import (
	"github.com/spf13/cobra"

	"github.com/BlissRoms-x86/drmfb-composer/internal/config"
	"github.com/BlissRoms-x86/drmfb-composer/internal/logger"
)

var (
	// Version is set during build
	Version = "0.1.0-dev"

	configPath string

	rootCmd = &cobra.Command{
		Use:   "drmfb-composer",
		Short: "drmfb-composer - DRM display device manager",
		Long: `drmfb-composer manages the display outputs of a DRM/KMS device:
it discovers connectors, brokers the card's CRTCs between them, reacts to
hotplug events and reports outputs to the display-composition service.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				config.SetConfigPath(configPath)
			}
			if err := config.Init(); err != nil {
				return err
			}
			if level := config.Get().Logging.LogLevel; level != "" {
				logger.SetLevel(level)
			}
			return nil
		},
	}
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(outputsCmd)
	rootCmd.AddCommand(statusCmd)
}
