package main

import (
	"github.com/spf13/cobra"

	"github.com/banshee-data/heartstream/internal/config"
	"github.com/banshee-data/heartstream/internal/version"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "heartstream",
		Short: "ECG telemetry streamer",
		Long: "heartstream samples an ECG front end (or a synthetic heartbeat) and streams it to a host " +
			"as 28-byte binary packets or simple text messages, driven by commands the host sends.",
		Version: version.String(),
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "device config JSON file (built-in defaults when empty)")

	root.AddCommand(
		newServeCmd(),
		newWaveformCmd(),
		newMonitorCmd(),
		newPortsCmd(),
	)
	return root
}

// loadConfig reads the --config file, or returns an empty config that
// resolves to the built-in defaults.
func loadConfig(cmd *cobra.Command) (*config.DeviceConfig, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if path == "" {
		return config.EmptyDeviceConfig(), nil
	}
	return config.LoadDeviceConfig(path)
}
