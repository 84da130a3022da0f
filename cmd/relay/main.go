package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	agentrun "github.com/rzbill/relay/internal/cmd/agent"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "relay",
		Short: "Relay log-forwarding agent",
		Long:  "Relay buffers events in memory, spools them durably when the network misbehaves, and forwards them at a bounded rate.",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the relay agent",
		Long:  "Run reads newline-delimited events from stdin (or generates synthetic ones with --simulate) and forwards them through the configured transport.",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			simulate, _ := cmd.Flags().GetBool("simulate")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := agentrun.Run(ctx, agentrun.Options{
				ConfigPath: configPath,
				Simulate:   simulate,
				LogLevel:   logLevel,
				LogFormat:  logFormat,
			}); err != nil {
				return fmt.Errorf("relay: %w", err)
			}
			return nil
		},
	}
	runCmd.Flags().String("config", os.Getenv("RELAY_CONFIG"), "Config file path (YAML); RELAY_* env vars override individual keys")
	runCmd.Flags().Bool("simulate", false, "Generate synthetic events instead of reading stdin")
	runCmd.Flags().String("log-level", "", "Override logging.level: debug|info|warn|error")
	runCmd.Flags().String("log-format", "", "Override logging.format: text|json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
