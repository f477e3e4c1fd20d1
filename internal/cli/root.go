package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/flowgen/internal/telemetry"
)

// DefaultAPIURL — адрес API, если не задан --api-url и FLOWGEN_API_URL.
const DefaultAPIURL = "http://localhost:8080"

// NewRootCmd собирает корневую команду flowgen.
func NewRootCmd(version string) *cobra.Command {
	var apiURL string
	var jsonOutput bool
	var allowCycles bool
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "flowgen",
		Short:         "flowgen: validate, migrate and run flow documents",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := os.Getenv("FLOWGEN_API_URL")
	if defaultURL == "" {
		defaultURL = DefaultAPIURL
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&allowCycles, "allow-cycles", false, "Skip cycle detection in local commands")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level for local runs (debug, info, warn, error)")

	clientFn := func() *Client { return NewClient(apiURL) }
	outputFn := func() *Output {
		return NewOutputTo(jsonOutput, rootCmd.OutOrStdout(), rootCmd.ErrOrStderr())
	}
	localFn := func() *Local {
		logger := telemetry.SetupLoggerTo(rootCmd.ErrOrStderr(), "text", telemetry.ParseLevel(logLevel))
		return NewLocal(allowCycles, logger)
	}

	rootCmd.AddCommand(NewLocalCmds(localFn, outputFn)...)
	rootCmd.AddCommand(NewEditCmds(localFn, outputFn)...)
	rootCmd.AddCommand(
		NewFlowCmd(clientFn, outputFn),
		NewRunCmd(clientFn, localFn, outputFn),
		NewScheduleCmd(clientFn, outputFn),
	)

	return rootCmd
}
