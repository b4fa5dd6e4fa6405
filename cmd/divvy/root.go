package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/celliott/divvy/internal/app"
)

// exitError carries the process exit code an operation should produce:
// 0 normal, 1 config error, 2 bind failure, 3 backend init failure.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if ee, ok := err.(*exitError); ok {
		return ee.code
	}
	return 1
}

var flags struct {
	listenAddr   string
	configPath   string
	backendAddr  string
	maxLineBytes int
	maxConns     int
	drainTimeout string
	failPolicy   string
	logLevel     string
}

// rootCmd is divvy's entry point; running it with no subcommand behaves
// like "divvy serve".
var rootCmd = &cobra.Command{
	Use:           "divvy",
	Short:         "divvy is a network-accessible rate-limit decision service",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	def := app.DefaultConfig()
	rootCmd.PersistentFlags().StringVar(&flags.listenAddr, "listen", def.ListenAddr, "TCP listen address")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", def.ConfigPath, "path to the INI rule file")
	rootCmd.PersistentFlags().StringVar(&flags.backendAddr, "backend", "", "comma-separated Redis address(es); empty selects the in-memory backend")
	rootCmd.PersistentFlags().IntVar(&flags.maxLineBytes, "max-line-bytes", def.MaxLineBytes, "maximum request line size in bytes")
	rootCmd.PersistentFlags().IntVar(&flags.maxConns, "max-conns", def.MaxConns, "maximum concurrent connections (0 = unbounded)")
	rootCmd.PersistentFlags().StringVar(&flags.drainTimeout, "drain-timeout", def.DrainTimeout.String(), "grace period on shutdown")
	rootCmd.PersistentFlags().StringVar(&flags.failPolicy, "fail-policy", def.FailPolicy, `backend-failure policy: "open" or "closed"`)
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", def.LogLevel, "debug, info, or error")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkConfigCmd)
}

// Execute runs the divvy CLI.
func Execute() error {
	return rootCmd.Execute()
}

// buildConfig assembles an *app.Config from CLI flags overlaid with
// DIVVY_* environment variables.
func buildConfig() (*app.Config, error) {
	cfg := app.DefaultConfig()
	cfg.ListenAddr = flags.listenAddr
	cfg.ConfigPath = flags.configPath
	cfg.MaxLineBytes = flags.maxLineBytes
	cfg.MaxConns = flags.maxConns
	cfg.FailPolicy = flags.failPolicy
	cfg.LogLevel = flags.logLevel
	if flags.backendAddr != "" {
		cfg.BackendAddrs = splitCSV(flags.backendAddr)
	}
	if flags.drainTimeout != "" {
		d, err := parseDrainTimeout(flags.drainTimeout)
		if err != nil {
			return nil, &exitError{code: 1, err: err}
		}
		cfg.DrainTimeout = d
	}

	if err := app.ApplyEnvOverrides(cfg, os.Environ()); err != nil {
		return nil, &exitError{code: 1, err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &exitError{code: 1, err: err}
	}
	return cfg, nil
}
