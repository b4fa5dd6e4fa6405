package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/celliott/divvy/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the divvy server (default command)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	application, err := app.New(cfg)
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := application.Start(ctx); err != nil {
		if strings.Contains(err.Error(), "bind") {
			return &exitError{code: 2, err: err}
		}
		return &exitError{code: 3, err: err}
	}

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.DrainTimeout+time.Second)
	defer shutdownCancel()
	return application.Shutdown(shutdownCtx)
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDrainTimeout(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}
