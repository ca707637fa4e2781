package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/starwatch/internal/config"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "starwatch",
		Short: "Watch GitHub stargazers and notify subscribers of changes",
		Long: `starwatch keeps a snapshot of every subscribed repository's stargazers,
reconciles it against GitHub on a schedule and tells subscribers who
starred or unstarred since the last run.

Without a subcommand it runs in the mode named by STARWATCH_RUN_MODE
(api, worker or all).`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			return runMode(cmd.Context(), cfg, cfg.RunMode)
		},
	}

	root.AddCommand(
		newServeCmd("api", "Run the HTTP API only"),
		newServeCmd("worker", "Run the task worker and scheduler only"),
		newServeCmd("all", "Run the HTTP API, task worker and scheduler"),
		newReconcileCmd(),
		newTokenCmd(),
		newHashPasswordCmd(),
		newVersionCmd(),
	)
	return root
}

func newServeCmd(mode, short string) *cobra.Command {
	return &cobra.Command{
		Use:   mode,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			return runMode(cmd.Context(), cfg, mode)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	}
}

func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Server.Version == "" {
		cfg.Server.Version = version
	}
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			log.Println("Shutdown signal received, stopping...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
