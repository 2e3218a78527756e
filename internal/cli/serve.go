package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/opencode-ai/pbd/internal/logging"
	"github.com/opencode-ai/pbd/internal/pbdd"
	"github.com/spf13/cobra"
)

var (
	serveGRPCPort int
	serveHTTPPort int
	serveDBPath   string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&serveGRPCPort, "port", 0, "gRPC port (default from config)")
	serveCmd.Flags().IntVar(&serveHTTPPort, "http-port", 0, "HTTP port (default from config)")
	serveCmd.Flags().StringVar(&serveDBPath, "db", "", "event log database path (default from config)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pbdd daemon",
	Long: `Run the interaction daemon against the configured robot.

The daemon serves the gRPC API, a websocket command endpoint for speech
recognizers, health and Prometheus metrics, and records every command outcome
to the event log.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *configOrDefault()
		if serveGRPCPort > 0 {
			cfg.Daemon.GRPCPort = serveGRPCPort
		}
		if serveHTTPPort > 0 {
			cfg.Daemon.HTTPPort = serveHTTPPort
		}
		if serveDBPath != "" {
			cfg.Database.Path = serveDBPath
		}

		daemon, err := pbdd.New(&cfg, logging.Component("pbdd"), pbdd.Options{Version: version})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if !IsJSONOutput() && !IsJSONLOutput() {
			fmt.Fprintf(os.Stderr, "pbdd %s listening on %s (grpc) and %s (http)\n",
				version, cfg.Daemon.GRPCAddr(), cfg.Daemon.HTTPAddr())
		}
		return daemon.Run(ctx)
	},
}
