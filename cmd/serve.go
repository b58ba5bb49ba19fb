package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"authgate/internal/broker"
	"authgate/internal/config"
	"authgate/internal/ipc"
	"authgate/pkg/logging"
)

// serveConfigPath points at the YAML configuration file. When empty the
// built-in defaults apply and the caller initializes the broker over IPC.
var serveConfigPath string

// serveSocketPath overrides the socket location from the configuration.
var serveSocketPath string

// serveDebug enables verbose logging across the application.
var serveDebug bool

// serveCmd defines the serve command structure.
// This is the main command of authgate: it starts the broker and exposes
// it on the local channel until the process is terminated.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the authentication broker and listen on the local channel",
	Long: `Starts the authentication broker and listens for caller requests on a
unix socket. The broker resolves the authority's OpenID Connect metadata,
runs interactive browser logins, refreshes tokens silently, and keeps the
refresh token in the operating system credential store.

Callers talk to the broker with newline-delimited JSON requests on the
socket, one request per line, matched to responses by correlation id.

Configuration:
  authgate reads a YAML file named by --config. Without one, built-in
  defaults apply and the client registration must arrive over the
  auth-init route before any login can run.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// runServe is the main entry point for the serve command.
func runServe(cmd *cobra.Command, args []string) error {
	cfg := &config.Config{}
	if serveConfigPath != "" {
		loaded, err := config.Load(serveConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg.ApplyDefaults()

	if serveSocketPath != "" {
		cfg.IPC.Socket = serveSocketPath
	}
	if serveDebug {
		cfg.LogLevel = "debug"
	}
	logging.Init(logging.ParseLevel(cfg.LogLevel), os.Stderr)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := broker.New(broker.Options{})
	if cfg.Auth.ClientID != "" {
		if err := b.Init(ctx, cfg.Auth); err != nil {
			return fmt.Errorf("failed to initialize broker: %w", err)
		}
	}

	dispatcher := ipc.NewDispatcher(cfg.IPC.RequestTimeout)
	ipc.RegisterBrokerRoutes(dispatcher, b)

	server := ipc.NewServer(cfg.IPC.Socket, dispatcher)
	if err := server.Start(ctx); err != nil {
		return err
	}
	defer server.Stop()

	<-ctx.Done()
	logging.Info("IPC", "Shutting down")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to the YAML configuration file")
	serveCmd.Flags().StringVar(&serveSocketPath, "socket", "", "Unix socket path for the local channel (overrides configuration)")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable general debug logging")
}
