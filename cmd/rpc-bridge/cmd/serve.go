package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	inboundhttp "github.com/rpcbridge/rpcbridge/internal/adapter/inbound/http"
	"github.com/rpcbridge/rpcbridge/internal/adapter/outbound/upstream"
	"github.com/rpcbridge/rpcbridge/internal/bridge"
	"github.com/rpcbridge/rpcbridge/internal/config"
	"github.com/rpcbridge/rpcbridge/internal/lookup"
	"github.com/rpcbridge/rpcbridge/internal/port/outbound"
)

var serveCmd = &cobra.Command{
	Use:   "serve [-- command [args...]]",
	Short: "Start the bridge server",
	Long: `Start the rpc-bridge HTTP server.

The bridge forwards JSON-RPC messages to one upstream, configured in one
of two mutually exclusive modes:

1. HTTP mode: POST messages to a remote JSON-RPC server
   Configure upstream.http in your config file.

2. Stdio mode: spawn a JSON-RPC server as a subprocess and speak
   newline-delimited JSON over its stdin/stdout
   Configure upstream.command in your config file, or pass command after --.

Examples:
  # Start with config file settings
  rpc-bridge serve

  # Start with a specific subprocess upstream
  rpc-bridge serve -- npx @modelcontextprotocol/server-filesystem /tmp

  # Start with a specific config file
  rpc-bridge --config /path/to/config.yaml serve`,
	RunE: runServe,
}

var (
	devMode     bool
	credentials []string
)

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (debug logging)")
	serveCmd.Flags().StringArrayVar(&credentials, "credential", nil,
		"credential as name=value, consulted before the environment (repeatable)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration (without validation, so CLI flags can override first)
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if devMode {
		cfg.DevMode = true
	}

	// Override upstream command from args if provided
	if len(args) > 0 {
		cfg.Upstream.Command = args[0]
		if len(args) > 1 {
			cfg.Upstream.Args = args[1:]
		} else {
			cfg.Upstream.Args = nil
		}
		// "--" supersedes a configured HTTP upstream so the two modes
		// never compete.
		cfg.Upstream.HTTP = ""
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if !cfg.HasUpstream() {
		return fmt.Errorf("no upstream configured: set upstream.http or upstream.command, or pass a command after --")
	}

	// Create signal context for graceful shutdown.
	// stop() restores default signal handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	// Logger goes to stderr; stdout stays clean for tooling that wraps the binary.
	logLevel := parseLogLevel(cfg.Server.LogLevel)
	if cfg.DevMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	logger.Debug("log level configured", "level", cfg.Server.LogLevel, "effective", logLevel.String())

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	return run(ctx, cfg, logger)
}

// run wires the bridge transport, the upstream handler, and the HTTP server
// together and blocks until the context is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if err := lookup.LoadDotEnv(); err != nil {
		logger.Warn("failed to load .env file", "error", err)
	}

	transport := bridge.NewTransport(
		bridge.WithCallTimeout(cfg.CallTimeout()),
		bridge.WithLogger(logger),
	)

	handler, err := buildUpstreamHandler(cfg, transport, logger)
	if err != nil {
		return err
	}

	transport.OnMessage(handler.Handle)
	transport.OnError(func(err error) {
		logger.Error("bridge error", "error", err)
	})

	if err := handler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start upstream handler: %w", err)
	}
	defer func() { _ = handler.Close() }()

	if err := transport.Start(ctx); err != nil {
		return fmt.Errorf("failed to start bridge transport: %w", err)
	}

	server := inboundhttp.NewServer(transport,
		inboundhttp.WithAddr(cfg.Server.HTTPAddr),
		inboundhttp.WithPath(cfg.Server.Path),
		inboundhttp.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		inboundhttp.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		inboundhttp.WithLogger(logger),
		inboundhttp.WithHealthChecker(inboundhttp.NewHealthChecker(transport, Version)),
	)

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("rpc-bridge stopped")
	return nil
}

// buildUpstreamHandler creates the message handler for the configured
// upstream mode. transport.Send routes upstream responses back into the
// pending batch registry.
func buildUpstreamHandler(cfg *config.Config, transport *bridge.Transport, logger *slog.Logger) (outbound.MessageHandler, error) {
	if cfg.Upstream.Command != "" {
		logger.Info("upstream mode: stdio",
			"command", cfg.Upstream.Command,
			"args", strings.Join(cfg.Upstream.Args, " "),
		)
		return upstream.NewStdioHandler(cfg.Upstream.Command, cfg.Upstream.Args, transport.Send, logger), nil
	}

	opts := []upstream.HTTPOption{
		upstream.WithTimeout(cfg.UpstreamHTTPTimeout()),
	}
	if cfg.Upstream.AuthTokenName != "" {
		chain := lookup.NewChain(
			lookup.NewArgs(credentials),
			lookup.NewEnv(os.Getenv),
		)
		token := chain.Lookup(cfg.Upstream.AuthTokenName)
		if token == "" {
			return nil, fmt.Errorf("credential %q not found in arguments or environment", cfg.Upstream.AuthTokenName)
		}
		opts = append(opts, upstream.WithBearerToken(token))
	}

	logger.Info("upstream mode: http", "endpoint", cfg.Upstream.HTTP)
	return upstream.NewHTTPHandler(cfg.Upstream.HTTP, transport.Send, logger, opts...), nil
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
