package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"pkt.systems/pslog"
	"pkt.systems/tellerd"
	"pkt.systems/tellerd/banking/bankmock"
	"pkt.systems/tellerd/internal/svcfields"
)

const (
	listenKey               = "listen"
	mcpPathKey              = "mcp-path"
	metricsListenKey        = "metrics-listen"
	pprofListenKey          = "pprof-listen"
	enableRuntimeMetricsKey = "enable-runtime-metrics"
	fixturesKey             = "fixtures"
	watchFixturesKey        = "watch-fixtures"
	cardClaimsSecretKey     = "card-claims-secret"
	txnTTLKey               = "txn-ttl"
	logLevelKey             = "log-level"
)

func submain(ctx context.Context) int {
	baseLogger := pslog.LoggerFromEnv(
		pslog.WithEnvPrefix("TELLERD_LOG_"),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeStructured, MinLevel: pslog.InfoLevel}),
		pslog.WithEnvWriter(os.Stderr),
	).With("app", "tellerd")

	cmd := newRootCommand(baseLogger)
	ctx = withSignalCancel(ctx)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if err != context.Canceled {
			svcfields.WithSubsystem(baseLogger, "cli.root").Error("command failed", "error", err)
		}
		return 1
	}
	return 0
}

func newRootCommand(baseLogger pslog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tellerd",
		Short:         "tellerd serves capability-gated banking tools over streamable MCP",
		SilenceErrors: true,
		Example: `
  # Serve on the default listen address with the embedded demo fixtures
  tellerd

  # Custom fixtures with hot reload and a metrics endpoint
  tellerd --fixtures ./fixtures.yaml --watch-fixtures --metrics-listen 127.0.0.1:9090

  # Card tool bearer tokens verified against a shared secret
  TELLERD_CARD_CLAIMS_SECRET=s3cret tellerd
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			logger := baseLogger
			if level, ok := pslog.ParseLevel(strings.TrimSpace(viper.GetString(logLevelKey))); ok {
				logger = logger.LogLevel(level)
			}
			cliLogger := svcfields.WithSubsystem(logger, "cli.root")

			cfg := configFromViper()
			backend, err := bankmock.New()
			if err != nil {
				return err
			}
			defer backend.Close()
			if cfg.FixturesPath != "" {
				if err := backend.Load(cfg.FixturesPath); err != nil {
					return err
				}
				cliLogger.Info("loaded fixtures", "path", cfg.FixturesPath)
				if cfg.WatchFixtures {
					if err := backend.Watch(cfg.FixturesPath, svcfields.WithSubsystem(logger, "bankmock.watch")); err != nil {
						return err
					}
				}
			}

			server, err := tellerd.NewServer(tellerd.NewServerRequest{
				Config:  cfg,
				Logger:  logger,
				Backend: backend,
			})
			if err != nil {
				return err
			}
			return server.Run(cmd.Context())
		},
	}

	flags := cmd.Flags()
	flags.StringP("listen", "l", "127.0.0.1:8471", "HTTP listen address")
	flags.String("mcp-path", "/mcp", "HTTP path of the streamable MCP endpoint")
	flags.String("metrics-listen", "", "metrics listen address (Prometheus scrape endpoint; empty disables)")
	flags.String("pprof-listen", "", "pprof listen address (debug/pprof endpoints; empty disables)")
	flags.Bool("enable-runtime-metrics", false, "enable Go runtime metrics on the Prometheus endpoint")
	flags.String("fixtures", "", "path to a bankmock fixtures YAML file (defaults to the embedded demo set)")
	flags.Bool("watch-fixtures", false, "hot-reload the fixtures file on change")
	flags.String("card-claims-secret", "", "HS256 secret verifying the card tools' bearer tokens")
	flags.Duration("txn-ttl", 5*time.Minute, "how long a staged transaction stays confirmable")
	flags.String("log-level", "", "log level (trace, debug, info, warn, error)")

	mustBindFlag(listenKey, "TELLERD_LISTEN", flags.Lookup("listen"))
	mustBindFlag(mcpPathKey, "TELLERD_MCP_PATH", flags.Lookup("mcp-path"))
	mustBindFlag(metricsListenKey, "TELLERD_METRICS_LISTEN", flags.Lookup("metrics-listen"))
	mustBindFlag(pprofListenKey, "TELLERD_PPROF_LISTEN", flags.Lookup("pprof-listen"))
	mustBindFlag(enableRuntimeMetricsKey, "TELLERD_ENABLE_RUNTIME_METRICS", flags.Lookup("enable-runtime-metrics"))
	mustBindFlag(fixturesKey, "TELLERD_FIXTURES", flags.Lookup("fixtures"))
	mustBindFlag(watchFixturesKey, "TELLERD_WATCH_FIXTURES", flags.Lookup("watch-fixtures"))
	mustBindFlag(cardClaimsSecretKey, "TELLERD_CARD_CLAIMS_SECRET", flags.Lookup("card-claims-secret"))
	mustBindFlag(txnTTLKey, "TELLERD_TXN_TTL", flags.Lookup("txn-ttl"))
	mustBindFlag(logLevelKey, "TELLERD_LOG_LEVEL", flags.Lookup("log-level"))

	cmd.AddCommand(
		newToolsListCommand(),
		newVersionCommand(),
	)
	return cmd
}

func configFromViper() tellerd.Config {
	return tellerd.Config{
		Listen:               viper.GetString(listenKey),
		MCPPath:              viper.GetString(mcpPathKey),
		MetricsListen:        viper.GetString(metricsListenKey),
		PprofListen:          viper.GetString(pprofListenKey),
		EnableRuntimeMetrics: viper.GetBool(enableRuntimeMetricsKey),
		FixturesPath:         strings.TrimSpace(viper.GetString(fixturesKey)),
		WatchFixtures:        viper.GetBool(watchFixturesKey),
		CardClaimsSecret:     viper.GetString(cardClaimsSecretKey),
		TransactionTTL:       viper.GetDuration(txnTTLKey),
	}
}

func mustBindFlag(key, env string, flag *pflag.Flag) {
	if flag == nil {
		panic(fmt.Sprintf("flag for key %s not found", key))
	}
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(err)
	}
	if env != "" {
		if err := viper.BindEnv(key, env); err != nil {
			panic(err)
		}
	}
}

func withSignalCancel(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(signals)
	}()
	return ctx
}
