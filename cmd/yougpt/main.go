package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/yougpt/ai"
	"github.com/hrygo/yougpt/ai/metrics"
	"github.com/hrygo/yougpt/chat"
	"github.com/hrygo/yougpt/internal/logging"
	"github.com/hrygo/yougpt/internal/profile"
	"github.com/hrygo/yougpt/internal/version"
	"github.com/hrygo/yougpt/plugin/webhook"
	"github.com/hrygo/yougpt/server"
	"github.com/hrygo/yougpt/store"
)

var (
	rootCmd = &cobra.Command{
		Use:   "yougpt",
		Short: `A chat backend that simulates conversations with a compact language model.`,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			// Try to load .env file from current directory (ignore error if file doesn't exist)
			_ = godotenv.Load()
			return nil
		},
		Run: func(_ *cobra.Command, _ []string) {
			rt, err := newRuntime()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}

			ctx, cancel := context.WithCancel(context.Background())
			s, err := server.NewServer(ctx, rt.profile, rt.chat, rt.metrics, rt.bus)
			if err != nil {
				cancel()
				slog.Error("failed to create server", "error", err)
				return
			}

			c := make(chan os.Signal, 1)
			// Trigger graceful shutdown on SIGINT or SIGTERM.
			signal.Notify(c, terminationSignals...)

			if err := s.Start(ctx); err != nil {
				slog.Error("failed to start server", "error", err)
				cancel()
				return
			}

			printGreetings(rt.profile, s.Addr())

			go func() {
				<-c
				s.Shutdown(ctx)
				cancel()
			}()

			// Wait for CTRL-C.
			<-ctx.Done()
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print build version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.StringFull())
		},
	}
)

// runtime bundles the components shared by the server and the terminal chat.
type runtime struct {
	profile *profile.Profile
	metrics *metrics.PrometheusExporter
	bus     *chat.EventBus
	engine  ai.Engine
	chat    *chat.Service
}

func newRuntime() (*runtime, error) {
	instanceProfile := &profile.Profile{
		Mode:       viper.GetString("mode"),
		Addr:       viper.GetString("addr"),
		Port:       viper.GetInt("port"),
		Engine:     viper.GetString("engine"),
		LogLevel:   viper.GetString("log-level"),
		LogFormat:  viper.GetString("log-format"),
		LogFile:    viper.GetString("log-file"),
		WebhookURL: viper.GetString("webhook-url"),
		Version:    version.GetCurrentVersion(viper.GetString("mode")),
	}
	instanceProfile.FromEnv()
	if err := instanceProfile.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	if _, err := logging.Init(logging.Config{
		Level:  instanceProfile.LogLevel,
		Format: instanceProfile.LogFormat,
		File:   instanceProfile.LogFile,
	}); err != nil {
		slog.Warn("failed to open log file, logging to stderr", "file", instanceProfile.LogFile, "error", err)
	}

	exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())
	engine, err := ai.NewEngine(ai.NewConfigFromProfile(instanceProfile), exporter)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create response engine")
	}
	slog.Info("Response engine initialized",
		"engine", instanceProfile.Engine,
		"model", engine.ModelInfo().Name,
	)

	bus := chat.NewEventBus()
	if instanceProfile.WebhookURL != "" {
		bus.Subscribe(webhook.NewListener(instanceProfile.WebhookURL))
		slog.Info("Forwarding chat events to webhook", "url", instanceProfile.WebhookURL)
	}

	svc := chat.NewService(store.New(), engine,
		chat.WithMetrics(exporter),
		chat.WithEventBus(bus),
		chat.WithEngineName(instanceProfile.Engine),
	)

	return &runtime{
		profile: instanceProfile,
		metrics: exporter,
		bus:     bus,
		engine:  engine,
		chat:    svc,
	}, nil
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("port", 8081)
	viper.SetDefault("engine", profile.EngineMock)
	viper.SetDefault("log-level", "info")
	viper.SetDefault("log-format", "text")

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8081, "port of server")
	rootCmd.PersistentFlags().String("engine", profile.EngineMock, `response engine, can be "mock", "remote" or "llm"`)
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", `log format, can be "text" or "json"`)
	rootCmd.PersistentFlags().String("log-file", "", "rotate logs into this file instead of stderr")
	rootCmd.PersistentFlags().String("webhook-url", "", "post every chat event to this url")

	for _, name := range []string{"mode", "addr", "port", "engine", "log-level", "log-format", "log-file", "webhook-url"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("yougpt")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	rootCmd.AddCommand(chatCmd, versionCmd)
}

func printGreetings(profile *profile.Profile, addr string) {
	fmt.Printf("YOUGPT %s started successfully!\n", profile.Version)

	if profile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
	}

	fmt.Printf("Mode: %s\n", profile.Mode)
	fmt.Printf("Response engine: %s\n", profile.Engine)
	fmt.Printf("Server running on %s\n", addr)
	fmt.Printf("API: http://%s/api/v1/conversations\n", addr)
	fmt.Printf("Metrics: http://%s/metrics\n", addr)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
