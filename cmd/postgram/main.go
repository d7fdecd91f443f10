// Package main is the entry point for the postgram CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/postgram/postgram/internal/config"
	"github.com/postgram/postgram/internal/deliver"
	"github.com/postgram/postgram/internal/feed"
	"github.com/postgram/postgram/internal/gate"
	"github.com/postgram/postgram/internal/gate/sqlite"
	"github.com/postgram/postgram/internal/gateway"
	"github.com/postgram/postgram/internal/janitor"
	"github.com/postgram/postgram/internal/media"
	"github.com/postgram/postgram/internal/metrics"
	"github.com/postgram/postgram/internal/pipeline"
	"github.com/postgram/postgram/internal/telegram"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "postgram",
		Short:         "Relay published CMS articles to a Telegram channel",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	root.AddCommand(versionCmd(), serveCmd(), testCmd(), sendCmd(), checkCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("postgram %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server and background janitor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			app, err := assemble(cfg, logger)
			if err != nil {
				return err
			}
			defer app.close()

			srv := gateway.New(cfg.Listen, app.pipeline, app.registry, logger)
			if err := srv.Start(); err != nil {
				return err
			}

			sched := janitor.NewScheduler(logger)
			if err := sched.RegisterJob(&janitor.CacheSweepJob{
				Dir:          cfg.CacheDir,
				MaxAge:       cfg.CacheMaxAge,
				Logger:       logger,
				ScheduleExpr: cfg.CacheSweepSchedule,
			}); err != nil {
				return err
			}
			if err := sched.Start(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			shutdownCtx := context.Background()
			_ = sched.Stop(shutdownCtx)
			return srv.Stop(shutdownCtx)
		},
	}
}

func testCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Validate credentials and send a test message",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			app, err := assemble(cfg, logger)
			if err != nil {
				return err
			}
			defer app.close()

			msg, err := app.pipeline.TestConnection(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(msg)
			return nil
		},
	}
}

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <event.json>",
		Short: "Deliver a single post-published event from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var ev feed.PostPublishedEvent
			if err := json.Unmarshal(raw, &ev); err != nil {
				return fmt.Errorf("parsing %s: %w", args[0], err)
			}
			if ev.PostID == "" {
				return fmt.Errorf("%s: missing post_id", args[0])
			}

			app, err := assemble(cfg, logger)
			if err != nil {
				return err
			}
			defer app.close()

			out, err := app.pipeline.HandlePostPublished(cmd.Context(), ev)
			if err != nil {
				return err
			}
			switch {
			case !out.Attempted:
				fmt.Printf("Skipped: %s\n", out.SkipReason)
			case out.Result.OK:
				fmt.Printf("Delivered, message ID %s\n", out.Result.MessageID)
			default:
				return fmt.Errorf("delivery failed: %s: %s", out.Result.ErrorKind, out.Result.ErrorDetail)
			}
			return nil
		},
	}
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, _, err := loadConfig(cmd); err != nil {
				return err
			}
			fmt.Println("Configuration OK")
			return nil
		},
	}
}

// app bundles the wired collaborators behind the commands.
type app struct {
	pipeline *pipeline.Pipeline
	registry *prometheus.Registry
	store    *sqlite.Store
}

func (a *app) close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}

// assemble builds the full delivery pipeline from configuration.
func assemble(cfg *config.Config, logger *slog.Logger) (*app, error) {
	store, err := sqlite.Open(cfg.StatePath)
	if err != nil {
		return nil, err
	}

	httpClient := telegram.NewHTTPClient(cfg.InsecureSkipVerify)
	client := telegram.NewClient(cfg.BotToken, cfg.APIURL, httpClient)

	direct := deliver.NewDirect(client, cfg.ChannelID)
	relay := deliver.NewRelay(cfg.RelayURL, cfg.BotToken, cfg.ChannelID, httpClient)
	router := deliver.NewRouter(cfg, direct, relay, logger)

	registry := prometheus.NewRegistry()

	p := pipeline.New(
		cfg,
		gate.New(store, logger),
		media.NewNormalizer(httpClient, cfg, logger),
		router,
		deliver.NewValidator(client),
		metrics.New(registry),
		logger,
	)

	return &app{pipeline: p, registry: registry, store: store}, nil
}

// loadConfig resolves the config path, loads, and validates it.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		resolved, err := resolveConfigPath()
		if err != nil {
			return nil, nil, err
		}
		path = resolved
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	return cfg, logger, nil
}

// resolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/postgram/postgram.yaml → ./postgram.yaml
func resolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "postgram", "postgram.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "postgram", "postgram.yaml"))
	}

	candidates = append(candidates, "postgram.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}
