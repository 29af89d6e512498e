// Command lpbot is the listening-party logger. It:
//   - Loads the JSON5 config (secrets may come from the environment) and sets
//     up structured logging to stdout and a rotating file.
//   - Connects to Postgres over a single connection.
//   - Joins one Discord guild, resolves the watched channels and roles, and
//     records every Spotify album or playlist announced there.
//   - Exposes /healthz, /readyz and /metrics on a side HTTP server.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/lpbot/config"
	"github.com/onnwee/lpbot/db"
	"github.com/onnwee/lpbot/discord"
	"github.com/onnwee/lpbot/lp"
	"github.com/onnwee/lpbot/server"
	"github.com/onnwee/lpbot/spotifyapi"
	"github.com/onnwee/lpbot/telemetry"
)

// Version is set at build time via -ldflags "-X main.Version=v1.0.0"
var Version = "dev"

var cfgFile string

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "lpbot",
		Short:        "Discord listening-party logger",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.json5 or $LPBOT_CONFIG)")
	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Connect to Discord and log listening parties",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context())
			},
		},
		checkConfigCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "lpbot %s\n", Version)
			},
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	path := config.Path(cfgFile)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func checkConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Load and validate the config without connecting anywhere",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			channels, roles, _ := cfg.WatchIDs()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "guild:     %s\n", cfg.Discord.GuildID)
			fmt.Fprintf(out, "channels:  %v\n", channels)
			fmt.Fprintf(out, "roles:     %v\n", roles)
			fmt.Fprintf(out, "table:     %s (key %s)\n", cfg.Database.Table, cfg.Database.KeyField)
			fmt.Fprintf(out, "album:     %s\n", strings.Join(append(append([]string{}, cfg.Database.TableFields...), cfg.Database.AlbumFields...), ", "))
			fmt.Fprintf(out, "playlist:  %s\n", strings.Join(append(append([]string{}, cfg.Database.TableFields...), cfg.Database.PlaylistFields...), ", "))
			return nil
		},
	}
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		return err
	}

	logger, logCloser := telemetry.NewLogger(telemetry.LogOptions{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
	})
	defer logCloser.Close()
	slog.SetDefault(logger)
	slog.Info("logger initialized", slog.String("level", cfg.Log.Level), slog.String("format", cfg.Log.Format), slog.String("version", Version))

	telemetry.Init()
	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdownTracing, err := telemetry.InitTracing("lpbot", Version, attribute.String("discord.guild_id", cfg.Discord.GuildID))
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		return err
	}
	defer shutdownTracing()
	slog.Info("telemetry initialized", slog.Bool("tracing", telemetry.IsTracingEnabled()))

	conn, err := db.Connect(ctx, cfg.Database.ConnString())
	if err != nil {
		slog.Error("database connect failed", slog.Any("err", err))
		return err
	}
	store, err := db.NewStore(conn, db.Table{
		Name:          cfg.Database.Table,
		KeyColumn:     cfg.Database.KeyField,
		IssuerColumn:  cfg.Database.IssuerField,
		ArtistsColumn: cfg.Database.ArtistsField,
	})
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing database", slog.Any("err", err))
		}
	}()

	guildID, err := cfg.Guild()
	if err != nil {
		return err
	}
	bot, err := discord.New(cfg.Discord.Token, guildID)
	if err != nil {
		return err
	}
	if err := bot.Start(ctx); err != nil {
		slog.Error("discord start failed", slog.Any("err", err))
		return err
	}
	defer func() {
		if err := bot.Close(); err != nil {
			slog.Warn("closing discord session", slog.Any("err", err))
		}
	}()

	wantChannels, wantRoles, err := cfg.WatchIDs()
	if err != nil {
		return err
	}
	watch, err := bot.ResolveWatch(ctx, wantChannels, wantRoles)
	if err != nil {
		slog.Error("nothing to listen to",
			slog.Int("channels", len(watch.Channels)),
			slog.Int("roles", len(watch.Roles)),
			slog.Any("err", err))
		return err
	}

	spotify := &spotifyapi.Client{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		HTTPClient:   &http.Client{Timeout: cfg.MetadataTimeout()},
	}
	session := lp.NewSession(bot, store, &lp.Resolver{Source: spotify, Timeout: cfg.MetadataTimeout()}, lp.Options{
		BotID:  bot.BotID(),
		Prefix: cfg.Discord.CommandPrefix,
		Watch:  watch,
		Columns: lp.Columns{
			Base:     cfg.Database.TableFields,
			Album:    cfg.Database.AlbumFields,
			Playlist: cfg.Database.PlaylistFields,
		},
		UpdateLimit:  cfg.UpdateLimit,
		StoreTimeout: cfg.StoreTimeout(),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return session.Run(gctx, bot.Events()) })
	g.Go(func() error { return server.Start(gctx, cfg.HTTPAddr, server.NewHandlers(store, watch)) })

	err = g.Wait()
	slog.Info("shutting down")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
