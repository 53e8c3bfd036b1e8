// Command smart-youtube-bot is the main entrypoint for the live chat bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Runs the chat session: watch for the channel's live broadcast, attach
//     to its chat, and answer messages under the daily API quota budget.
//   - Refreshes the stored YouTube OAuth token in the background.
//   - Exposes an HTTP server with health, status, audit, and control endpoints.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/shad0w7en/smart-youtube-bot/chatctx"
	"github.com/shad0w7en/smart-youtube-bot/config"
	"github.com/shad0w7en/smart-youtube-bot/db"
	"github.com/shad0w7en/smart-youtube-bot/oauth"
	"github.com/shad0w7en/smart-youtube-bot/quota"
	"github.com/shad0w7en/smart-youtube-bot/respond"
	"github.com/shad0w7en/smart-youtube-bot/server"
	"github.com/shad0w7en/smart-youtube-bot/session"
	"github.com/shad0w7en/smart-youtube-bot/telemetry"
	"github.com/shad0w7en/smart-youtube-bot/throttle"
	"github.com/shad0w7en/smart-youtube-bot/youtubeapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	setupLogging()

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdownTracing, err := telemetry.InitTracing("smart-youtube-bot", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	// Root context with graceful shutdown. Created before the DB connect so a
	// signal during the startup retry loop aborts it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	database, err := db.ConnectWithRetry(ctx, cfg.DBDsn, 30*time.Second)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}

	// Run database migrations using dual-system approach:
	// 1. Primary: versioned migrations (golang-migrate) from db/migrations/
	// 2. Fallback: embedded SQL (db.Migrate) for environments without the
	//    migration files on disk.
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, attempting fallback to legacy embedded SQL",
			slog.Any("err", err),
			slog.String("component", "db_migrate"))
		if err := db.Migrate(ctx, database); err != nil {
			slog.Error("failed to migrate db (both versioned and embedded SQL failed)", slog.Any("err", err))
			os.Exit(1)
		}
		slog.Info("legacy embedded SQL migration completed successfully",
			slog.String("component", "db_migrate"))
	} else {
		slog.Info("versioned migrations completed successfully",
			slog.String("component", "db_migrate"))
	}

	// Stored /config overrides win over env on restart. Applied before any
	// component reads its knobs.
	if n := server.ApplyConfigOverrides(ctx, database); n > 0 {
		setupLogging()
		cfg, err = config.Load()
		if err != nil {
			slog.Error("config reload failed", slog.Any("err", err))
			os.Exit(1)
		}
		slog.Info("applied stored config overrides", slog.Int("count", n))
	}

	store := &db.BotStore{DB: database}

	// Seed the session with the last broadcast the bot was attached to so a
	// restart does not greet the same stream twice or re-attach to one that
	// just ended.
	lastVideo, err := store.LastAttachedVideo(ctx)
	if err != nil {
		slog.Warn("could not load last attached video", slog.Any("err", err))
		lastVideo = ""
	}

	yt := youtubeapi.New(cfg, &db.TokenStoreAdapter{DB: database})

	// The session runs regardless: with missing credentials the probes fail
	// harmlessly (failed calls are never charged) and recover as soon as the
	// operator completes /auth/youtube/start.
	if err := cfg.ValidateSessionReady(); err != nil {
		slog.Warn("chat session not fully configured, probing will fail until env is fixed", slog.Any("err", err))
	}

	costs := quota.Costs{
		Search: cfg.QuotaCostSearch,
		Lookup: cfg.QuotaCostLookup,
		List:   cfg.QuotaCostList,
		Insert: cfg.QuotaCostInsert,
	}
	runner := session.NewRunner(session.Deps{
		Cfg:         cfg,
		API:         yt,
		Ledger:      quota.NewLedger(cfg.QuotaDailyLimit, cfg.QuotaSafeFraction, costs),
		Throttle:    throttle.New(cfg.ReplyGlobalCooldown, cfg.ReplyAuthorCooldown, cfg.ReplyHourlyCap),
		Chat:        chatctx.New(),
		Responder:   respond.New(cfg.BotDisplayName),
		Audit:       store,
		LastVideoID: lastVideo,
		OnFatal: func() {
			slog.Error("consecutive error threshold reached, shutting down")
			stop()
		},
	})
	runner.Start(ctx)

	// Centralized OAuth token refresher keeps the stored YouTube credential
	// fresh so API calls never block on a refresh round-trip.
	oauth.StartRefresher(ctx, database, "youtube", 10*time.Minute, 20*time.Minute, func(rctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		cfg2, _ := config.Load()
		if cfg2.YTClientID == "" {
			return "", "", time.Time{}, "", context.Canceled
		}
		oc := &oauth2.Config{ClientID: cfg2.YTClientID, ClientSecret: cfg2.YTClientSecret, Endpoint: google.Endpoint, RedirectURL: cfg2.YTRedirectURI}
		newTok, err := oc.TokenSource(rctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
		if err != nil {
			return "", "", time.Time{}, "", err
		}
		return newTok.AccessToken, newTok.RefreshToken, newTok.Expiry, "", nil
	})

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			// Use an http.Server with timeouts to satisfy G114 and avoid DoS risks
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// HTTP server (health/status/audit/control)
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	go func() {
		if err := server.Start(ctx, database, runner, addr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal, then drain: the runner gets a window to
	// say goodbye and detach before the process exits.
	<-ctx.Done()
	slog.Info("shutting down")

	var errs *multierror.Error
	select {
	case <-runner.Done():
	case <-time.After(15 * time.Second):
		errs = multierror.Append(errs, errors.New("session did not stop within 15s"))
	}
	if err := database.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("close database: %w", err))
	}
	if err := errs.ErrorOrNil(); err != nil {
		slog.Error("shutdown finished with errors", slog.Any("err", err))
		return
	}
	slog.Info("shutdown complete")
}

// setupLogging configures the default slog logger from LOG_LEVEL and
// LOG_FORMAT. Called again once stored config overrides are applied so a
// logging override takes effect.
func setupLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		// unknown level -> keep info but note once using temporary logger
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))
}
