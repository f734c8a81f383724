// Command gatewarden runs the admission bot and its admin HTTP API.
//
// Startup order: configuration, logging, tracing, database, gateway session,
// then the HTTP server. Shutdown is the reverse, bounded by a grace period.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gatewarden/gatewarden/internal/avatarscan"
	"github.com/gatewarden/gatewarden/internal/bot"
	"github.com/gatewarden/gatewarden/internal/config"
	httpapi "github.com/gatewarden/gatewarden/internal/http"
	"github.com/gatewarden/gatewarden/internal/observability"
	"github.com/gatewarden/gatewarden/internal/platform"
	"github.com/gatewarden/gatewarden/internal/repo"
	"github.com/gatewarden/gatewarden/internal/review"
	"github.com/gatewarden/gatewarden/internal/services"
	"github.com/gatewarden/gatewarden/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

const shutdownGrace = 10 * time.Second

func main() {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Info().Str("version", version).Msg("gatewarden starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("gateway session init failed")
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	client := platform.NewDiscord(session)
	configs := services.NewGuildConfigService(db)
	configs.TTL = cfg.ConfigTTL

	var scans *avatarscan.Service
	if cfg.NSFWEndpoint != "" {
		scans = &avatarscan.Service{DB: db, Scanner: avatarscan.NewClassifierScanner(cfg.NSFWEndpoint)}
	} else {
		scans = &avatarscan.Service{DB: db, Scanner: &avatarscan.HeuristicScanner{}}
	}

	b := &bot.Bot{
		Session:   session,
		DB:        db,
		Platform:  client,
		Configs:   configs,
		Intake:    &services.IntakeService{DB: db, PageSize: cfg.PageSize},
		Decisions: &services.DecisionService{DB: db},
		Effects:   &services.EffectRunner{DB: db, Platform: client, CallTimeout: cfg.CallTimeout},
		Publisher: review.NewPublisher(db, client, configs),
		Scans:     scans,
		Limiter:   bot.NewLimiter(cfg.InteractionsPerMinute, cfg.InteractionBurst),
		OpTimeout: cfg.OpTimeout,
	}
	b.Register()

	if err := session.Open(); err != nil {
		log.Fatal().Err(err).Msg("gateway connect failed")
	}

	if cfg.GateReconcile {
		b.EnsureGateMessages(ctx)
	}

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	httpapi.RegisterRoutes(router, db, configs, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("admin api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("admin api server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	grace, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(grace); err != nil {
		log.Warn().Err(err).Msg("admin api shutdown incomplete")
	}
	if err := session.Close(); err != nil {
		log.Warn().Err(err).Msg("gateway close failed")
	}
	if err := shutdownTracing(grace); err != nil {
		log.Warn().Err(err).Msg("trace exporter shutdown failed")
	}
	log.Info().Msg("gatewarden stopped")
}
