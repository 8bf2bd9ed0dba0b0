// Command server runs the botnorrea-v2 HTTP service: the Telegram update
// relay, the chat management commands and the record façades.
//
// @title                      Botnorrea v2 API
// @version                    1.0
// @description                Telegram command relay and record façades.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/jotacemarin/botnorrea-v2/internal/config"
	httpapi "github.com/jotacemarin/botnorrea-v2/internal/http"
	"github.com/jotacemarin/botnorrea-v2/internal/observability"
	"github.com/jotacemarin/botnorrea-v2/internal/repo"
	"github.com/jotacemarin/botnorrea-v2/internal/sysutil"
	"github.com/jotacemarin/botnorrea-v2/internal/telegram"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownGrace = 15 * time.Second

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	logger := sysutil.NewLogger(os.Stdout, cfg.LogPretty, cfg.OTEL.ServiceName)
	log.Logger = logger
	zerolog.DefaultContextLogger = &logger

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version,
		attribute.String("bot.name", cfg.Telegram.BotName),
		attribute.String("db.system", cfg.DBDriver),
	)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	if err := repo.AutoMigrate(db, repo.Tables(cfg.Tables)); err != nil {
		return err
	}

	tg, err := telegram.New(cfg.Telegram.BotToken, cfg.Telegram.APIURL, cfg.Telegram.Timeout)
	if err != nil {
		return err
	}
	if cfg.Telegram.BotToken == "" {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN not set; chat replies and webhook registration are disabled")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, tg, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		purgeReceipts(gctx, db, cfg.Tables.Updates, cfg.ReceiptPurgeTick)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// purgeReceipts deletes expired update receipts every tick until ctx ends.
func purgeReceipts(ctx context.Context, db *gorm.DB, table string, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredReceipts(ctx, db, table, now)
			if err != nil {
				log.Warn().Err(err).Msg("purge update receipts")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("purged update receipts")
			}
		}
	}
}
