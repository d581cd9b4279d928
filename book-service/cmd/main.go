package main

import (
	"context"
	"crypto/rand"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/azaliaz/bookcatalog/book-service/internal/access"
	"github.com/azaliaz/bookcatalog/book-service/internal/auth"
	"github.com/azaliaz/bookcatalog/book-service/internal/catalog"
	"github.com/azaliaz/bookcatalog/book-service/internal/config"
	"github.com/azaliaz/bookcatalog/book-service/internal/logger"
	"github.com/azaliaz/bookcatalog/book-service/internal/metrics"
	"github.com/azaliaz/bookcatalog/book-service/internal/server"
	"github.com/azaliaz/bookcatalog/book-service/internal/storage"
	"github.com/azaliaz/bookcatalog/book-service/internal/telemetry"
)

type bookStore interface {
	catalog.Storage
	server.Pinger
}

func main() {
	cfg, err := config.ReadConfig()
	if err != nil {
		log.Fatal(err)
	}
	log := logger.Get(cfg.Debug)
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
		<-c

		log.Debug().Msg("ctx cancel; catch os signal")
		cancel()
	}()

	shutdownTracing, err := telemetry.Init(ctx, cfg.OTLPEndpoint, "book-service")
	if err != nil {
		log.Error().Err(err).Msg("tracing disabled")
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	var stor bookStore = storage.New()
	if cfg.DBDsn != "" {
		dbs, err := storage.NewDB(ctx, cfg.DBDsn)
		if err != nil {
			log.Error().Err(err).Msg("connecting to data base failed, books are kept in memory")
		} else {
			defer dbs.Close()
			if err = storage.Migrations(cfg.DBDsn, cfg.MigratePath); err != nil {
				log.Fatal().Err(err).Msg("migrations failed")
			}
			stor = dbs
		}
	}

	dir, err := auth.LoadDirectory(cfg.UsersFile)
	if err != nil {
		log.Warn().Err(err).Str("file", cfg.UsersFile).Msg("no users loaded, mutations will be rejected")
		dir, _ = auth.NewDirectory()
	}
	log.Info().Int("users", dir.Len()).Msg("user directory loaded")

	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err = rand.Read(secret); err != nil {
			log.Fatal().Err(err).Msg("generate token secret")
		}
		log.Warn().Msg("JWT_SECRET is not set, tokens will not survive a restart")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	service := catalog.New(stor, access.New())
	serv := server.New(*cfg, service, stor, dir, auth.NewIssuer(secret, cfg.TokenTTL)).
		WithMetrics(metrics.NewMetrics("catalog", reg), reg)

	group, gCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return serv.Run(gCtx)
	})
	group.Go(func() error {
		<-gCtx.Done()
		return serv.ShutdownServer()
	})

	if err = group.Wait(); err != nil {
		log.Info().Str("stopping reason", err.Error()).Msg("server stopped")
		return
	}
	log.Info().Msg("server stopped")
}
