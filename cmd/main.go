package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"filealchemist/internal/blob"
	"filealchemist/internal/broker"
	"filealchemist/internal/converter"
	"filealchemist/internal/models"
	"filealchemist/internal/preferences"
	"filealchemist/internal/queue"
	"filealchemist/internal/server"
	"filealchemist/internal/storage"
)

type repository interface {
	queue.Repository
	Close()
}

func main() {
	cfg, err := models.LoadConfig("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, Environment: cfg.Environment}); err != nil {
			log.Fatal().Err(err).Msg("sentry.Init")
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init storage")
	}
	defer repo.Close()

	blobs, err := openBlobs(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init file storage")
	}

	prefs, err := preferences.Open(cfg.PreferencesPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load preferences")
	}
	defer func() {
		if err := prefs.Close(); err != nil {
			log.Error().Err(err).Msg("failed to save preferences")
		}
	}()

	q := queue.New(repo, blobs, converter.New())
	if n, err := q.RecoverInterrupted(ctx); err != nil {
		log.Error().Err(err).Msg("failed to recover interrupted jobs")
	} else if n > 0 {
		log.Warn().Int("jobs", n).Msg("marked interrupted jobs as failed")
	}
	if cfg.ConvertOnStart {
		if err := q.RunPending(ctx); err != nil {
			log.Error().Err(err).Msg("failed to convert pending jobs")
		}
	}

	var (
		dispatcher queue.Dispatcher
		wait       func()
	)
	if cfg.KafkaBroker != "" {
		producer := broker.NewProducer(cfg.KafkaBroker, cfg.KafkaTopic)
		defer producer.Close()

		consumer := broker.NewConsumer(cfg.KafkaBroker, cfg.KafkaTopic, cfg.KafkaGroup, q)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := consumer.Run(ctx); err != nil {
				log.Error().Err(err).Msg("kafka consumer stopped")
			}
		}()
		dispatcher, wait = producer, func() { <-done }
		log.Info().Str("broker", cfg.KafkaBroker).Str("topic", cfg.KafkaTopic).Msg("using kafka dispatcher")
	} else {
		local := queue.NewLocalDispatcher(q, 0)
		local.Start(ctx)
		dispatcher, wait = local, local.Wait
	}

	srv := server.NewServer(cfg, q, dispatcher, prefs)
	go func() {
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("http server failed")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	wait()
}

func setupLogger(cfg *models.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func openRepository(ctx context.Context, cfg *models.Config) (repository, error) {
	if cfg.DatabaseURL == "" {
		log.Info().Msg("no database configured, keeping jobs in memory")
		return storage.NewMemory(), nil
	}
	return storage.NewStorage(ctx, cfg.DatabaseURL)
}

func openBlobs(ctx context.Context, cfg *models.Config) (blob.Store, error) {
	if cfg.Minio.Enabled() {
		return blob.NewMinio(ctx, cfg.Minio)
	}
	return blob.NewDisk(cfg.StoragePath)
}
