package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/MicahParks/keyfunc/v3"
	_ "github.com/lib/pq"

	"github.com/OFFIS-RIT/stencil/internal/bootstrap"
	"github.com/OFFIS-RIT/stencil/internal/config"
	"github.com/OFFIS-RIT/stencil/internal/queue"
	"github.com/OFFIS-RIT/stencil/internal/server"
	mid "github.com/OFFIS-RIT/stencil/internal/server/middleware"
	"github.com/OFFIS-RIT/stencil/internal/storage"
	"github.com/OFFIS-RIT/stencil/internal/util"
	"github.com/OFFIS-RIT/stencil/pkg/logger"
)

func main() {
	util.LoadEnv()

	cfg := config.FromEnv()
	bootstrap.InitLogger(cfg, "server")
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := bootstrap.OpenStore(ctx, cfg.Store)
	if err != nil {
		logger.Fatal("Failed to open store", "adapter", cfg.Store.Adapter, "err", err)
	}
	defer st.Close()

	// harvesting needs no model; interpretation runs in the worker
	client, err := bootstrap.NewPipeline(cfg, st, nil)
	if err != nil {
		logger.Fatal("Failed to create pipeline", "err", err)
	}

	bucket, err := storage.NewBucket(ctx, storage.NewBucketParams{
		Region:         cfg.S3.Region,
		Endpoint:       cfg.S3.Endpoint,
		PublicEndpoint: cfg.S3.PublicEndpoint,
		AccessKey:      cfg.S3.AccessKey,
		SecretKey:      cfg.S3.SecretKey,
		Bucket:         cfg.S3.Bucket,
	})
	if err != nil {
		logger.Fatal("Failed to create s3 client", "err", err)
	}

	conn, err := queue.Dial(cfg.Queue.AMQPURL())
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	k, err := keyfunc.NewDefault([]string{cfg.Server.AuthURL + "/jwks"})
	if err != nil {
		logger.Fatal("Failed to load jwks keys", "err", err)
	}

	e := server.New(&mid.App{
		Pipeline:     client,
		Queue:        ch,
		Files:        bucket,
		Keyfunc:      k.Keyfunc,
		Filter:       cfg.Filter,
		MasterAPIKey: cfg.Server.MasterAPIKey,
	}, "50M")

	if err := server.Run(ctx, e, cfg.Server.Port); err != nil {
		logger.Fatal("Server stopped", "err", err)
	}
	logger.Info("Shutdown complete")
}
