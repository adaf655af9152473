package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/OFFIS-RIT/stencil/internal/bootstrap"
	"github.com/OFFIS-RIT/stencil/internal/config"
	"github.com/OFFIS-RIT/stencil/internal/queue"
	"github.com/OFFIS-RIT/stencil/internal/storage"
	"github.com/OFFIS-RIT/stencil/internal/util"
	"github.com/OFFIS-RIT/stencil/pkg/ai"
	"github.com/OFFIS-RIT/stencil/pkg/leaselock"
	"github.com/OFFIS-RIT/stencil/pkg/loader/s3"
	"github.com/OFFIS-RIT/stencil/pkg/logger"
)

func main() {
	util.LoadEnv()

	cfg := config.FromEnv()
	bootstrap.InitLogger(cfg, "worker")
	defer logger.Sync()

	if err := cfg.ValidateWorker(); err != nil {
		logger.Fatal("Invalid configuration", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aiClient, err := bootstrap.NewAIClient(cfg.AI)
	if err != nil {
		logger.Fatal("Could not create AI client", "adapter", cfg.AI.Adapter, "err", err)
	}

	st, err := bootstrap.OpenStore(ctx, cfg.Store)
	if err != nil {
		logger.Fatal("Failed to open store", "adapter", cfg.Store.Adapter, "err", err)
	}
	defer st.Close()

	client, err := bootstrap.NewPipeline(cfg, st, aiClient)
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

	// Init rabbitmq
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

	hostname, _ := os.Hostname()
	lease := leaselock.TemplateOptions("worker-" + hostname)
	lease.TTL = cfg.LeaseTTL

	worker := queue.NewWorker(queue.NewWorkerParams{
		Client:        client,
		Loader:        s3.NewS3DocumentLoaderWithClient(bucket.Name(), bucket.Client()),
		Locks:         leaselock.New(st.Pool),
		Snapshots:     bucket,
		Events:        ch,
		Lease:         lease,
		Filter:        cfg.Filter,
		ParallelLoads: cfg.AI.ParallelRequests,
	})

	// A single consumer channel with prefetch=1 delivers one message at a
	// time across all queues.
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, true); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	type queuedMessage struct {
		msg       amqp.Delivery
		queueName string
	}

	messageChan := make(chan queuedMessage)

	for _, queueName := range queue.Queues {
		go func(qName string) {
			msgs, err := consumerCh.Consume(
				qName,
				qName+"_consumer",
				false, // autoAck
				false, // exclusive
				false, // noLocal
				false, // noWait
				nil,
			)
			if err != nil {
				logger.Fatal("Failed to start consuming", "queue", qName, "err", err)
			}

			for {
				select {
				case <-ctx.Done():
					logger.Info("Stopping consumer", "queue", qName)
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("Message channel closed", "queue", qName)
						return
					}
					messageChan <- queuedMessage{msg: msg, queueName: qName}
				}
			}
		}(queueName)
	}

	logger.Info("Listening for messages", "queues", queue.Queues)

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case qm := <-messageChan:
				startTime := time.Now()
				logger.Info("Received message", "queue", qm.queueName)

				var processingErr error
				switch qm.queueName {
				case queue.LearnQueue:
					processingErr = worker.ProcessLearnMessage(ctx, qm.msg.Body)
				default:
					processingErr = fmt.Errorf("no handler for queue %s", qm.queueName)
				}

				if processingErr != nil {
					logger.Error("Error processing message", "queue", qm.queueName, "err", processingErr)
					queue.HandleProcessingError(consumerCh, qm.msg, qm.queueName, cfg.Queue.MaxRetries)
				} else {
					if err := qm.msg.Ack(false); err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "queue", qm.queueName)
				}

				logMetrics(aiClient, time.Since(startTime))
				aiClient.ResetMetrics()
				logger.Info("Waiting for next message")
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}

func logMetrics(client ai.GraphAIClient, processing time.Duration) {
	metrics := client.GetMetrics()
	logger.Info(
		"AI Metrics",
		"input_tokens", metrics.InputTokens,
		"output_tokens", metrics.OutputTokens,
		"total_tokens", metrics.TotalTokens,
		"duration", clock(time.Duration(metrics.DurationMs)*time.Millisecond),
	)
	logger.Info("Processing time", "duration", clock(processing))
}

func clock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}
