package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/go-playground/validator"
	"github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/OFFIS-RIT/stencil/internal/storage"
	"github.com/OFFIS-RIT/stencil/internal/util"
	"github.com/OFFIS-RIT/stencil/pkg/basis"
	"github.com/OFFIS-RIT/stencil/pkg/document"
	"github.com/OFFIS-RIT/stencil/pkg/leaselock"
	"github.com/OFFIS-RIT/stencil/pkg/loader"
	"github.com/OFFIS-RIT/stencil/pkg/logger"
	"github.com/OFFIS-RIT/stencil/pkg/pipeline"
)

// Locker runs a function while holding a named lease.
type Locker interface {
	WithLease(ctx context.Context, key string, opts leaselock.Options, fn func(ctx context.Context) error) error
}

// Snapshotter stores encoded networks.
type Snapshotter interface {
	PutFile(ctx context.Context, key string, file io.Reader) error
}

// Worker processes learn jobs. Jobs of one template are serialized through
// the template lease so phases never interleave on one basis graph.
type Worker struct {
	client    *pipeline.Client
	loader    loader.DocumentLoader
	locks     Locker
	snapshots Snapshotter
	events    Publisher
	lease     leaselock.Options
	filter    document.Filter
	parallel  int
	validate  *validator.Validate
}

// NewWorkerParams configures a Worker. Snapshots and Events may be nil.
type NewWorkerParams struct {
	Client    *pipeline.Client
	Loader    loader.DocumentLoader
	Locks     Locker
	Snapshots Snapshotter
	Events    Publisher
	Lease     leaselock.Options
	Filter    document.Filter
	// ParallelLoads bounds concurrent document downloads.
	ParallelLoads int
}

func NewWorker(params NewWorkerParams) *Worker {
	parallel := params.ParallelLoads
	if parallel <= 0 {
		parallel = 4
	}
	return &Worker{
		client:    params.Client,
		loader:    params.Loader,
		locks:     params.Locks,
		snapshots: params.Snapshots,
		events:    params.Events,
		lease:     params.Lease,
		filter:    params.Filter,
		parallel:  parallel,
		validate:  validator.New(),
	}
}

// ProcessLearnMessage handles one LearnJob body.
func (w *Worker) ProcessLearnMessage(ctx context.Context, body []byte) error {
	var job LearnJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("failed to decode learn job: %w", err)
	}
	if err := w.validate.Struct(job); err != nil {
		return fmt.Errorf("invalid learn job: %w", err)
	}

	docs, err := w.load(ctx, job)
	if err != nil {
		return err
	}

	event := LearnedEvent{JobID: job.JobID, Template: job.Template}
	err = w.locks.WithLease(ctx, leaselock.TemplateKey(job.Template), w.lease, func(ctx context.Context) error {
		t, res, err := w.client.LearnJob(ctx, job.JobID, job.Template, docs)
		if err != nil {
			return err
		}
		event.SubgraphHash = res.SubgraphHash
		event.Documents = res.Documents
		event.Grafted = res.Grafted

		if job.Interpret {
			report, err := w.client.Interpret(ctx, t, docs)
			if err != nil {
				return err
			}
			event.Interpreted = report.Resolutions[basis.Interpreted]
			event.Failed = report.Failed
			event.SubgraphHash = t.Network.SubgraphHash
		}

		if w.snapshots != nil {
			raw, err := json.Marshal(t.Network)
			if err != nil {
				return fmt.Errorf("failed to encode snapshot: %w", err)
			}
			key := storage.SnapshotKey(job.Template, t.Network.SubgraphHash.String())
			err = util.RetryErrWithContext(ctx, 3, func(ctx context.Context) error {
				return w.snapshots.PutFile(ctx, key, bytes.NewReader(raw))
			})
			if err != nil {
				logger.Warn("[Queue] Failed to store network snapshot", "template", job.Template, "key", key, "err", err)
			} else {
				event.Snapshot = key
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("learn job %s for template %s failed: %w", job.JobID, job.Template, err)
	}

	logger.Info("[Queue] Learn job done", "job_id", job.JobID, "template", job.Template, "documents", event.Documents, "grafted", event.Grafted, "interpreted", event.Interpreted)
	if w.events != nil {
		raw, err := json.Marshal(event)
		if err == nil {
			err = PublishTopic(w.events, LearnedTopic(job.Template), raw)
		}
		if err != nil {
			logger.Warn("[Queue] Failed to publish learned event", "job_id", job.JobID, "err", err)
		}
	}
	return nil
}

func (w *Worker) load(ctx context.Context, job LearnJob) ([]*document.Document, error) {
	docs := make([]*document.Document, len(job.Documents))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(w.parallel)
	for i, d := range job.Documents {
		eg.Go(func() error {
			doc, err := w.loader.Load(egCtx, loader.DocumentFile{ID: job.JobID, FilePath: d.Key, Filter: w.filter})
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", d.Key, err)
			}
			if d.Source != "" {
				doc.Source = d.Source
			}
			docs[i] = doc
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

func retriesOf(headers amqp091.Table) int {
	switch v := headers["x-retries"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// HandleProcessingError routes a failed delivery to the retry queue of
// queueName, or to its dead-letter queue once it was retried maxRetries
// times. The delivery is acked after republishing and requeued if that
// fails.
func HandleProcessingError(p Publisher, msg amqp091.Delivery, queueName string, maxRetries int) {
	retries := retriesOf(msg.Headers)

	if retries >= maxRetries {
		dlqName := queueName + "_dlq"
		logger.Info("[Queue] Sending message to DLQ", "dlq", dlqName, "retries", retries)
		pubErr := p.Publish("", dlqName, false, false, amqp091.Publishing{
			ContentType:  msg.ContentType,
			Body:         msg.Body,
			Headers:      msg.Headers,
			DeliveryMode: amqp091.Persistent,
		})
		if pubErr != nil {
			logger.Error("[Queue] Failed to publish to DLQ", "dlq", dlqName, "err", pubErr)
			_ = msg.Nack(false, true)
			return
		}
		_ = msg.Ack(false)
		return
	}

	retryName := queueName + "_retry"
	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers["x-retries"] = int32(retries + 1)

	pubErr := p.Publish("", retryName, false, false, amqp091.Publishing{
		ContentType:  msg.ContentType,
		Body:         msg.Body,
		Headers:      headers,
		DeliveryMode: amqp091.Persistent,
	})
	if pubErr != nil {
		logger.Error("[Queue] Failed to publish to retry queue", "retry_queue", retryName, "err", pubErr)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}
