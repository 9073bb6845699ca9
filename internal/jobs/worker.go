package jobs

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/summitpanel/summit-api/internal/billing"
)

// WorkerConfig collects the dependencies needed to run the job worker.
type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Gateway     billing.Gateway
	Logger      zerolog.Logger
	Concurrency int
}

// Worker wraps the Asynq server processing panel jobs.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewWorker(cfg WorkerConfig) *Worker {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 5
	}

	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeBillingSync, NewBillingSyncHandler(cfg.Gateway, cfg.Logger))

	return &Worker{server: srv, mux: mux}
}

// Run processes jobs until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()

	select {
	case <-ctx.Done():
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
