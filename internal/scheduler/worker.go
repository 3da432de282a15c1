package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Handler returns nil when the job is done, including when it turned out
// to be a no-op.
type Handler func(ctx context.Context, job Job) error

type Worker struct {
	Queue  *RedisScheduler
	Handle Handler
	Log    *zap.Logger

	Poll        time.Duration
	Batch       int
	MaxAttempts int
	RetryDelay  time.Duration
}

func NewWorker(q *RedisScheduler, h Handler, log *zap.Logger, poll time.Duration) *Worker {
	return &Worker{
		Queue:       q,
		Handle:      h,
		Log:         log,
		Poll:        poll,
		Batch:       50,
		MaxAttempts: 5,
		RetryDelay:  10 * time.Second,
	}
}

func (w *Worker) Run(ctx context.Context) {
	t := time.NewTicker(w.Poll)
	defer t.Stop()
	w.Log.Info("scheduler worker started", zap.Duration("poll", w.Poll))

	for {
		select {
		case <-ctx.Done():
			w.Log.Info("scheduler worker stopped")
			return
		case <-t.C:
			for {
				n, err := w.RunOnce(ctx)
				if err != nil {
					w.Log.Error("claim jobs", zap.Error(err))
					break
				}
				// a full batch means more may be due already
				if n < w.Batch || ctx.Err() != nil {
					break
				}
			}
		}
	}
}

// RunOnce claims one batch of due jobs and runs them in order. It returns
// how many jobs were claimed.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	jobs, err := w.Queue.Claim(ctx, w.Batch)
	if err != nil {
		return len(jobs), err
	}
	for _, j := range jobs {
		log := w.Log.With(zap.String("job_id", j.ID), zap.String("job", j.Name), zap.Int("attempt", j.Attempts+1))
		if err := w.Handle(ctx, j); err != nil {
			if j.Attempts+1 >= w.MaxAttempts {
				log.Error("job failed, giving up", zap.Error(err))
				continue
			}
			log.Warn("job failed, retrying", zap.Error(err), zap.Duration("in", w.RetryDelay))
			if rerr := w.Queue.Retry(context.WithoutCancel(ctx), j, w.RetryDelay); rerr != nil {
				log.Error("requeue job", zap.Error(rerr))
			}
			continue
		}
		log.Debug("job done")
	}
	return len(jobs), nil
}
