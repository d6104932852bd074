package engine

import (
	"context"
	"log/slog"

	"github.com/sethvargo/go-retry"

	"github.com/leapstack-labs/leaptable/pkg/core"
)

// enqueue schedules a view rebuild. A full queue drops the request; the view
// stays PROCESSING until it is triggered again.
func (e *Engine) enqueue(_ context.Context, id core.IDAndVersion) {
	select {
	case e.queue <- id:
	default:
		e.logger.Warn("rebuild queue full, dropping request", slog.String("view", id.String()))
	}
}

// RunWorker rebuilds queued views until ctx is done. Lock contention and
// lost status tokens are retried with exponential backoff.
func (e *Engine) RunWorker(ctx context.Context) error {
	e.logger.Info("view worker started")
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("view worker stopped")
			return ctx.Err()
		case id := <-e.queue:
			if err := e.rebuildWithRetry(ctx, id); err != nil && ctx.Err() == nil {
				e.logger.Error("view rebuild failed", slog.String("view", id.String()), slog.String("error", err.Error()))
			}
		}
	}
}

// ProcessPending rebuilds every view queued so far and returns how many
// were processed. The first error stops processing.
func (e *Engine) ProcessPending(ctx context.Context) (int, error) {
	n := 0
	for {
		select {
		case id := <-e.queue:
			n++
			if err := e.rebuildWithRetry(ctx, id); err != nil {
				return n, err
			}
		default:
			return n, nil
		}
	}
}

func (e *Engine) rebuildWithRetry(ctx context.Context, id core.IDAndVersion) error {
	backoff := retry.WithMaxRetries(e.worker.MaxRetries, retry.NewExponential(e.worker.BaseDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := e.views.CreateOrUpdateViewIndex(ctx, id)
		if err != nil && core.IsRecoverable(err) {
			e.logger.Debug("retrying view rebuild", slog.String("view", id.String()), slog.String("error", err.Error()))
			return retry.RetryableError(err)
		}
		return err
	})
}

// QueueStaleViews queues every view that is not AVAILABLE. The queue lives
// in memory, so views flagged by an earlier process are picked up here.
func (e *Engine) QueueStaleViews(ctx context.Context) (int, error) {
	views, err := e.store.ListViews(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, v := range views {
		st, err := e.support.GetTableStatus(ctx, v.ID)
		switch {
		case core.IsNotFound(err):
		case err != nil:
			return n, err
		case st.State == core.TableStateAvailable:
			continue
		}
		e.enqueue(ctx, v.ID)
		n++
	}
	return n, nil
}
