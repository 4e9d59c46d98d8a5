// Package worker turns expense mutation events into spreadsheet activity rows.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"lifehub/internal/amqp"
	applog "lifehub/internal/log"
	"lifehub/internal/sheets"
)

// Consumer delivers mutation events until ctx ends. A handler error must
// requeue the event.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, *amqp.MutationEvent) error) error
}

type ExportWorker struct {
	writer      sheets.ActivityWriter
	concurrency int
	logger      *slog.Logger

	exported atomic.Int64
	skipped  atomic.Int64
	failed   atomic.Int64
}

type Stats struct {
	Exported int64
	Skipped  int64
	Failed   int64
}

func NewExportWorker(writer sheets.ActivityWriter, concurrency int, logger *slog.Logger) *ExportWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportWorker{
		writer:      writer,
		concurrency: concurrency,
		logger:      logger.With(applog.FieldComponent, applog.ComponentWorker),
	}
}

// HandleEvent appends one row per expense event. Other entities are acknowledged untouched.
func (w *ExportWorker) HandleEvent(ctx context.Context, ev *amqp.MutationEvent) error {
	row, ok := sheets.RowFromEvent(ev)
	if !ok {
		w.skipped.Add(1)
		return nil
	}

	ref, err := w.writer.Append(ctx, row)
	if err != nil {
		w.failed.Add(1)
		return fmt.Errorf("export %s %s: %w", ev.Type(), ev.ID, err)
	}
	w.exported.Add(1)
	w.logger.InfoContext(ctx, "Expense activity exported",
		applog.FieldEventType, ev.Type(),
		applog.FieldExpenseID, ev.ID,
		applog.FieldOwnerID, ev.OwnerID,
		applog.FieldSheetsRef, ref)
	return nil
}

// Run consumes with the configured number of parallel consumers until ctx
// ends. Cancellation is a clean stop.
func (w *ExportWorker) Run(ctx context.Context, consumer Consumer) error {
	eg, egCtx := errgroup.WithContext(ctx)
	for range w.concurrency {
		eg.Go(func() error {
			return consumer.Consume(egCtx, w.HandleEvent)
		})
	}
	err := eg.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (w *ExportWorker) Stats() Stats {
	return Stats{
		Exported: w.exported.Load(),
		Skipped:  w.skipped.Load(),
		Failed:   w.failed.Load(),
	}
}
