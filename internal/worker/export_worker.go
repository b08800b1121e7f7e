package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"billrecords/internal/amqp"
	"billrecords/internal/ledger"
	applog "billrecords/internal/log"
	"billrecords/internal/metrics"
	"billrecords/internal/sheets"
	"billrecords/internal/storage"
)

// ChangeConsumer delivers ledger change events until ctx is done.
type ChangeConsumer interface {
	ConsumeLedgerChanges(ctx context.Context, handler func(context.Context, *amqp.LedgerChangeMessage) error) error
}

// ExportWorker mirrors the stored ledger snapshot into a spreadsheet.
// The snapshot in the store is the source of truth; events only say when to look.
type ExportWorker struct {
	store   storage.KeyValueStore
	key     string
	writer  sheets.SnapshotWriter
	metrics *metrics.Recorder
	logger  *applog.Logger

	mu       sync.Mutex
	exported string
	hasRun   bool
}

func NewExportWorker(store storage.KeyValueStore, key string, writer sheets.SnapshotWriter, rec *metrics.Recorder, logger *applog.Logger) *ExportWorker {
	if key == "" {
		key = ledger.DefaultKey
	}
	if logger == nil {
		logger = applog.Default(applog.ComponentWorker)
	}
	return &ExportWorker{
		store:   store,
		key:     key,
		writer:  writer,
		metrics: rec,
		logger:  logger,
	}
}

// HandleMessage exports the current snapshot in response to a change event.
func (w *ExportWorker) HandleMessage(ctx context.Context, msg *amqp.LedgerChangeMessage) error {
	w.logger.InfoContext(ctx, "Processing ledger change",
		"message_id", msg.MessageID,
		applog.FieldOperation, msg.Op,
		applog.FieldBillID, msg.BillID,
		applog.FieldBillCount, msg.Count)

	if _, err := w.Export(ctx); err != nil {
		return fmt.Errorf("export after %s of bill %d: %w", msg.Op, msg.BillID, err)
	}
	return nil
}

// Reconcile exports the snapshot if it changed since the last export.
// It catches up on events lost while the worker was down.
func (w *ExportWorker) Reconcile(ctx context.Context) error {
	exported, err := w.Export(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	if !exported {
		w.logger.DebugContext(ctx, "Snapshot unchanged, nothing to export")
	}
	return nil
}

// Export reads the stored snapshot and writes it out unless it is identical
// to the last one written. It reports whether a write happened.
// An undecodable snapshot is never exported.
func (w *ExportWorker) Export(ctx context.Context) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	raw, ok, err := w.store.Get(ctx, w.key)
	if err != nil {
		w.metrics.StorageFailed(applog.OpLoad)
		return false, fmt.Errorf("read snapshot: %w", err)
	}
	if !ok {
		raw = "[]"
	}
	if w.hasRun && raw == w.exported {
		return false, nil
	}

	bills, skipped, err := ledger.DecodeSnapshot(raw)
	if err != nil {
		return false, fmt.Errorf("decode snapshot: %w", err)
	}
	if len(skipped) > 0 {
		w.logger.WarnContext(ctx, "Exporting snapshot without unreadable bills",
			applog.FieldStorageKey, w.key,
			"skipped", len(skipped))
	}

	err = w.writer.WriteSnapshot(ctx, bills)
	w.metrics.Exported(err)
	if err != nil {
		return false, fmt.Errorf("write snapshot: %w", err)
	}

	w.exported = raw
	w.hasRun = true
	w.logger.InfoContext(ctx, "Snapshot exported", applog.FieldBillCount, len(bills))
	return true, nil
}

// Run consumes change events and, when schedule is set, reconciles on that
// cron schedule. It returns when ctx is cancelled or either loop fails.
func (w *ExportWorker) Run(ctx context.Context, consumer ChangeConsumer, schedule string) error {
	if err := w.Reconcile(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup export failed", applog.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := consumer.ConsumeLedgerChanges(gctx, w.HandleMessage)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if schedule != "" {
		g.Go(func() error {
			return w.runSchedule(gctx, schedule)
		})
	}

	return g.Wait()
}

func (w *ExportWorker) runSchedule(ctx context.Context, schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if err := w.Reconcile(ctx); err != nil {
			w.logger.ErrorContext(ctx, "Scheduled reconcile failed", applog.FieldError, err)
		}
	}); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	w.logger.InfoContext(ctx, "Reconcile schedule started", "schedule", schedule)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
