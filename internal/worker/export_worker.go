// Package worker consumes ledger events and mirrors committed records into
// the export spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"

	"carteira/internal/amqp"
	"carteira/internal/core"
	"carteira/internal/ledger"
	"carteira/internal/log"
	"carteira/internal/sheets"
)

// ExportWorker handles ledger events delivered over AMQP. Records are read
// back from the store so the spreadsheet only ever sees committed data.
type ExportWorker struct {
	store    ledger.TransactionReader
	exporter sheets.LedgerExporter
	logger   *log.Logger
}

func NewExportWorker(store ledger.TransactionReader, exporter sheets.LedgerExporter, logger *log.Logger) *ExportWorker {
	if logger == nil {
		logger = log.Default(log.ComponentWorker)
	}
	return &ExportWorker{store: store, exporter: exporter, logger: logger}
}

// HandleLedgerEvent is the consumer callback. Records missing from the store
// and exports the spreadsheet rejects are reported as permanent so the
// delivery is dropped; other errors are retried.
func (w *ExportWorker) HandleLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	err := w.handle(ctx, ev)
	if err != nil && (errors.Is(err, core.ErrNotFound) || errors.Is(err, sheets.ErrRejected)) {
		return amqp.Permanent(err)
	}
	return err
}

func (w *ExportWorker) handle(ctx context.Context, ev *amqp.LedgerEvent) error {
	w.logger.InfoContext(ctx, "Processing ledger event",
		log.FieldEventType, ev.Type,
		log.FieldOwnerID, ev.OwnerID,
		log.FieldGroupID, ev.GroupID)

	switch ev.Type {
	case amqp.EventGroupCommitted:
		g, err := w.store.GetGroup(ctx, ev.OwnerID, ev.GroupID)
		if err != nil {
			return fmt.Errorf("load group %s: %w", ev.GroupID, err)
		}
		return w.export(ctx, ev, g.Members)
	case amqp.EventTransactionCreated:
		txs, err := w.loadByID(ctx, ev.OwnerID, ev.TransactionIDs)
		if err != nil {
			return err
		}
		return w.export(ctx, ev, txs)
	case amqp.EventRoleChanged:
		w.logger.InfoContext(ctx, "Role changed",
			log.FieldOwnerID, ev.OwnerID,
			log.FieldRoleFrom, ev.RoleFrom,
			log.FieldRoleTo, ev.RoleTo)
		return nil
	default:
		w.logger.WarnContext(ctx, "Ignoring unknown event", log.FieldEventType, ev.Type)
		return nil
	}
}

func (w *ExportWorker) loadByID(ctx context.Context, ownerID string, ids []string) ([]core.Transaction, error) {
	all, err := w.store.ListTransactions(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make([]core.Transaction, 0, len(ids))
	for _, t := range all {
		if _, ok := want[t.ID]; ok {
			out = append(out, t)
		}
	}
	if len(out) != len(ids) {
		return nil, fmt.Errorf("%w: %d of %d transactions for %s", core.ErrNotFound, len(ids)-len(out), len(ids), ownerID)
	}
	return out, nil
}

func (w *ExportWorker) export(ctx context.Context, ev *amqp.LedgerEvent, txs []core.Transaction) error {
	ref, err := w.exporter.AppendTransactions(ctx, txs)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to export ledger records",
			log.FieldOwnerID, ev.OwnerID,
			log.FieldGroupID, ev.GroupID,
			log.FieldError, err)
		return fmt.Errorf("append to sheets: %w", err)
	}
	w.logger.InfoContext(ctx, "Exported ledger records",
		log.FieldOwnerID, ev.OwnerID,
		log.FieldGroupID, ev.GroupID,
		log.FieldRecordCount, len(txs),
		"sheets_ref", ref)
	return nil
}
