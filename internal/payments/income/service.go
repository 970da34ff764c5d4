package income

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/halisi-erp/halisi-erp/internal/ledger"
	"github.com/halisi-erp/halisi-erp/internal/observability"
	"github.com/halisi-erp/halisi-erp/internal/refnum"
	"github.com/halisi-erp/halisi-erp/internal/shared"
)

// SourceModule tags journal entries posted by the income orchestrator.
const SourceModule = "INCOME"

// CacheInvalidator drops derived balance projections after money moves.
type CacheInvalidator interface {
	InvalidateBalances(ctx context.Context)
}

// AuditPort records payment lifecycle events into the audit log.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates income receipts. A receipt settles part of a sale,
// credits the receiving account and posts an entry debiting the account's
// node and crediting receivables.
type Service struct {
	repo    Repository
	caches  CacheInvalidator
	audit   AuditPort
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService wires the income orchestrator.
func NewService(repo Repository, caches CacheInvalidator, audit AuditPort, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, caches: caches, audit: audit, metrics: metrics, logger: logger, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns all income receipts, newest first.
func (s *Service) List(ctx context.Context) ([]Income, error) {
	return s.repo.List(ctx)
}

// Get returns one income receipt.
func (s *Service) Get(ctx context.Context, id int64) (Income, error) {
	return s.repo.Get(ctx, id)
}

// Create records a customer payment against a sale.
func (s *Service) Create(ctx context.Context, input Input) (Income, error) {
	if err := input.Validate(); err != nil {
		return Income{}, err
	}
	var created Income
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		refNo, err := tx.Refs().Next(ctx, refnum.PrefixPayment, input.ReceiptDate)
		if err != nil {
			return err
		}
		record := Income{
			ReferenceNo: refNo,
			ReceiptDate: input.ReceiptDate,
			SaleID:      input.SaleID,
			AccountID:   input.AccountID,
			Amount:      input.Amount,
			Description: input.Description,
			UserID:      input.UserID,
		}
		record, err = tx.Insert(ctx, record)
		if err != nil {
			return err
		}
		if err := s.apply(ctx, tx, record, ledger.RefPaymentReceived); err != nil {
			return err
		}
		created = record
		return nil
	})
	if err != nil {
		return Income{}, err
	}
	s.afterMutation(ctx, string(ledger.RefPaymentReceived))
	s.record(ctx, "income.create", created.ID, created.UserID, map[string]any{"reference": created.ReferenceNo})
	s.logger.Info("income recorded", slog.Int64("id", created.ID), slog.String("reference", created.ReferenceNo))
	return created, nil
}

// Update edits an applied receipt by reversing it and reapplying with the
// new values, producing two adjustment entries.
func (s *Service) Update(ctx context.Context, id int64, input Input) (Income, error) {
	if err := input.Validate(); err != nil {
		return Income{}, err
	}
	var updated Income
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !current.IsActive {
			return fmt.Errorf("%w: income: %s is deleted", shared.ErrValidation, current.ReferenceNo)
		}
		if err := s.reverse(ctx, tx, current, input.UserID); err != nil {
			return err
		}
		next := current
		next.ReceiptDate = input.ReceiptDate
		next.SaleID = input.SaleID
		next.AccountID = input.AccountID
		next.Amount = input.Amount
		next.Description = input.Description
		if err := tx.UpdateRecord(ctx, next); err != nil {
			return err
		}
		if err := s.apply(ctx, tx, next, ledger.RefAdjustment); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return Income{}, err
	}
	s.afterMutation(ctx, string(ledger.RefAdjustment))
	s.record(ctx, "income.update", id, input.UserID, map[string]any{"reference": updated.ReferenceNo})
	s.logger.Info("income updated", slog.Int64("id", id))
	return updated, nil
}

// Delete reverses the receipt's effects and soft-deletes the row.
func (s *Service) Delete(ctx context.Context, id int64, userID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !current.IsActive {
			return fmt.Errorf("%w: income: %s already deleted", shared.ErrValidation, current.ReferenceNo)
		}
		if err := s.reverse(ctx, tx, current, userID); err != nil {
			return err
		}
		return tx.SetActive(ctx, id, false)
	})
	if err != nil {
		return err
	}
	if s.caches != nil {
		s.caches.InvalidateBalances(ctx)
	}
	s.metrics.ObserveReversal(string(ledger.RefAdjustment))
	s.record(ctx, "income.delete", id, userID, nil)
	s.logger.Info("income deleted", slog.Int64("id", id))
	return nil
}

// apply settles the sale, credits the receiving account and posts the entry.
func (s *Service) apply(ctx context.Context, tx TxRepository, record Income, refType ledger.ReferenceType) error {
	sale, err := tx.Sales().ApplyPayment(ctx, record.SaleID, record.Amount)
	if err != nil {
		return err
	}
	account, err := tx.Balances().GetForUpdate(ctx, record.AccountID)
	if err != nil {
		return fmt.Errorf("income: account %d: %w", record.AccountID, err)
	}
	if !account.IsActive {
		return fmt.Errorf("%w: income: account %q is inactive", shared.ErrValidation, account.Name)
	}
	if _, err := tx.Balances().Credit(ctx, account.ID, record.Amount); err != nil {
		return err
	}
	receivable, err := tx.ReceivableNode(ctx)
	if err != nil {
		return fmt.Errorf("income: receivables node: %w", err)
	}
	refID := record.ID
	_, err = tx.Poster().Post(ctx, ledger.PostingInput{
		EntryDate:     record.ReceiptDate,
		ReferenceType: refType,
		SourceModule:  SourceModule,
		ReferenceID:   &refID,
		Description:   entryDescription(record, sale.ReferenceNo),
		UserID:        record.UserID,
		Lines: []ledger.LineInput{
			{COAID: account.COAID, Debit: record.Amount, Memo: "Received into " + account.Name},
			{COAID: receivable.ID, Credit: record.Amount, Memo: "Settles " + sale.ReferenceNo},
		},
	})
	return err
}

// reverse unwinds the sale settlement, withdraws the deposited funds and
// posts the mirror entry.
func (s *Service) reverse(ctx context.Context, tx TxRepository, record Income, userID int64) error {
	if _, err := tx.Sales().ApplyPayment(ctx, record.SaleID, -record.Amount); err != nil {
		return err
	}
	if _, err := tx.Balances().Debit(ctx, record.AccountID, record.Amount); err != nil {
		return err
	}
	_, err := tx.Poster().ReverseLatest(ctx, ledger.ReversalInput{
		SourceModule: SourceModule,
		ReferenceID:  record.ID,
		EntryDate:    s.now(),
		Description:  "Reversal of " + record.ReferenceNo,
		UserID:       userID,
	})
	return err
}

func (s *Service) afterMutation(ctx context.Context, refType string) {
	if s.caches != nil {
		s.caches.InvalidateBalances(ctx)
	}
	s.metrics.ObservePosting(refType)
}

func (s *Service) record(ctx context.Context, action string, id, actorID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "income",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now(),
	})
}

func entryDescription(record Income, saleRef string) string {
	if record.Description != "" {
		return record.Description
	}
	return "Payment received against " + saleRef
}
