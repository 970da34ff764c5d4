package expense

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

// SourceModule tags journal entries posted by the expense orchestrator.
const SourceModule = "EXPENSE"

// CacheInvalidator drops derived balance projections after money moves.
type CacheInvalidator interface {
	InvalidateBalances(ctx context.Context)
}

// AuditPort records payment lifecycle events into the audit log.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates expense recording. Create runs the four-phase apply:
// validate, no subsidiary effects for a plain expense, debit the paying
// account, post one journal entry. Update reverses the prior application and
// reapplies with the new values; Delete reverses and soft-deletes.
type Service struct {
	repo    Repository
	caches  CacheInvalidator
	audit   AuditPort
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService wires the expense orchestrator.
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

// List returns all expenses, newest first.
func (s *Service) List(ctx context.Context) ([]Expense, error) {
	return s.repo.List(ctx)
}

// Get returns one expense.
func (s *Service) Get(ctx context.Context, id int64) (Expense, error) {
	return s.repo.Get(ctx, id)
}

// Create records a new expense: the paying account is debited and a balanced
// entry is posted, all in one transaction.
func (s *Service) Create(ctx context.Context, input Input) (Expense, error) {
	if err := input.Validate(); err != nil {
		return Expense{}, err
	}
	var created Expense
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		refNo, err := tx.Refs().Next(ctx, refnum.PrefixExpense, input.ExpenseDate)
		if err != nil {
			return err
		}
		record := Expense{
			ReferenceNo: refNo,
			ExpenseDate: input.ExpenseDate,
			CategoryID:  input.CategoryID,
			AccountID:   input.AccountID,
			Amount:      input.Amount,
			Description: input.Description,
			UserID:      input.UserID,
		}
		record, err = tx.Insert(ctx, record)
		if err != nil {
			return err
		}
		if err := s.apply(ctx, tx, record, ledger.RefExpense); err != nil {
			return err
		}
		created = record
		return nil
	})
	if err != nil {
		return Expense{}, err
	}
	s.afterMutation(ctx, string(ledger.RefExpense))
	s.record(ctx, "expense.create", created.ID, created.UserID, map[string]any{"reference": created.ReferenceNo})
	s.logger.Info("expense recorded", slog.Int64("id", created.ID), slog.String("reference", created.ReferenceNo))
	return created, nil
}

// Update edits an applied expense by reversing the original application and
// reapplying with the new values. The journal receives two adjustment
// entries; the row keeps its reference number.
func (s *Service) Update(ctx context.Context, id int64, input Input) (Expense, error) {
	if err := input.Validate(); err != nil {
		return Expense{}, err
	}
	var updated Expense
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !current.IsActive {
			return fmt.Errorf("%w: expense: %s is deleted", shared.ErrValidation, current.ReferenceNo)
		}
		if err := s.reverse(ctx, tx, current, input.UserID); err != nil {
			return err
		}
		next := current
		next.ExpenseDate = input.ExpenseDate
		next.CategoryID = input.CategoryID
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
		return Expense{}, err
	}
	s.afterMutation(ctx, string(ledger.RefAdjustment))
	s.record(ctx, "expense.update", id, input.UserID, map[string]any{"reference": updated.ReferenceNo})
	s.logger.Info("expense updated", slog.Int64("id", id))
	return updated, nil
}

// Delete reverses the expense's effects and soft-deletes the row. The
// original entry and its mirror both remain in the journal.
func (s *Service) Delete(ctx context.Context, id int64, userID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !current.IsActive {
			return fmt.Errorf("%w: expense: %s already deleted", shared.ErrValidation, current.ReferenceNo)
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
	s.record(ctx, "expense.delete", id, userID, nil)
	s.logger.Info("expense deleted", slog.Int64("id", id))
	return nil
}

// apply validates the category and account, debits the paying account and
// posts the balanced entry for the record's current values.
func (s *Service) apply(ctx context.Context, tx TxRepository, record Expense, refType ledger.ReferenceType) error {
	category, err := tx.GetCategory(ctx, record.CategoryID)
	if err != nil {
		return fmt.Errorf("expense: category %d: %w", record.CategoryID, err)
	}
	account, err := tx.Balances().GetForUpdate(ctx, record.AccountID)
	if err != nil {
		return fmt.Errorf("expense: account %d: %w", record.AccountID, err)
	}
	if !account.IsActive {
		return fmt.Errorf("%w: expense: account %q is inactive", shared.ErrValidation, account.Name)
	}
	if _, err := tx.Balances().Debit(ctx, account.ID, record.Amount); err != nil {
		return err
	}
	refID := record.ID
	_, err = tx.Poster().Post(ctx, ledger.PostingInput{
		EntryDate:     record.ExpenseDate,
		ReferenceType: refType,
		SourceModule:  SourceModule,
		ReferenceID:   &refID,
		Description:   entryDescription(record),
		UserID:        record.UserID,
		Lines: []ledger.LineInput{
			{COAID: category.COAID, Debit: record.Amount, Memo: category.Name},
			{COAID: account.COAID, Credit: record.Amount, Memo: "Paid from " + account.Name},
		},
	})
	return err
}

// reverse restores the paying account's funds and posts the mirror entry.
func (s *Service) reverse(ctx context.Context, tx TxRepository, record Expense, userID int64) error {
	if _, err := tx.Balances().Credit(ctx, record.AccountID, record.Amount); err != nil {
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
		Entity:   "expense",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now(),
	})
}

func entryDescription(record Expense) string {
	if record.Description != "" {
		return record.Description
	}
	return "Expense " + record.ReferenceNo
}
