package commission

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

// SourceModule tags journal entries posted by the commission orchestrator.
const SourceModule = "COMMISSION"

// CacheInvalidator drops derived balance projections after money moves.
type CacheInvalidator interface {
	InvalidateBalances(ctx context.Context)
}

// AuditPort records payment lifecycle events into the audit log.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates commission payouts. A payout settles recipient shares
// of a commission, debits the paying account once with the summed total, and
// posts one entry debiting the commission expense node.
type Service struct {
	repo    Repository
	caches  CacheInvalidator
	audit   AuditPort
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService wires the commission orchestrator.
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

// List returns all commission payments, newest first.
func (s *Service) List(ctx context.Context) ([]Payment, error) {
	return s.repo.List(ctx)
}

// Get returns one commission payment with its allocations.
func (s *Service) Get(ctx context.Context, id int64) (Payment, error) {
	return s.repo.Get(ctx, id)
}

// Create records a payout distributing amounts across commission recipients.
func (s *Service) Create(ctx context.Context, input Input) (Payment, error) {
	total, err := input.Validate()
	if err != nil {
		return Payment{}, err
	}
	var created Payment
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		refNo, err := tx.Refs().Next(ctx, refnum.PrefixCommission, input.PaymentDate)
		if err != nil {
			return err
		}
		record := Payment{
			ReferenceNo:  refNo,
			PaymentDate:  input.PaymentDate,
			CommissionID: input.CommissionID,
			AccountID:    input.AccountID,
			TotalAmount:  total,
			Description:  input.Description,
			UserID:       input.UserID,
		}
		record, err = tx.Insert(ctx, record)
		if err != nil {
			return err
		}
		items := make([]PaymentItem, 0, len(input.Items))
		for _, item := range input.Items {
			items = append(items, PaymentItem{PaymentID: record.ID, RecipientID: item.RecipientID, Amount: item.Amount})
		}
		if err := tx.InsertItems(ctx, record.ID, items); err != nil {
			return err
		}
		record.Items = items
		if err := s.apply(ctx, tx, record, ledger.RefCommissionPayment); err != nil {
			return err
		}
		created = record
		return nil
	})
	if err != nil {
		return Payment{}, err
	}
	s.afterMutation(ctx, string(ledger.RefCommissionPayment))
	s.record(ctx, "commission.create", created.ID, created.UserID, map[string]any{"reference": created.ReferenceNo})
	s.logger.Info("commission payout recorded", slog.Int64("id", created.ID), slog.String("reference", created.ReferenceNo))
	return created, nil
}

// Update edits an applied payout by reversing it, replacing the allocation
// rows and reapplying with the new values.
func (s *Service) Update(ctx context.Context, id int64, input Input) (Payment, error) {
	total, err := input.Validate()
	if err != nil {
		return Payment{}, err
	}
	var updated Payment
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !current.IsActive {
			return fmt.Errorf("%w: commission: %s is deleted", shared.ErrValidation, current.ReferenceNo)
		}
		if err := s.reverse(ctx, tx, current, input.UserID); err != nil {
			return err
		}
		if err := tx.DeleteItems(ctx, id); err != nil {
			return err
		}
		next := current
		next.PaymentDate = input.PaymentDate
		next.CommissionID = input.CommissionID
		next.AccountID = input.AccountID
		next.TotalAmount = total
		next.Description = input.Description
		if err := tx.UpdateRecord(ctx, next); err != nil {
			return err
		}
		items := make([]PaymentItem, 0, len(input.Items))
		for _, item := range input.Items {
			items = append(items, PaymentItem{PaymentID: id, RecipientID: item.RecipientID, Amount: item.Amount})
		}
		if err := tx.InsertItems(ctx, id, items); err != nil {
			return err
		}
		next.Items = items
		if err := s.apply(ctx, tx, next, ledger.RefAdjustment); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return Payment{}, err
	}
	s.afterMutation(ctx, string(ledger.RefAdjustment))
	s.record(ctx, "commission.update", id, input.UserID, map[string]any{"reference": updated.ReferenceNo})
	s.logger.Info("commission payout updated", slog.Int64("id", id))
	return updated, nil
}

// Delete reverses the payout's effects, removes its allocations and
// soft-deletes the row.
func (s *Service) Delete(ctx context.Context, id int64, userID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !current.IsActive {
			return fmt.Errorf("%w: commission: %s already deleted", shared.ErrValidation, current.ReferenceNo)
		}
		if err := s.reverse(ctx, tx, current, userID); err != nil {
			return err
		}
		if err := tx.DeleteItems(ctx, id); err != nil {
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
	s.record(ctx, "commission.delete", id, userID, nil)
	s.logger.Info("commission payout deleted", slog.Int64("id", id))
	return nil
}

// apply settles each recipient share, debits the paying account once with
// the summed total and posts the entry.
func (s *Service) apply(ctx context.Context, tx TxRepository, record Payment, refType ledger.ReferenceType) error {
	comm, err := tx.Commissions().GetForUpdate(ctx, record.CommissionID)
	if err != nil {
		return fmt.Errorf("commission: commission %d: %w", record.CommissionID, err)
	}
	if !comm.IsActive {
		return fmt.Errorf("%w: commission: %s is inactive", shared.ErrValidation, comm.ReferenceNo)
	}
	for _, item := range record.Items {
		recipient, err := tx.Commissions().GetRecipientForUpdate(ctx, item.RecipientID)
		if err != nil {
			return fmt.Errorf("commission: recipient %d: %w", item.RecipientID, err)
		}
		if recipient.CommissionID != comm.ID {
			return fmt.Errorf("%w: commission: recipient %s belongs to another commission", shared.ErrValidation, recipient.Name)
		}
		if _, err := tx.Commissions().ApplyRecipientPayment(ctx, item.RecipientID, item.Amount); err != nil {
			return err
		}
	}
	paidTotal, err := tx.Commissions().SumPaid(ctx, comm.ID)
	if err != nil {
		return err
	}
	if paidTotal > comm.TotalPayable+0.001 {
		return fmt.Errorf("%w: commission: payouts of %s exceed total payable %s on %s",
			shared.ErrValidation, shared.FormatAmount(paidTotal), shared.FormatAmount(comm.TotalPayable), comm.ReferenceNo)
	}
	account, err := tx.Balances().GetForUpdate(ctx, record.AccountID)
	if err != nil {
		return fmt.Errorf("commission: account %d: %w", record.AccountID, err)
	}
	if !account.IsActive {
		return fmt.Errorf("%w: commission: account %q is inactive", shared.ErrValidation, account.Name)
	}
	if _, err := tx.Balances().Debit(ctx, account.ID, record.TotalAmount); err != nil {
		return err
	}
	expenseNode, err := tx.ExpenseNode(ctx)
	if err != nil {
		return fmt.Errorf("commission: expense node: %w", err)
	}
	refID := record.ID
	_, err = tx.Poster().Post(ctx, ledger.PostingInput{
		EntryDate:     record.PaymentDate,
		ReferenceType: refType,
		SourceModule:  SourceModule,
		ReferenceID:   &refID,
		Description:   entryDescription(record, comm.ReferenceNo),
		UserID:        record.UserID,
		Lines: []ledger.LineInput{
			{COAID: expenseNode.ID, Debit: record.TotalAmount, Memo: "Commission " + comm.ReferenceNo},
			{COAID: account.COAID, Credit: record.TotalAmount, Memo: "Paid from " + account.Name},
		},
	})
	return err
}

// reverse unwinds each recipient share, restores the paying account and
// posts the mirror entry.
func (s *Service) reverse(ctx context.Context, tx TxRepository, record Payment, userID int64) error {
	items, err := tx.ListItems(ctx, record.ID)
	if err != nil {
		return err
	}
	for _, item := range items {
		if _, err := tx.Commissions().ApplyRecipientPayment(ctx, item.RecipientID, -item.Amount); err != nil {
			return err
		}
	}
	if _, err := tx.Balances().Credit(ctx, record.AccountID, record.TotalAmount); err != nil {
		return err
	}
	_, err = tx.Poster().ReverseLatest(ctx, ledger.ReversalInput{
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
		Entity:   "commission_payment",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now(),
	})
}

func entryDescription(record Payment, commissionRef string) string {
	if record.Description != "" {
		return record.Description
	}
	return "Commission payout " + commissionRef
}
