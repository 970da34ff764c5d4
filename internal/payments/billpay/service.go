package billpay

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

// SourceModule tags journal entries posted by the bill payment orchestrator.
const SourceModule = "BILLPAY"

// CacheInvalidator drops derived balance projections after money moves.
type CacheInvalidator interface {
	InvalidateBalances(ctx context.Context)
}

// AuditPort records payment lifecycle events into the audit log.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates bill payments. One payment settles several purchases
// and accompanying expenses from several funding accounts; each account is
// debited exactly once with its summed allocation and the whole event is
// summarized in a single journal entry.
type Service struct {
	repo    Repository
	caches  CacheInvalidator
	audit   AuditPort
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService wires the bill payment orchestrator.
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

// List returns all bill payments, newest first.
func (s *Service) List(ctx context.Context) ([]BillPayment, error) {
	return s.repo.List(ctx)
}

// Get returns one bill payment with its items, expenses and allocations.
func (s *Service) Get(ctx context.Context, id int64) (BillPayment, error) {
	return s.repo.Get(ctx, id)
}

// Create records a bill payment.
func (s *Service) Create(ctx context.Context, input Input) (BillPayment, error) {
	total, err := input.Validate()
	if err != nil {
		return BillPayment{}, err
	}
	var created BillPayment
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		refNo, err := tx.Refs().Next(ctx, refnum.PrefixBillPay, input.PaymentDate)
		if err != nil {
			return err
		}
		record := BillPayment{
			ReferenceNo: refNo,
			PaymentDate: input.PaymentDate,
			TotalAmount: total,
			Description: input.Description,
			UserID:      input.UserID,
		}
		record, err = tx.Insert(ctx, record)
		if err != nil {
			return err
		}
		if err := s.insertDetails(ctx, tx, &record, input); err != nil {
			return err
		}
		if err := s.apply(ctx, tx, record, ledger.RefBillPayment); err != nil {
			return err
		}
		created = record
		return nil
	})
	if err != nil {
		return BillPayment{}, err
	}
	s.afterMutation(ctx, string(ledger.RefBillPayment))
	s.record(ctx, "billpay.create", created.ID, created.UserID, map[string]any{"reference": created.ReferenceNo})
	s.logger.Info("bill payment recorded", slog.Int64("id", created.ID), slog.String("reference", created.ReferenceNo))
	return created, nil
}

// Update edits an applied bill payment by reversing it, replacing its detail
// rows and reapplying with the new values. The journal receives two
// adjustment entries; the row keeps its reference number.
func (s *Service) Update(ctx context.Context, id int64, input Input) (BillPayment, error) {
	total, err := input.Validate()
	if err != nil {
		return BillPayment{}, err
	}
	var updated BillPayment
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !current.IsActive {
			return fmt.Errorf("%w: billpay: %s is deleted", shared.ErrValidation, current.ReferenceNo)
		}
		if err := s.reverse(ctx, tx, current, input.UserID); err != nil {
			return err
		}
		if err := tx.DeleteDetails(ctx, id); err != nil {
			return err
		}
		next := current
		next.PaymentDate = input.PaymentDate
		next.TotalAmount = total
		next.Description = input.Description
		if err := tx.UpdateRecord(ctx, next); err != nil {
			return err
		}
		if err := s.insertDetails(ctx, tx, &next, input); err != nil {
			return err
		}
		if err := s.apply(ctx, tx, next, ledger.RefAdjustment); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return BillPayment{}, err
	}
	s.afterMutation(ctx, string(ledger.RefAdjustment))
	s.record(ctx, "billpay.update", id, input.UserID, map[string]any{"reference": updated.ReferenceNo})
	s.logger.Info("bill payment updated", slog.Int64("id", id))
	return updated, nil
}

// Delete reverses the payment's effects, removes its detail rows and
// soft-deletes the payment.
func (s *Service) Delete(ctx context.Context, id int64, userID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !current.IsActive {
			return fmt.Errorf("%w: billpay: %s already deleted", shared.ErrValidation, current.ReferenceNo)
		}
		if err := s.reverse(ctx, tx, current, userID); err != nil {
			return err
		}
		if err := tx.DeleteDetails(ctx, id); err != nil {
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
	s.record(ctx, "billpay.delete", id, userID, nil)
	s.logger.Info("bill payment deleted", slog.Int64("id", id))
	return nil
}

func (s *Service) insertDetails(ctx context.Context, tx TxRepository, record *BillPayment, input Input) error {
	record.Items = record.Items[:0]
	for _, item := range input.Items {
		record.Items = append(record.Items, PaymentItem{PaymentID: record.ID, PurchaseID: item.PurchaseID, Amount: item.Amount})
	}
	record.Expenses = record.Expenses[:0]
	for _, exp := range input.Expenses {
		record.Expenses = append(record.Expenses, PaymentExpense{PaymentID: record.ID, CategoryID: exp.CategoryID, Amount: exp.Amount, Memo: exp.Memo})
	}
	record.Accounts = record.Accounts[:0]
	for _, alloc := range input.Accounts {
		record.Accounts = append(record.Accounts, PaymentAllocation{PaymentID: record.ID, AccountID: alloc.AccountID, Amount: alloc.Amount})
	}
	if err := tx.InsertItems(ctx, record.ID, record.Items); err != nil {
		return err
	}
	if err := tx.InsertExpenses(ctx, record.ID, record.Expenses); err != nil {
		return err
	}
	return tx.InsertAllocations(ctx, record.ID, record.Accounts)
}

// apply settles the purchases, debits each funding account once and posts
// the summary entry: payables debited for the purchase total, each expense
// category debited, each funding account's node credited.
func (s *Service) apply(ctx context.Context, tx TxRepository, record BillPayment, refType ledger.ReferenceType) error {
	var purchaseTotal float64
	for _, item := range record.Items {
		if _, err := tx.Purchases().ApplyPayment(ctx, item.PurchaseID, item.Amount); err != nil {
			return err
		}
		purchaseTotal += item.Amount
	}
	purchaseTotal = shared.Round2(purchaseTotal)

	lines := make([]ledger.LineInput, 0, len(record.Expenses)+len(record.Accounts)+1)
	payable, err := tx.PayableNode(ctx)
	if err != nil {
		return fmt.Errorf("billpay: payables node: %w", err)
	}
	lines = append(lines, ledger.LineInput{COAID: payable.ID, Debit: purchaseTotal, Memo: "Purchases settled"})

	for _, exp := range record.Expenses {
		category, err := tx.GetCategory(ctx, exp.CategoryID)
		if err != nil {
			return fmt.Errorf("billpay: category %d: %w", exp.CategoryID, err)
		}
		memo := exp.Memo
		if memo == "" {
			memo = category.Name
		}
		lines = append(lines, ledger.LineInput{COAID: category.COAID, Debit: exp.Amount, Memo: memo})
	}

	for _, alloc := range record.Accounts {
		account, err := tx.Balances().GetForUpdate(ctx, alloc.AccountID)
		if err != nil {
			return fmt.Errorf("billpay: account %d: %w", alloc.AccountID, err)
		}
		if !account.IsActive {
			return fmt.Errorf("%w: billpay: account %q is inactive", shared.ErrValidation, account.Name)
		}
		if _, err := tx.Balances().Debit(ctx, account.ID, alloc.Amount); err != nil {
			return err
		}
		lines = append(lines, ledger.LineInput{COAID: account.COAID, Credit: alloc.Amount, Memo: "Paid from " + account.Name})
	}

	refID := record.ID
	_, err = tx.Poster().Post(ctx, ledger.PostingInput{
		EntryDate:     record.PaymentDate,
		ReferenceType: refType,
		SourceModule:  SourceModule,
		ReferenceID:   &refID,
		Description:   entryDescription(record),
		UserID:        record.UserID,
		Lines:         lines,
	})
	return err
}

// reverse unwinds the purchase settlements, restores each funding account
// and posts the mirror entry. Detail rows are read back rather than taken
// from the caller so the reversal always matches what was applied.
func (s *Service) reverse(ctx context.Context, tx TxRepository, record BillPayment, userID int64) error {
	items, err := tx.ListItems(ctx, record.ID)
	if err != nil {
		return err
	}
	for _, item := range items {
		if _, err := tx.Purchases().ApplyPayment(ctx, item.PurchaseID, -item.Amount); err != nil {
			return err
		}
	}
	allocations, err := tx.ListAllocations(ctx, record.ID)
	if err != nil {
		return err
	}
	for _, alloc := range allocations {
		if _, err := tx.Balances().Credit(ctx, alloc.AccountID, alloc.Amount); err != nil {
			return err
		}
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
		Entity:   "bill_payment",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now(),
	})
}

func entryDescription(record BillPayment) string {
	if record.Description != "" {
		return record.Description
	}
	return "Bill payment " + record.ReferenceNo
}
