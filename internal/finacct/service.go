package finacct

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/halisi-erp/halisi-erp/internal/coa"
	"github.com/halisi-erp/halisi-erp/internal/ledger"
	"github.com/halisi-erp/halisi-erp/internal/platform/cache"
	"github.com/halisi-erp/halisi-erp/internal/shared"
)

// SourceModule tags journal entries posted by the financial accounts module.
const SourceModule = "FINACCT"

const balancesCacheKey = "finacct:balances"

// AuditPort records account lifecycle events into the audit log.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements financial account operations. Opening an account with a
// non-zero balance posts an ACCOUNT_OPENING journal entry in the same
// transaction that creates the account row.
type Service struct {
	repo   Repository
	cache  *cache.Cache
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires the financial accounts service.
func NewService(repo Repository, c *cache.Cache, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: c, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns all financial accounts.
func (s *Service) List(ctx context.Context) ([]FinancialAccount, error) {
	return s.repo.List(ctx)
}

// Get returns one financial account.
func (s *Service) Get(ctx context.Context, id int64) (FinancialAccount, error) {
	return s.repo.Get(ctx, id)
}

// Balances returns the current balance of every active account, served from
// cache when a fresh projection exists.
func (s *Service) Balances(ctx context.Context) ([]AccountBalance, error) {
	var cached []AccountBalance
	if hit, err := s.cache.Get(ctx, balancesCacheKey, &cached); err != nil {
		s.logger.Warn("balance cache read failed", "error", err)
	} else if hit {
		return cached, nil
	}
	balances, err := s.repo.Balances(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, balancesCacheKey, balances); err != nil {
		s.logger.Warn("balance cache write failed", "error", err)
	}
	return balances, nil
}

// InvalidateBalances drops the cached balance projection. Orchestrators call
// this after any transaction that moves money.
func (s *Service) InvalidateBalances(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, balancesCacheKey); err != nil {
		s.logger.Warn("balance cache invalidation failed", "error", err)
	}
}

// Open creates a financial account linked to its own chart node. A positive
// opening balance is journalled as ACCOUNT_OPENING, debiting the linked node
// and crediting the equity default, inside the same transaction.
func (s *Service) Open(ctx context.Context, input OpenInput) (FinancialAccount, error) {
	if err := input.Validate(); err != nil {
		return FinancialAccount{}, err
	}
	var opened FinancialAccount
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		node, err := tx.GetChartNode(ctx, input.COAID)
		if err != nil {
			return fmt.Errorf("finacct: chart node %d: %w", input.COAID, err)
		}
		if !node.IsActive {
			return fmt.Errorf("%w: finacct: chart node %q is inactive", shared.ErrValidation, node.Name)
		}
		if node.Type != coa.AccountTypeAsset {
			return fmt.Errorf("%w: finacct: chart node %q is %s, financial accounts link to %s nodes", shared.ErrValidation, node.Name, node.Type, coa.AccountTypeAsset)
		}
		linked, err := tx.CountActiveByCOA(ctx, input.COAID)
		if err != nil {
			return err
		}
		if linked > 0 {
			return fmt.Errorf("%w: finacct: chart node %q already linked to an active account", shared.ErrInvariantViolation, node.Name)
		}

		account := FinancialAccount{
			Name:           input.Name,
			AccountType:    AccountType(input.AccountType),
			COAID:          input.COAID,
			OpeningBalance: input.OpeningBalance,
			CurrentBalance: input.OpeningBalance,
		}
		account, err = tx.Insert(ctx, account)
		if err != nil {
			return err
		}

		if input.OpeningBalance > 0 {
			equity, err := tx.GetDefaultChartNode(ctx, coa.AccountTypeEquity)
			if err != nil {
				return fmt.Errorf("finacct: equity default node: %w", err)
			}
			refID := account.ID
			_, err = tx.Poster().Post(ctx, ledger.PostingInput{
				EntryDate:     s.now(),
				ReferenceType: ledger.RefAccountOpening,
				SourceModule:  SourceModule,
				ReferenceID:   &refID,
				Description:   fmt.Sprintf("Opening balance for %s", account.Name),
				UserID:        userIDOrZero(input.UserID),
				Lines: []ledger.LineInput{
					{COAID: account.COAID, Debit: input.OpeningBalance, Memo: "Opening balance"},
					{COAID: equity.ID, Credit: input.OpeningBalance, Memo: "Opening balance equity"},
				},
			})
			if err != nil {
				return err
			}
		}
		opened = account
		return nil
	})
	if err != nil {
		return FinancialAccount{}, err
	}
	s.InvalidateBalances(ctx)
	s.record(ctx, "finacct.open", opened.ID, map[string]any{"name": opened.Name, "openingBalance": opened.OpeningBalance})
	return opened, nil
}

// Deactivate soft-disables an account. Accounts still holding funds stay
// active so their balance remains visible and reconcilable.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !account.IsActive {
			return fmt.Errorf("%w: finacct: account %q already inactive", shared.ErrValidation, account.Name)
		}
		if account.CurrentBalance != 0 {
			return fmt.Errorf("%w: finacct: account %q holds %s", shared.ErrInvariantViolation, account.Name, shared.FormatAmount(account.CurrentBalance))
		}
		return tx.SetActive(ctx, id, false)
	})
	if err != nil {
		return err
	}
	s.InvalidateBalances(ctx)
	s.record(ctx, "finacct.deactivate", id, nil)
	return nil
}

func (s *Service) record(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "financial_account",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now(),
	})
}

func userIDOrZero(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}
