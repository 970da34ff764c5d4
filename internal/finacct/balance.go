package finacct

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/halisi-erp/halisi-erp/internal/platform/db"
	"github.com/halisi-erp/halisi-erp/internal/shared"
)

// BalanceTx mutates cached account balances under row locks. Every mutation
// must run in the same transaction as the journal posting that explains it;
// orchestrators never write current_balance directly.
type BalanceTx interface {
	GetForUpdate(ctx context.Context, id int64) (FinancialAccount, error)
	Credit(ctx context.Context, id int64, amount float64) (FinancialAccount, error)
	Debit(ctx context.Context, id int64, amount float64) (FinancialAccount, error)
}

// NewBalanceTx binds balance mutations to a transaction.
func NewBalanceTx(conn db.DBTX) BalanceTx {
	return &balanceTx{db: conn}
}

type balanceTx struct {
	db db.DBTX
}

const accountColumns = `id, name, account_type, coa_id, opening_balance, current_balance, is_active, created_at, updated_at`

func (b *balanceTx) GetForUpdate(ctx context.Context, id int64) (FinancialAccount, error) {
	return scanAccount(b.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM financial_accounts WHERE id=$1 FOR UPDATE`, id))
}

func (b *balanceTx) Credit(ctx context.Context, id int64, amount float64) (FinancialAccount, error) {
	if amount <= 0 {
		return FinancialAccount{}, fmt.Errorf("%w: finacct: credit amount must be positive", shared.ErrValidation)
	}
	account, err := b.GetForUpdate(ctx, id)
	if err != nil {
		return FinancialAccount{}, err
	}
	account.CurrentBalance = shared.Round2(account.CurrentBalance + amount)
	if err := b.writeBalance(ctx, account.ID, account.CurrentBalance); err != nil {
		return FinancialAccount{}, err
	}
	return account, nil
}

func (b *balanceTx) Debit(ctx context.Context, id int64, amount float64) (FinancialAccount, error) {
	if amount <= 0 {
		return FinancialAccount{}, fmt.Errorf("%w: finacct: debit amount must be positive", shared.ErrValidation)
	}
	account, err := b.GetForUpdate(ctx, id)
	if err != nil {
		return FinancialAccount{}, err
	}
	if account.CurrentBalance < amount {
		return FinancialAccount{}, &InsufficientFundsError{
			AccountName: account.Name,
			Available:   account.CurrentBalance,
			Required:    amount,
		}
	}
	account.CurrentBalance = shared.Round2(account.CurrentBalance - amount)
	if err := b.writeBalance(ctx, account.ID, account.CurrentBalance); err != nil {
		return FinancialAccount{}, err
	}
	return account, nil
}

func (b *balanceTx) writeBalance(ctx context.Context, id int64, balance float64) error {
	cmd, err := b.db.Exec(ctx, `UPDATE financial_accounts SET current_balance=$2, updated_at=NOW() WHERE id=$1`, id, balance)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (FinancialAccount, error) {
	var a FinancialAccount
	err := row.Scan(&a.ID, &a.Name, &a.AccountType, &a.COAID, &a.OpeningBalance, &a.CurrentBalance, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FinancialAccount{}, shared.ErrNotFound
		}
		return FinancialAccount{}, err
	}
	return a, nil
}
