package finacct

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/halisi-erp/halisi-erp/internal/coa"
	"github.com/halisi-erp/halisi-erp/internal/ledger"
	"github.com/halisi-erp/halisi-erp/internal/platform/db"
	"github.com/halisi-erp/halisi-erp/internal/shared"
)

// Repository encapsulates DB operations for financial accounts.
type Repository interface {
	List(ctx context.Context) ([]FinancialAccount, error)
	Get(ctx context.Context, id int64) (FinancialAccount, error)
	Balances(ctx context.Context) ([]AccountBalance, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction. Chart lookups
// are duplicated here from the coa repository so account opening can validate
// and post inside one transaction.
type TxRepository interface {
	BalanceTx

	Insert(ctx context.Context, a FinancialAccount) (FinancialAccount, error)
	SetActive(ctx context.Context, id int64, active bool) error
	CountActiveByCOA(ctx context.Context, coaID int64) (int, error)
	GetChartNode(ctx context.Context, id int64) (coa.Account, error)
	GetDefaultChartNode(ctx context.Context, t coa.AccountType) (coa.Account, error)

	Poster() ledger.TxPoster
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a pgx-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context) ([]FinancialAccount, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM financial_accounts ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []FinancialAccount
	for rows.Next() {
		var a FinancialAccount
		if err := rows.Scan(&a.ID, &a.Name, &a.AccountType, &a.COAID, &a.OpeningBalance, &a.CurrentBalance, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (FinancialAccount, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM financial_accounts WHERE id=$1`, id))
}

func (r *repository) Balances(ctx context.Context) ([]AccountBalance, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, account_type, current_balance FROM financial_accounts WHERE is_active ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var balances []AccountBalance
	for rows.Next() {
		var b AccountBalance
		if err := rows.Scan(&b.ID, &b.Name, &b.AccountType, &b.CurrentBalance); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{
			tx:        tx,
			BalanceTx: NewBalanceTx(tx),
			poster:    ledger.NewTxPoster(tx),
		})
	})
}

type txRepository struct {
	BalanceTx
	tx     pgx.Tx
	poster ledger.TxPoster
}

func (r *txRepository) Poster() ledger.TxPoster {
	return r.poster
}

func (r *txRepository) Insert(ctx context.Context, a FinancialAccount) (FinancialAccount, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO financial_accounts (name, account_type, coa_id, opening_balance, current_balance, is_active)
VALUES ($1,$2,$3,$4,$5,TRUE) RETURNING id, created_at, updated_at`,
		a.Name, a.AccountType, a.COAID, a.OpeningBalance, a.CurrentBalance)
	a.IsActive = true
	if err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return FinancialAccount{}, err
	}
	return a, nil
}

func (r *txRepository) SetActive(ctx context.Context, id int64, active bool) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE financial_accounts SET is_active=$2, updated_at=NOW() WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) CountActiveByCOA(ctx context.Context, coaID int64) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(1) FROM financial_accounts WHERE coa_id=$1 AND is_active`, coaID).Scan(&count)
	return count, err
}

func (r *txRepository) GetChartNode(ctx context.Context, id int64) (coa.Account, error) {
	return r.scanChartNode(r.tx.QueryRow(ctx,
		`SELECT id, name, type, is_default, is_active FROM chart_of_accounts WHERE id=$1`, id))
}

func (r *txRepository) GetDefaultChartNode(ctx context.Context, t coa.AccountType) (coa.Account, error) {
	return r.scanChartNode(r.tx.QueryRow(ctx,
		`SELECT id, name, type, is_default, is_active FROM chart_of_accounts WHERE type=$1 AND is_default AND is_active`, t))
}

func (r *txRepository) scanChartNode(row pgx.Row) (coa.Account, error) {
	var node coa.Account
	err := row.Scan(&node.ID, &node.Name, &node.Type, &node.IsDefault, &node.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return coa.Account{}, shared.ErrNotFound
		}
		return coa.Account{}, err
	}
	return node, nil
}
