package coa

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/halisi-erp/halisi-erp/internal/platform/db"
	"github.com/halisi-erp/halisi-erp/internal/shared"
)

// Repository encapsulates DB operations for the chart of accounts.
type Repository interface {
	List(ctx context.Context) ([]Account, error)
	Get(ctx context.Context, id int64) (Account, error)
	GetDefault(ctx context.Context, t AccountType) (Account, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Account, error)
	GetByName(ctx context.Context, name string) (Account, error)
	Insert(ctx context.Context, a Account) (Account, error)
	UpdateNode(ctx context.Context, a Account) error
	UpdateDepthPath(ctx context.Context, id int64, depth int, path string) error
	ClearDefault(ctx context.Context, t AccountType, exceptID int64) error
	ListAll(ctx context.Context) ([]Account, error)
	HasActiveChildren(ctx context.Context, id int64) (bool, error)
	CountActiveLinkedAccounts(ctx context.Context, id int64) (int, error)
	CountJournalLines(ctx context.Context, id int64) (int, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

const accountColumns = `id, code, name, type, parent_id, depth, path, is_default, is_active, created_at, updated_at`

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a pgx-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM chart_of_accounts ORDER BY path ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAccounts(rows)
}

func (r *repository) Get(ctx context.Context, id int64) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM chart_of_accounts WHERE id=$1`, id))
}

func (r *repository) GetDefault(ctx context.Context, t AccountType) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM chart_of_accounts WHERE type=$1 AND is_default AND is_active`, t))
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Account, error) {
	return scanAccount(r.tx.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM chart_of_accounts WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) GetByName(ctx context.Context, name string) (Account, error) {
	return scanAccount(r.tx.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM chart_of_accounts WHERE name=$1`, name))
}

func (r *txRepository) Insert(ctx context.Context, a Account) (Account, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO chart_of_accounts (code, name, type, parent_id, depth, path, is_default, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,TRUE) RETURNING id, created_at, updated_at`,
		a.Code, a.Name, a.Type, a.ParentID, a.Depth, a.Path, a.IsDefault)
	a.IsActive = true
	if err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) UpdateNode(ctx context.Context, a Account) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE chart_of_accounts SET name=$2, parent_id=$3, depth=$4, path=$5, is_default=$6, updated_at=NOW() WHERE id=$1`,
		a.ID, a.Name, a.ParentID, a.Depth, a.Path, a.IsDefault)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) UpdateDepthPath(ctx context.Context, id int64, depth int, path string) error {
	_, err := r.tx.Exec(ctx, `UPDATE chart_of_accounts SET depth=$2, path=$3, updated_at=NOW() WHERE id=$1`, id, depth, path)
	return err
}

func (r *txRepository) ClearDefault(ctx context.Context, t AccountType, exceptID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE chart_of_accounts SET is_default=FALSE, updated_at=NOW() WHERE type=$1 AND is_default AND id<>$2`, t, exceptID)
	return err
}

func (r *txRepository) ListAll(ctx context.Context) ([]Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+accountColumns+` FROM chart_of_accounts ORDER BY depth ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAccounts(rows)
}

func (r *txRepository) HasActiveChildren(ctx context.Context, id int64) (bool, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(1) FROM chart_of_accounts WHERE parent_id=$1 AND is_active`, id).Scan(&count)
	return count > 0, err
}

func (r *txRepository) CountActiveLinkedAccounts(ctx context.Context, id int64) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(1) FROM financial_accounts WHERE coa_id=$1 AND is_active`, id).Scan(&count)
	return count, err
}

func (r *txRepository) CountJournalLines(ctx context.Context, id int64) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(1) FROM journal_lines WHERE coa_id=$1`, id).Scan(&count)
	return count, err
}

func (r *txRepository) SetActive(ctx context.Context, id int64, active bool) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE chart_of_accounts SET is_active=$2, updated_at=NOW() WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.Depth, &a.Path, &a.IsDefault, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func scanAccounts(rows pgx.Rows) ([]Account, error) {
	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.Depth, &a.Path, &a.IsDefault, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
