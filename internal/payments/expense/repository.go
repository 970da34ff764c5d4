package expense

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/halisi-erp/halisi-erp/internal/categories"
	"github.com/halisi-erp/halisi-erp/internal/finacct"
	"github.com/halisi-erp/halisi-erp/internal/ledger"
	"github.com/halisi-erp/halisi-erp/internal/platform/db"
	"github.com/halisi-erp/halisi-erp/internal/refnum"
	"github.com/halisi-erp/halisi-erp/internal/shared"
)

// Repository encapsulates DB operations for expenses.
type Repository interface {
	List(ctx context.Context) ([]Expense, error)
	Get(ctx context.Context, id int64) (Expense, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository bundles the expense row store with the transaction-bound
// collaborators the orchestrator composes: balance mutation, category
// lookups, journal posting and reference numbering all share one transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Expense, error)
	Insert(ctx context.Context, e Expense) (Expense, error)
	UpdateRecord(ctx context.Context, e Expense) error
	SetActive(ctx context.Context, id int64, active bool) error
	GetCategory(ctx context.Context, id int64) (categories.Category, error)

	Balances() finacct.BalanceTx
	Poster() ledger.TxPoster
	Refs() refnum.Generator
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a pgx-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const expenseColumns = `id, reference_no, expense_date, category_id, account_id, amount, description, user_id, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context) ([]Expense, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+expenseColumns+` FROM expenses ORDER BY expense_date DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var expenses []Expense
	for rows.Next() {
		var e Expense
		if err := scanInto(rows, &e); err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Expense, error) {
	return scanExpense(r.pool.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id=$1`, id))
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{
			tx:         tx,
			balances:   finacct.NewBalanceTx(tx),
			categories: categories.NewStore(tx),
			poster:     ledger.NewTxPoster(tx),
			refs:       refnum.NewGenerator(tx),
		})
	})
}

type txRepository struct {
	tx         pgx.Tx
	balances   finacct.BalanceTx
	categories *categories.Store
	poster     ledger.TxPoster
	refs       refnum.Generator
}

func (r *txRepository) Balances() finacct.BalanceTx { return r.balances }
func (r *txRepository) Poster() ledger.TxPoster     { return r.poster }
func (r *txRepository) Refs() refnum.Generator      { return r.refs }

func (r *txRepository) GetCategory(ctx context.Context, id int64) (categories.Category, error) {
	return r.categories.GetActive(ctx, id, categories.KindExpense)
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Expense, error) {
	return scanExpense(r.tx.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) Insert(ctx context.Context, e Expense) (Expense, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO expenses (reference_no, expense_date, category_id, account_id, amount, description, user_id, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,TRUE) RETURNING id, created_at, updated_at`,
		e.ReferenceNo, e.ExpenseDate, e.CategoryID, e.AccountID, e.Amount, e.Description, e.UserID)
	e.IsActive = true
	if err := row.Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if db.IsUniqueViolation(err) {
			return Expense{}, fmt.Errorf("%w: %s", shared.ErrDuplicateReference, e.ReferenceNo)
		}
		return Expense{}, err
	}
	return e, nil
}

func (r *txRepository) UpdateRecord(ctx context.Context, e Expense) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE expenses SET expense_date=$2, category_id=$3, account_id=$4, amount=$5, description=$6, updated_at=NOW() WHERE id=$1`,
		e.ID, e.ExpenseDate, e.CategoryID, e.AccountID, e.Amount, e.Description)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) SetActive(ctx context.Context, id int64, active bool) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE expenses SET is_active=$2, updated_at=NOW() WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanExpense(row pgx.Row) (Expense, error) {
	var e Expense
	if err := scanInto(row, &e); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Expense{}, shared.ErrNotFound
		}
		return Expense{}, err
	}
	return e, nil
}

func scanInto(row pgx.Row, e *Expense) error {
	return row.Scan(&e.ID, &e.ReferenceNo, &e.ExpenseDate, &e.CategoryID, &e.AccountID, &e.Amount, &e.Description, &e.UserID, &e.IsActive, &e.CreatedAt, &e.UpdatedAt)
}
