package income

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/halisi-erp/halisi-erp/internal/coa"
	"github.com/halisi-erp/halisi-erp/internal/finacct"
	"github.com/halisi-erp/halisi-erp/internal/ledger"
	"github.com/halisi-erp/halisi-erp/internal/platform/db"
	"github.com/halisi-erp/halisi-erp/internal/refnum"
	"github.com/halisi-erp/halisi-erp/internal/sales"
	"github.com/halisi-erp/halisi-erp/internal/shared"
)

// Repository encapsulates DB operations for income receipts.
type Repository interface {
	List(ctx context.Context) ([]Income, error)
	Get(ctx context.Context, id int64) (Income, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository bundles the income row store with the transaction-bound
// collaborators the orchestrator composes.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Income, error)
	Insert(ctx context.Context, rec Income) (Income, error)
	UpdateRecord(ctx context.Context, rec Income) error
	SetActive(ctx context.Context, id int64, active bool) error
	ReceivableNode(ctx context.Context) (coa.Account, error)

	Sales() sales.Tx
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

const incomeColumns = `id, reference_no, receipt_date, sale_id, account_id, amount, description, user_id, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context) ([]Income, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+incomeColumns+` FROM incomes ORDER BY receipt_date DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []Income
	for rows.Next() {
		var rec Income
		if err := scanInto(rows, &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Income, error) {
	return scanIncome(r.pool.QueryRow(ctx, `SELECT `+incomeColumns+` FROM incomes WHERE id=$1`, id))
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{
			tx:       tx,
			sales:    sales.NewTx(tx),
			balances: finacct.NewBalanceTx(tx),
			poster:   ledger.NewTxPoster(tx),
			refs:     refnum.NewGenerator(tx),
		})
	})
}

type txRepository struct {
	tx       pgx.Tx
	sales    sales.Tx
	balances finacct.BalanceTx
	poster   ledger.TxPoster
	refs     refnum.Generator
}

func (r *txRepository) Sales() sales.Tx             { return r.sales }
func (r *txRepository) Balances() finacct.BalanceTx { return r.balances }
func (r *txRepository) Poster() ledger.TxPoster     { return r.poster }
func (r *txRepository) Refs() refnum.Generator      { return r.refs }

// ReceivableNode returns the active default asset node receivables post
// against, queried in-tx so the posting sees a consistent chart.
func (r *txRepository) ReceivableNode(ctx context.Context) (coa.Account, error) {
	var node coa.Account
	err := r.tx.QueryRow(ctx, `SELECT id, name, type FROM chart_of_accounts WHERE type=$1 AND is_default AND is_active`, coa.AccountTypeAsset).
		Scan(&node.ID, &node.Name, &node.Type)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return coa.Account{}, shared.ErrNotFound
		}
		return coa.Account{}, err
	}
	return node, nil
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Income, error) {
	return scanIncome(r.tx.QueryRow(ctx, `SELECT `+incomeColumns+` FROM incomes WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) Insert(ctx context.Context, rec Income) (Income, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO incomes (reference_no, receipt_date, sale_id, account_id, amount, description, user_id, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,TRUE) RETURNING id, created_at, updated_at`,
		rec.ReferenceNo, rec.ReceiptDate, rec.SaleID, rec.AccountID, rec.Amount, rec.Description, rec.UserID)
	rec.IsActive = true
	if err := row.Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if db.IsUniqueViolation(err) {
			return Income{}, fmt.Errorf("%w: %s", shared.ErrDuplicateReference, rec.ReferenceNo)
		}
		return Income{}, err
	}
	return rec, nil
}

func (r *txRepository) UpdateRecord(ctx context.Context, rec Income) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE incomes SET receipt_date=$2, sale_id=$3, account_id=$4, amount=$5, description=$6, updated_at=NOW() WHERE id=$1`,
		rec.ID, rec.ReceiptDate, rec.SaleID, rec.AccountID, rec.Amount, rec.Description)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) SetActive(ctx context.Context, id int64, active bool) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE incomes SET is_active=$2, updated_at=NOW() WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanIncome(row pgx.Row) (Income, error) {
	var rec Income
	if err := scanInto(row, &rec); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Income{}, shared.ErrNotFound
		}
		return Income{}, err
	}
	return rec, nil
}

func scanInto(row pgx.Row, rec *Income) error {
	return row.Scan(&rec.ID, &rec.ReferenceNo, &rec.ReceiptDate, &rec.SaleID, &rec.AccountID, &rec.Amount, &rec.Description, &rec.UserID, &rec.IsActive, &rec.CreatedAt, &rec.UpdatedAt)
}
