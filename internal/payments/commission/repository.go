package commission

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/halisi-erp/halisi-erp/internal/coa"
	"github.com/halisi-erp/halisi-erp/internal/commissions"
	"github.com/halisi-erp/halisi-erp/internal/finacct"
	"github.com/halisi-erp/halisi-erp/internal/ledger"
	"github.com/halisi-erp/halisi-erp/internal/platform/db"
	"github.com/halisi-erp/halisi-erp/internal/refnum"
	"github.com/halisi-erp/halisi-erp/internal/shared"
)

// Repository encapsulates DB operations for commission payments.
type Repository interface {
	List(ctx context.Context) ([]Payment, error)
	Get(ctx context.Context, id int64) (Payment, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository bundles the payment row store with the transaction-bound
// collaborators the orchestrator composes.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Payment, error)
	Insert(ctx context.Context, p Payment) (Payment, error)
	UpdateRecord(ctx context.Context, p Payment) error
	SetActive(ctx context.Context, id int64, active bool) error
	InsertItems(ctx context.Context, paymentID int64, items []PaymentItem) error
	ListItems(ctx context.Context, paymentID int64) ([]PaymentItem, error)
	DeleteItems(ctx context.Context, paymentID int64) error
	ExpenseNode(ctx context.Context) (coa.Account, error)

	Commissions() commissions.Tx
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

const paymentColumns = `id, reference_no, payment_date, commission_id, account_id, total_amount, description, user_id, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM commission_payments ORDER BY payment_date DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := scanInto(rows, &p); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM commission_payments WHERE id=$1`, id))
	if err != nil {
		return Payment{}, err
	}
	p.Items, err = listItems(ctx, r.pool, id)
	if err != nil {
		return Payment{}, err
	}
	return p, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{
			tx:          tx,
			commissions: commissions.NewTx(tx),
			balances:    finacct.NewBalanceTx(tx),
			poster:      ledger.NewTxPoster(tx),
			refs:        refnum.NewGenerator(tx),
		})
	})
}

type txRepository struct {
	tx          pgx.Tx
	commissions commissions.Tx
	balances    finacct.BalanceTx
	poster      ledger.TxPoster
	refs        refnum.Generator
}

func (r *txRepository) Commissions() commissions.Tx { return r.commissions }
func (r *txRepository) Balances() finacct.BalanceTx { return r.balances }
func (r *txRepository) Poster() ledger.TxPoster     { return r.poster }
func (r *txRepository) Refs() refnum.Generator      { return r.refs }

// ExpenseNode returns the active default expense node commission payouts
// post against.
func (r *txRepository) ExpenseNode(ctx context.Context) (coa.Account, error) {
	var node coa.Account
	err := r.tx.QueryRow(ctx, `SELECT id, name, type FROM chart_of_accounts WHERE type=$1 AND is_default AND is_active`, coa.AccountTypeExpense).
		Scan(&node.ID, &node.Name, &node.Type)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return coa.Account{}, shared.ErrNotFound
		}
		return coa.Account{}, err
	}
	return node, nil
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Payment, error) {
	return scanPayment(r.tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM commission_payments WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) Insert(ctx context.Context, p Payment) (Payment, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO commission_payments (reference_no, payment_date, commission_id, account_id, total_amount, description, user_id, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,TRUE) RETURNING id, created_at, updated_at`,
		p.ReferenceNo, p.PaymentDate, p.CommissionID, p.AccountID, p.TotalAmount, p.Description, p.UserID)
	p.IsActive = true
	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if db.IsUniqueViolation(err) {
			return Payment{}, fmt.Errorf("%w: %s", shared.ErrDuplicateReference, p.ReferenceNo)
		}
		return Payment{}, err
	}
	return p, nil
}

func (r *txRepository) UpdateRecord(ctx context.Context, p Payment) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE commission_payments SET payment_date=$2, commission_id=$3, account_id=$4, total_amount=$5, description=$6, updated_at=NOW() WHERE id=$1`,
		p.ID, p.PaymentDate, p.CommissionID, p.AccountID, p.TotalAmount, p.Description)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) SetActive(ctx context.Context, id int64, active bool) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE commission_payments SET is_active=$2, updated_at=NOW() WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) InsertItems(ctx context.Context, paymentID int64, items []PaymentItem) error {
	for _, item := range items {
		_, err := r.tx.Exec(ctx, `INSERT INTO commission_payment_items (payment_id, recipient_id, amount) VALUES ($1,$2,$3)`,
			paymentID, item.RecipientID, item.Amount)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) ListItems(ctx context.Context, paymentID int64) ([]PaymentItem, error) {
	return listItems(ctx, r.tx, paymentID)
}

func (r *txRepository) DeleteItems(ctx context.Context, paymentID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM commission_payment_items WHERE payment_id=$1`, paymentID)
	return err
}

func listItems(ctx context.Context, conn db.DBTX, paymentID int64) ([]PaymentItem, error) {
	rows, err := conn.Query(ctx, `SELECT id, payment_id, recipient_id, amount FROM commission_payment_items WHERE payment_id=$1 ORDER BY id ASC`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PaymentItem
	for rows.Next() {
		var item PaymentItem
		if err := rows.Scan(&item.ID, &item.PaymentID, &item.RecipientID, &item.Amount); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	if err := scanInto(row, &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, shared.ErrNotFound
		}
		return Payment{}, err
	}
	return p, nil
}

func scanInto(row pgx.Row, p *Payment) error {
	return row.Scan(&p.ID, &p.ReferenceNo, &p.PaymentDate, &p.CommissionID, &p.AccountID, &p.TotalAmount, &p.Description, &p.UserID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
}
