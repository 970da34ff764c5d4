package billpay

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/halisi-erp/halisi-erp/internal/categories"
	"github.com/halisi-erp/halisi-erp/internal/coa"
	"github.com/halisi-erp/halisi-erp/internal/finacct"
	"github.com/halisi-erp/halisi-erp/internal/ledger"
	"github.com/halisi-erp/halisi-erp/internal/platform/db"
	"github.com/halisi-erp/halisi-erp/internal/purchases"
	"github.com/halisi-erp/halisi-erp/internal/refnum"
	"github.com/halisi-erp/halisi-erp/internal/shared"
)

// Repository encapsulates DB operations for bill payments.
type Repository interface {
	List(ctx context.Context) ([]BillPayment, error)
	Get(ctx context.Context, id int64) (BillPayment, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository bundles the bill payment row stores with the transaction-bound
// collaborators the orchestrator composes.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (BillPayment, error)
	Insert(ctx context.Context, p BillPayment) (BillPayment, error)
	UpdateRecord(ctx context.Context, p BillPayment) error
	SetActive(ctx context.Context, id int64, active bool) error

	InsertItems(ctx context.Context, paymentID int64, items []PaymentItem) error
	InsertExpenses(ctx context.Context, paymentID int64, expenses []PaymentExpense) error
	InsertAllocations(ctx context.Context, paymentID int64, allocations []PaymentAllocation) error
	ListItems(ctx context.Context, paymentID int64) ([]PaymentItem, error)
	ListExpenses(ctx context.Context, paymentID int64) ([]PaymentExpense, error)
	ListAllocations(ctx context.Context, paymentID int64) ([]PaymentAllocation, error)
	DeleteDetails(ctx context.Context, paymentID int64) error

	GetCategory(ctx context.Context, id int64) (categories.Category, error)
	PayableNode(ctx context.Context) (coa.Account, error)

	Purchases() purchases.Tx
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

const billPaymentColumns = `id, reference_no, payment_date, total_amount, description, user_id, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context) ([]BillPayment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+billPaymentColumns+` FROM bill_payments ORDER BY payment_date DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []BillPayment
	for rows.Next() {
		var p BillPayment
		if err := scanInto(rows, &p); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (BillPayment, error) {
	p, err := scanBillPayment(r.pool.QueryRow(ctx, `SELECT `+billPaymentColumns+` FROM bill_payments WHERE id=$1`, id))
	if err != nil {
		return BillPayment{}, err
	}
	if p.Items, err = listItems(ctx, r.pool, id); err != nil {
		return BillPayment{}, err
	}
	if p.Expenses, err = listExpenses(ctx, r.pool, id); err != nil {
		return BillPayment{}, err
	}
	if p.Accounts, err = listAllocations(ctx, r.pool, id); err != nil {
		return BillPayment{}, err
	}
	return p, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{
			tx:         tx,
			purchases:  purchases.NewTx(tx),
			balances:   finacct.NewBalanceTx(tx),
			categories: categories.NewStore(tx),
			poster:     ledger.NewTxPoster(tx),
			refs:       refnum.NewGenerator(tx),
		})
	})
}

type txRepository struct {
	tx         pgx.Tx
	purchases  purchases.Tx
	balances   finacct.BalanceTx
	categories *categories.Store
	poster     ledger.TxPoster
	refs       refnum.Generator
}

func (r *txRepository) Purchases() purchases.Tx     { return r.purchases }
func (r *txRepository) Balances() finacct.BalanceTx { return r.balances }
func (r *txRepository) Poster() ledger.TxPoster     { return r.poster }
func (r *txRepository) Refs() refnum.Generator      { return r.refs }

func (r *txRepository) GetCategory(ctx context.Context, id int64) (categories.Category, error) {
	return r.categories.GetActive(ctx, id, categories.KindExpense)
}

// PayableNode returns the active default liability node purchase debts post
// against.
func (r *txRepository) PayableNode(ctx context.Context) (coa.Account, error) {
	var node coa.Account
	err := r.tx.QueryRow(ctx, `SELECT id, name, type FROM chart_of_accounts WHERE type=$1 AND is_default AND is_active`, coa.AccountTypeLiability).
		Scan(&node.ID, &node.Name, &node.Type)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return coa.Account{}, shared.ErrNotFound
		}
		return coa.Account{}, err
	}
	return node, nil
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (BillPayment, error) {
	return scanBillPayment(r.tx.QueryRow(ctx, `SELECT `+billPaymentColumns+` FROM bill_payments WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) Insert(ctx context.Context, p BillPayment) (BillPayment, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO bill_payments (reference_no, payment_date, total_amount, description, user_id, is_active)
VALUES ($1,$2,$3,$4,$5,TRUE) RETURNING id, created_at, updated_at`,
		p.ReferenceNo, p.PaymentDate, p.TotalAmount, p.Description, p.UserID)
	p.IsActive = true
	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if db.IsUniqueViolation(err) {
			return BillPayment{}, fmt.Errorf("%w: %s", shared.ErrDuplicateReference, p.ReferenceNo)
		}
		return BillPayment{}, err
	}
	return p, nil
}

func (r *txRepository) UpdateRecord(ctx context.Context, p BillPayment) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE bill_payments SET payment_date=$2, total_amount=$3, description=$4, updated_at=NOW() WHERE id=$1`,
		p.ID, p.PaymentDate, p.TotalAmount, p.Description)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) SetActive(ctx context.Context, id int64, active bool) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE bill_payments SET is_active=$2, updated_at=NOW() WHERE id=$1`, id, active)
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
		_, err := r.tx.Exec(ctx, `INSERT INTO bill_payment_items (payment_id, purchase_id, amount) VALUES ($1,$2,$3)`,
			paymentID, item.PurchaseID, item.Amount)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) InsertExpenses(ctx context.Context, paymentID int64, expenses []PaymentExpense) error {
	for _, exp := range expenses {
		_, err := r.tx.Exec(ctx, `INSERT INTO bill_payment_expenses (payment_id, category_id, amount, memo) VALUES ($1,$2,$3,$4)`,
			paymentID, exp.CategoryID, exp.Amount, exp.Memo)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) InsertAllocations(ctx context.Context, paymentID int64, allocations []PaymentAllocation) error {
	for _, alloc := range allocations {
		_, err := r.tx.Exec(ctx, `INSERT INTO bill_payment_accounts (payment_id, account_id, amount) VALUES ($1,$2,$3)`,
			paymentID, alloc.AccountID, alloc.Amount)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) ListItems(ctx context.Context, paymentID int64) ([]PaymentItem, error) {
	return listItems(ctx, r.tx, paymentID)
}

func (r *txRepository) ListExpenses(ctx context.Context, paymentID int64) ([]PaymentExpense, error) {
	return listExpenses(ctx, r.tx, paymentID)
}

func (r *txRepository) ListAllocations(ctx context.Context, paymentID int64) ([]PaymentAllocation, error) {
	return listAllocations(ctx, r.tx, paymentID)
}

func (r *txRepository) DeleteDetails(ctx context.Context, paymentID int64) error {
	for _, table := range []string{"bill_payment_items", "bill_payment_expenses", "bill_payment_accounts"} {
		if _, err := r.tx.Exec(ctx, `DELETE FROM `+table+` WHERE payment_id=$1`, paymentID); err != nil {
			return err
		}
	}
	return nil
}

func listItems(ctx context.Context, conn db.DBTX, paymentID int64) ([]PaymentItem, error) {
	rows, err := conn.Query(ctx, `SELECT id, payment_id, purchase_id, amount FROM bill_payment_items WHERE payment_id=$1 ORDER BY id ASC`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PaymentItem
	for rows.Next() {
		var item PaymentItem
		if err := rows.Scan(&item.ID, &item.PaymentID, &item.PurchaseID, &item.Amount); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func listExpenses(ctx context.Context, conn db.DBTX, paymentID int64) ([]PaymentExpense, error) {
	rows, err := conn.Query(ctx, `SELECT id, payment_id, category_id, amount, memo FROM bill_payment_expenses WHERE payment_id=$1 ORDER BY id ASC`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var expenses []PaymentExpense
	for rows.Next() {
		var exp PaymentExpense
		if err := rows.Scan(&exp.ID, &exp.PaymentID, &exp.CategoryID, &exp.Amount, &exp.Memo); err != nil {
			return nil, err
		}
		expenses = append(expenses, exp)
	}
	return expenses, rows.Err()
}

func listAllocations(ctx context.Context, conn db.DBTX, paymentID int64) ([]PaymentAllocation, error) {
	rows, err := conn.Query(ctx, `SELECT id, payment_id, account_id, amount FROM bill_payment_accounts WHERE payment_id=$1 ORDER BY id ASC`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var allocations []PaymentAllocation
	for rows.Next() {
		var alloc PaymentAllocation
		if err := rows.Scan(&alloc.ID, &alloc.PaymentID, &alloc.AccountID, &alloc.Amount); err != nil {
			return nil, err
		}
		allocations = append(allocations, alloc)
	}
	return allocations, rows.Err()
}

func scanBillPayment(row pgx.Row) (BillPayment, error) {
	var p BillPayment
	if err := scanInto(row, &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BillPayment{}, shared.ErrNotFound
		}
		return BillPayment{}, err
	}
	return p, nil
}

func scanInto(row pgx.Row, p *BillPayment) error {
	return row.Scan(&p.ID, &p.ReferenceNo, &p.PaymentDate, &p.TotalAmount, &p.Description, &p.UserID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
}
