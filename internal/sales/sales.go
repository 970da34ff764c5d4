// Package sales is the subsidiary store for customer sales. Income receipts
// settle a sale through ApplyPayment, mirroring how bill payments settle
// purchases.
package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	payshared "github.com/halisi-erp/halisi-erp/internal/payments/shared"
	"github.com/halisi-erp/halisi-erp/internal/platform/db"
	"github.com/halisi-erp/halisi-erp/internal/shared"
)

type Sale struct {
	ID            int64                   `json:"id"`
	CustomerName  string                  `json:"customerName"`
	ReferenceNo   string                  `json:"referenceNo"`
	SaleDate      time.Time               `json:"saleDate"`
	TotalAmount   float64                 `json:"totalAmount"`
	AmountPaid    float64                 `json:"amountPaid"`
	PaymentStatus payshared.PaymentStatus `json:"paymentStatus"`
	IsActive      bool                    `json:"isActive"`
	CreatedAt     time.Time               `json:"createdAt"`
	UpdatedAt     time.Time               `json:"updatedAt"`
}

// Outstanding returns the uncollected remainder of the sale.
func (s Sale) Outstanding() float64 {
	return payshared.Outstanding(s.AmountPaid, s.TotalAmount)
}

// Tx applies receipt effects to sales inside a caller-owned transaction.
type Tx interface {
	GetForUpdate(ctx context.Context, id int64) (Sale, error)
	ApplyPayment(ctx context.Context, id int64, delta float64) (Sale, error)
}

// NewTx binds the sale store to a transaction.
func NewTx(conn db.DBTX) Tx {
	return &store{db: conn}
}

type store struct {
	db db.DBTX
}

const saleColumns = `id, customer_name, reference_no, sale_date, total_amount, amount_paid, payment_status, is_active, created_at, updated_at`

func (s *store) GetForUpdate(ctx context.Context, id int64) (Sale, error) {
	return scanSale(s.db.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1 FOR UPDATE`, id))
}

func (s *store) ApplyPayment(ctx context.Context, id int64, delta float64) (Sale, error) {
	sale, err := s.GetForUpdate(ctx, id)
	if err != nil {
		return Sale{}, err
	}
	if !sale.IsActive {
		return Sale{}, fmt.Errorf("%w: sales: sale %s is inactive", shared.ErrValidation, sale.ReferenceNo)
	}
	paid := shared.Round2(sale.AmountPaid + delta)
	if delta > 0 && paid > sale.TotalAmount+0.001 {
		return Sale{}, fmt.Errorf("%w: sales: receipt of %s exceeds outstanding %s on %s",
			shared.ErrValidation, shared.FormatAmount(delta), shared.FormatAmount(sale.Outstanding()), sale.ReferenceNo)
	}
	if paid < 0 {
		return Sale{}, fmt.Errorf("%w: sales: reversal would drive amount paid on %s negative", shared.ErrInvariantViolation, sale.ReferenceNo)
	}
	sale.AmountPaid = paid
	sale.PaymentStatus = payshared.StatusFor(paid, sale.TotalAmount)
	cmd, err := s.db.Exec(ctx, `UPDATE sales SET amount_paid=$2, payment_status=$3, updated_at=NOW() WHERE id=$1`,
		sale.ID, sale.AmountPaid, sale.PaymentStatus)
	if err != nil {
		return Sale{}, err
	}
	if cmd.RowsAffected() == 0 {
		return Sale{}, shared.ErrNotFound
	}
	return sale, nil
}

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.CustomerName, &s.ReferenceNo, &s.SaleDate, &s.TotalAmount, &s.AmountPaid, &s.PaymentStatus, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, shared.ErrNotFound
		}
		return Sale{}, err
	}
	return s, nil
}
