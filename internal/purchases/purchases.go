// Package purchases is the subsidiary store for vendor purchases. The ledger
// engine only touches a purchase through ApplyPayment, which keeps amount_paid
// and payment_status in step with the bill payments applied against it.
package purchases

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

type Purchase struct {
	ID            int64                   `json:"id"`
	VendorName    string                  `json:"vendorName"`
	ReferenceNo   string                  `json:"referenceNo"`
	PurchaseDate  time.Time               `json:"purchaseDate"`
	TotalAmount   float64                 `json:"totalAmount"`
	AmountPaid    float64                 `json:"amountPaid"`
	PaymentStatus payshared.PaymentStatus `json:"paymentStatus"`
	IsActive      bool                    `json:"isActive"`
	CreatedAt     time.Time               `json:"createdAt"`
	UpdatedAt     time.Time               `json:"updatedAt"`
}

// Outstanding returns the unpaid remainder of the purchase.
func (p Purchase) Outstanding() float64 {
	return payshared.Outstanding(p.AmountPaid, p.TotalAmount)
}

// Tx applies payment effects to purchases inside a caller-owned transaction.
type Tx interface {
	GetForUpdate(ctx context.Context, id int64) (Purchase, error)
	ApplyPayment(ctx context.Context, id int64, delta float64) (Purchase, error)
}

// NewTx binds the purchase store to a transaction.
func NewTx(conn db.DBTX) Tx {
	return &store{db: conn}
}

type store struct {
	db db.DBTX
}

const purchaseColumns = `id, vendor_name, reference_no, purchase_date, total_amount, amount_paid, payment_status, is_active, created_at, updated_at`

func (s *store) GetForUpdate(ctx context.Context, id int64) (Purchase, error) {
	return scanPurchase(s.db.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id=$1 FOR UPDATE`, id))
}

// ApplyPayment moves amount_paid by delta and recomputes the payment status.
// A negative delta reverses a prior application. The row stays locked until
// the surrounding transaction ends.
func (s *store) ApplyPayment(ctx context.Context, id int64, delta float64) (Purchase, error) {
	p, err := s.GetForUpdate(ctx, id)
	if err != nil {
		return Purchase{}, err
	}
	if !p.IsActive {
		return Purchase{}, fmt.Errorf("%w: purchases: purchase %s is inactive", shared.ErrValidation, p.ReferenceNo)
	}
	paid := shared.Round2(p.AmountPaid + delta)
	if delta > 0 && paid > p.TotalAmount+0.001 {
		return Purchase{}, fmt.Errorf("%w: purchases: payment of %s exceeds outstanding %s on %s",
			shared.ErrValidation, shared.FormatAmount(delta), shared.FormatAmount(p.Outstanding()), p.ReferenceNo)
	}
	if paid < 0 {
		return Purchase{}, fmt.Errorf("%w: purchases: reversal would drive amount paid on %s negative", shared.ErrInvariantViolation, p.ReferenceNo)
	}
	p.AmountPaid = paid
	p.PaymentStatus = payshared.StatusFor(paid, p.TotalAmount)
	cmd, err := s.db.Exec(ctx, `UPDATE purchases SET amount_paid=$2, payment_status=$3, updated_at=NOW() WHERE id=$1`,
		p.ID, p.AmountPaid, p.PaymentStatus)
	if err != nil {
		return Purchase{}, err
	}
	if cmd.RowsAffected() == 0 {
		return Purchase{}, shared.ErrNotFound
	}
	return p, nil
}

func scanPurchase(row pgx.Row) (Purchase, error) {
	var p Purchase
	err := row.Scan(&p.ID, &p.VendorName, &p.ReferenceNo, &p.PurchaseDate, &p.TotalAmount, &p.AmountPaid, &p.PaymentStatus, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Purchase{}, shared.ErrNotFound
		}
		return Purchase{}, err
	}
	return p, nil
}
