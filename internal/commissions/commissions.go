// Package commissions is the subsidiary store for commissions owed to named
// recipients. A commission's payable total is split across recipients;
// commission payments settle individual recipient shares.
package commissions

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

type Commission struct {
	ID           int64     `json:"id"`
	ReferenceNo  string    `json:"referenceNo"`
	Description  string    `json:"description"`
	TotalPayable float64   `json:"totalPayable"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Recipient struct {
	ID            int64                   `json:"id"`
	CommissionID  int64                   `json:"commissionId"`
	Name          string                  `json:"name"`
	AmountPayable float64                 `json:"amountPayable"`
	AmountPaid    float64                 `json:"amountPaid"`
	PaymentStatus payshared.PaymentStatus `json:"paymentStatus"`
}

// Outstanding returns the unpaid remainder of the recipient's share.
func (r Recipient) Outstanding() float64 {
	return payshared.Outstanding(r.AmountPaid, r.AmountPayable)
}

// Tx applies payout effects to commission recipients inside a caller-owned
// transaction.
type Tx interface {
	GetForUpdate(ctx context.Context, id int64) (Commission, error)
	GetRecipientForUpdate(ctx context.Context, id int64) (Recipient, error)
	ApplyRecipientPayment(ctx context.Context, recipientID int64, delta float64) (Recipient, error)
	SumPaid(ctx context.Context, commissionID int64) (float64, error)
}

// NewTx binds the commission store to a transaction.
func NewTx(conn db.DBTX) Tx {
	return &store{db: conn}
}

type store struct {
	db db.DBTX
}

func (s *store) GetForUpdate(ctx context.Context, id int64) (Commission, error) {
	var c Commission
	err := s.db.QueryRow(ctx, `SELECT id, reference_no, description, total_payable, is_active, created_at, updated_at
FROM commissions WHERE id=$1 FOR UPDATE`, id).
		Scan(&c.ID, &c.ReferenceNo, &c.Description, &c.TotalPayable, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Commission{}, shared.ErrNotFound
		}
		return Commission{}, err
	}
	return c, nil
}

func (s *store) GetRecipientForUpdate(ctx context.Context, id int64) (Recipient, error) {
	var r Recipient
	err := s.db.QueryRow(ctx, `SELECT id, commission_id, name, amount_payable, amount_paid, payment_status
FROM commission_recipients WHERE id=$1 FOR UPDATE`, id).
		Scan(&r.ID, &r.CommissionID, &r.Name, &r.AmountPayable, &r.AmountPaid, &r.PaymentStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Recipient{}, shared.ErrNotFound
		}
		return Recipient{}, err
	}
	return r, nil
}

// SumPaid totals amount_paid across the commission's recipients. Recipient
// payable shares are not required to partition the commission total, so the
// payout cap is enforced against this sum, not per share alone.
func (s *store) SumPaid(ctx context.Context, commissionID int64) (float64, error) {
	var total float64
	err := s.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount_paid), 0) FROM commission_recipients WHERE commission_id=$1`, commissionID).
		Scan(&total)
	return total, err
}

// ApplyRecipientPayment moves a recipient's amount_paid by delta and
// recomputes the payment status. A positive delta must not exceed the
// recipient's payable share.
func (s *store) ApplyRecipientPayment(ctx context.Context, recipientID int64, delta float64) (Recipient, error) {
	r, err := s.GetRecipientForUpdate(ctx, recipientID)
	if err != nil {
		return Recipient{}, err
	}
	paid := shared.Round2(r.AmountPaid + delta)
	if delta > 0 && paid > r.AmountPayable+0.001 {
		return Recipient{}, fmt.Errorf("%w: commissions: payout of %s exceeds %s owed to %s",
			shared.ErrValidation, shared.FormatAmount(delta), shared.FormatAmount(r.Outstanding()), r.Name)
	}
	if paid < 0 {
		return Recipient{}, fmt.Errorf("%w: commissions: reversal would drive amount paid to %s negative", shared.ErrInvariantViolation, r.Name)
	}
	r.AmountPaid = paid
	r.PaymentStatus = payshared.StatusFor(paid, r.AmountPayable)
	cmd, err := s.db.Exec(ctx, `UPDATE commission_recipients SET amount_paid=$2, payment_status=$3 WHERE id=$1`,
		r.ID, r.AmountPaid, r.PaymentStatus)
	if err != nil {
		return Recipient{}, err
	}
	if cmd.RowsAffected() == 0 {
		return Recipient{}, shared.ErrNotFound
	}
	return r, nil
}
