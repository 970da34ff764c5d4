package commission

import (
	"fmt"
	"strings"
	"time"

	"github.com/halisi-erp/halisi-erp/internal/shared"
)

// ItemInput allocates an amount to one recipient.
type ItemInput struct {
	RecipientID int64   `json:"recipientId" validate:"required,gt=0"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
}

// Input carries the fields shared by create and edit.
type Input struct {
	PaymentDate  time.Time   `json:"paymentDate" validate:"required"`
	CommissionID int64       `json:"commissionId" validate:"required,gt=0"`
	AccountID    int64       `json:"accountId" validate:"required,gt=0"`
	Description  string      `json:"description"`
	Items        []ItemInput `json:"items" validate:"required,min=1,dive"`
	UserID       int64       `json:"-"`
}

// Validate checks the allocation set and returns the payout total.
func (in *Input) Validate() (float64, error) {
	if in.PaymentDate.IsZero() {
		return 0, fmt.Errorf("%w: commission: date required", shared.ErrValidation)
	}
	if in.CommissionID <= 0 {
		return 0, fmt.Errorf("%w: commission: commission required", shared.ErrValidation)
	}
	if in.AccountID <= 0 {
		return 0, fmt.Errorf("%w: commission: paying account required", shared.ErrValidation)
	}
	if len(in.Items) == 0 {
		return 0, fmt.Errorf("%w: commission: at least one recipient allocation required", shared.ErrValidation)
	}
	seen := make(map[int64]bool, len(in.Items))
	var total float64
	for i := range in.Items {
		item := &in.Items[i]
		if item.RecipientID <= 0 {
			return 0, fmt.Errorf("%w: commission: allocation %d missing recipient", shared.ErrValidation, i)
		}
		if seen[item.RecipientID] {
			return 0, fmt.Errorf("%w: commission: recipient %d allocated twice", shared.ErrValidation, item.RecipientID)
		}
		seen[item.RecipientID] = true
		if item.Amount <= 0 {
			return 0, fmt.Errorf("%w: commission: allocation %d must be positive", shared.ErrValidation, i)
		}
		item.Amount = shared.Round2(item.Amount)
		total += item.Amount
	}
	in.Description = strings.TrimSpace(in.Description)
	return shared.Round2(total), nil
}
