package income

import (
	"fmt"
	"strings"
	"time"

	"github.com/halisi-erp/halisi-erp/internal/shared"
)

// Input carries the fields shared by create and edit.
type Input struct {
	ReceiptDate time.Time `json:"receiptDate" validate:"required"`
	SaleID      int64     `json:"saleId" validate:"required,gt=0"`
	AccountID   int64     `json:"accountId" validate:"required,gt=0"`
	Amount      float64   `json:"amount" validate:"required,gt=0"`
	Description string    `json:"description"`
	UserID      int64     `json:"-"`
}

func (in *Input) Validate() error {
	if in.ReceiptDate.IsZero() {
		return fmt.Errorf("%w: income: date required", shared.ErrValidation)
	}
	if in.SaleID <= 0 {
		return fmt.Errorf("%w: income: sale required", shared.ErrValidation)
	}
	if in.AccountID <= 0 {
		return fmt.Errorf("%w: income: receiving account required", shared.ErrValidation)
	}
	if in.Amount <= 0 {
		return fmt.Errorf("%w: income: amount must be positive", shared.ErrValidation)
	}
	in.Amount = shared.Round2(in.Amount)
	in.Description = strings.TrimSpace(in.Description)
	return nil
}
