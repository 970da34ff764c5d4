package expense

import (
	"fmt"
	"strings"
	"time"

	"github.com/halisi-erp/halisi-erp/internal/shared"
)

// Input carries the fields shared by create and edit.
type Input struct {
	ExpenseDate time.Time `json:"expenseDate" validate:"required"`
	CategoryID  int64     `json:"categoryId" validate:"required,gt=0"`
	AccountID   int64     `json:"accountId" validate:"required,gt=0"`
	Amount      float64   `json:"amount" validate:"required,gt=0"`
	Description string    `json:"description"`
	UserID      int64     `json:"-"`
}

func (in *Input) Validate() error {
	if in.ExpenseDate.IsZero() {
		return fmt.Errorf("%w: expense: date required", shared.ErrValidation)
	}
	if in.CategoryID <= 0 {
		return fmt.Errorf("%w: expense: category required", shared.ErrValidation)
	}
	if in.AccountID <= 0 {
		return fmt.Errorf("%w: expense: paying account required", shared.ErrValidation)
	}
	if in.Amount <= 0 {
		return fmt.Errorf("%w: expense: amount must be positive", shared.ErrValidation)
	}
	in.Amount = shared.Round2(in.Amount)
	in.Description = strings.TrimSpace(in.Description)
	return nil
}
