package finacct

import (
	"fmt"
	"strings"

	"github.com/halisi-erp/halisi-erp/internal/shared"
)

// OpenInput carries the fields needed to open a financial account.
type OpenInput struct {
	Name           string  `json:"name" validate:"required"`
	AccountType    string  `json:"accountType" validate:"required"`
	COAID          int64   `json:"coaId" validate:"required,gt=0"`
	OpeningBalance float64 `json:"openingBalance" validate:"gte=0"`
	UserID         *int64  `json:"-"`
}

func (in *OpenInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	if !AccountType(in.AccountType).Valid() {
		return fmt.Errorf("%w: invalid account type %q", shared.ErrValidation, in.AccountType)
	}
	if in.COAID <= 0 {
		return fmt.Errorf("%w: coaId is required", shared.ErrValidation)
	}
	if in.OpeningBalance < 0 {
		return fmt.Errorf("%w: opening balance cannot be negative", shared.ErrValidation)
	}
	in.OpeningBalance = shared.Round2(in.OpeningBalance)
	return nil
}
