package billpay

import (
	"fmt"
	"strings"
	"time"

	"github.com/halisi-erp/halisi-erp/internal/shared"
)

// ItemInput applies an amount to one purchase.
type ItemInput struct {
	PurchaseID int64   `json:"purchaseId" validate:"required,gt=0"`
	Amount     float64 `json:"amount" validate:"required,gt=0"`
}

// ExpenseInput records an accompanying expense inside the payment.
type ExpenseInput struct {
	CategoryID int64   `json:"categoryId" validate:"required,gt=0"`
	Amount     float64 `json:"amount" validate:"required,gt=0"`
	Memo       string  `json:"memo"`
}

// AllocationInput draws an amount from one financial account.
type AllocationInput struct {
	AccountID int64   `json:"accountId" validate:"required,gt=0"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
}

// Input carries the fields shared by create and edit.
type Input struct {
	PaymentDate time.Time         `json:"paymentDate" validate:"required"`
	Description string            `json:"description"`
	Items       []ItemInput       `json:"items" validate:"required,min=1,dive"`
	Expenses    []ExpenseInput    `json:"expenses" validate:"dive"`
	Accounts    []AllocationInput `json:"accounts" validate:"required,min=1,dive"`
	UserID      int64             `json:"-"`
}

// Validate checks the payment's three groups and their triple equality:
// the amount applied to purchases plus accompanying expenses must equal the
// amount drawn from the funding accounts, at cent precision, before any
// write happens.
func (in *Input) Validate() (float64, error) {
	if in.PaymentDate.IsZero() {
		return 0, fmt.Errorf("%w: billpay: date required", shared.ErrValidation)
	}
	if len(in.Items) == 0 {
		return 0, fmt.Errorf("%w: billpay: at least one purchase required", shared.ErrValidation)
	}
	if len(in.Accounts) == 0 {
		return 0, fmt.Errorf("%w: billpay: at least one funding account required", shared.ErrValidation)
	}

	var applied float64
	seenPurchases := make(map[int64]bool, len(in.Items))
	for i := range in.Items {
		item := &in.Items[i]
		if item.PurchaseID <= 0 {
			return 0, fmt.Errorf("%w: billpay: item %d missing purchase", shared.ErrValidation, i)
		}
		if seenPurchases[item.PurchaseID] {
			return 0, fmt.Errorf("%w: billpay: purchase %d listed twice", shared.ErrValidation, item.PurchaseID)
		}
		seenPurchases[item.PurchaseID] = true
		if item.Amount <= 0 {
			return 0, fmt.Errorf("%w: billpay: item %d must be positive", shared.ErrValidation, i)
		}
		item.Amount = shared.Round2(item.Amount)
		applied += item.Amount
	}

	for i := range in.Expenses {
		exp := &in.Expenses[i]
		if exp.CategoryID <= 0 {
			return 0, fmt.Errorf("%w: billpay: expense %d missing category", shared.ErrValidation, i)
		}
		if exp.Amount <= 0 {
			return 0, fmt.Errorf("%w: billpay: expense %d must be positive", shared.ErrValidation, i)
		}
		exp.Amount = shared.Round2(exp.Amount)
		exp.Memo = strings.TrimSpace(exp.Memo)
		applied += exp.Amount
	}

	var drawn float64
	seenAccounts := make(map[int64]bool, len(in.Accounts))
	for i := range in.Accounts {
		alloc := &in.Accounts[i]
		if alloc.AccountID <= 0 {
			return 0, fmt.Errorf("%w: billpay: allocation %d missing account", shared.ErrValidation, i)
		}
		if seenAccounts[alloc.AccountID] {
			return 0, fmt.Errorf("%w: billpay: account %d listed twice", shared.ErrValidation, alloc.AccountID)
		}
		seenAccounts[alloc.AccountID] = true
		if alloc.Amount <= 0 {
			return 0, fmt.Errorf("%w: billpay: allocation %d must be positive", shared.ErrValidation, i)
		}
		alloc.Amount = shared.Round2(alloc.Amount)
		drawn += alloc.Amount
	}

	if fmt.Sprintf("%.2f", applied) != fmt.Sprintf("%.2f", drawn) {
		return 0, fmt.Errorf("%w: billpay: %s applied to purchases and expenses but %s drawn from accounts",
			shared.ErrValidation, shared.FormatAmount(applied), shared.FormatAmount(drawn))
	}
	in.Description = strings.TrimSpace(in.Description)
	return shared.Round2(drawn), nil
}
