package finacct

import (
	"fmt"
	"time"

	"github.com/halisi-erp/halisi-erp/internal/shared"
)

// AccountType enumerates funding source kinds.
type AccountType string

const (
	AccountTypeBank        AccountType = "BANK"
	AccountTypeCash        AccountType = "CASH"
	AccountTypeMobileMoney AccountType = "MOBILE_MONEY"
)

// Valid reports whether the account type is known.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeBank, AccountTypeCash, AccountTypeMobileMoney:
		return true
	}
	return false
}

// FinancialAccount is a real-world funding source with a cached running
// balance. CurrentBalance is a projection of the journal: opening balance
// plus the signed line history of the linked asset node. The linked node is
// exclusive to the account so the projection stays attributable.
type FinancialAccount struct {
	ID             int64
	Name           string
	AccountType    AccountType
	COAID          int64
	OpeningBalance float64
	CurrentBalance float64
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AccountBalance is the read-side balance projection served to listings.
type AccountBalance struct {
	ID             int64       `json:"id"`
	Name           string      `json:"name"`
	AccountType    AccountType `json:"accountType"`
	CurrentBalance float64     `json:"currentBalance"`
}

// InsufficientFundsError reports a debit that would drive a balance negative.
type InsufficientFundsError struct {
	AccountName string
	Available   float64
	Required    float64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds in %s: available %s, required %s, short %s",
		e.AccountName,
		shared.FormatAmount(e.Available),
		shared.FormatAmount(e.Required),
		shared.FormatAmount(e.Required-e.Available))
}

// Unwrap ties the error into the shared taxonomy for errors.Is checks.
func (e *InsufficientFundsError) Unwrap() error {
	return shared.ErrInsufficientFunds
}
