package expense

import "time"

// Expense is a money-out event paid from one financial account against one
// expense category. Edits and deletes never mutate the journal; they are
// compensated with adjustment entries and the row is soft-deleted.
type Expense struct {
	ID          int64     `json:"id"`
	ReferenceNo string    `json:"referenceNo"`
	ExpenseDate time.Time `json:"expenseDate"`
	CategoryID  int64     `json:"categoryId"`
	AccountID   int64     `json:"accountId"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	UserID      int64     `json:"userId"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
