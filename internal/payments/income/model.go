package income

import "time"

// Income is a money-in event: a customer payment received against a sale,
// deposited into one financial account. The receivable raised by the sale is
// cleared by crediting the receivables node.
type Income struct {
	ID          int64     `json:"id"`
	ReferenceNo string    `json:"referenceNo"`
	ReceiptDate time.Time `json:"receiptDate"`
	SaleID      int64     `json:"saleId"`
	AccountID   int64     `json:"accountId"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	UserID      int64     `json:"userId"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
