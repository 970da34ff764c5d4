package commission

import "time"

// Payment is a commission payout: one financial account funds payouts to one
// or more recipients of a commission. Each allocation is kept as an item row
// so reversal can unwind recipient shares exactly.
type Payment struct {
	ID           int64         `json:"id"`
	ReferenceNo  string        `json:"referenceNo"`
	PaymentDate  time.Time     `json:"paymentDate"`
	CommissionID int64         `json:"commissionId"`
	AccountID    int64         `json:"accountId"`
	TotalAmount  float64       `json:"totalAmount"`
	Description  string        `json:"description"`
	UserID       int64         `json:"userId"`
	IsActive     bool          `json:"isActive"`
	Items        []PaymentItem `json:"items,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// PaymentItem allocates part of a payout to one commission recipient.
type PaymentItem struct {
	ID          int64   `json:"id"`
	PaymentID   int64   `json:"paymentId"`
	RecipientID int64   `json:"recipientId"`
	Amount      float64 `json:"amount"`
}
