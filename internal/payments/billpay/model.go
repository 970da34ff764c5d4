package billpay

import "time"

// BillPayment settles outstanding purchases, optionally together with
// accompanying expenses incurred at payment time (bank charges, transport),
// drawn from one or more financial accounts. Its journal entry debits the
// payables node and each expense category, and credits each funding account.
type BillPayment struct {
	ID          int64     `json:"id"`
	ReferenceNo string    `json:"referenceNo"`
	PaymentDate time.Time `json:"paymentDate"`
	TotalAmount float64   `json:"totalAmount"`
	Description string    `json:"description"`
	UserID      int64     `json:"userId"`
	IsActive    bool      `json:"isActive"`

	Items    []PaymentItem       `json:"items,omitempty"`
	Expenses []PaymentExpense    `json:"expenses,omitempty"`
	Accounts []PaymentAllocation `json:"accounts,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PaymentItem applies part of the payment to one purchase.
type PaymentItem struct {
	ID         int64   `json:"id"`
	PaymentID  int64   `json:"paymentId"`
	PurchaseID int64   `json:"purchaseId"`
	Amount     float64 `json:"amount"`
}

// PaymentExpense is an accompanying expense settled within the payment.
type PaymentExpense struct {
	ID         int64   `json:"id"`
	PaymentID  int64   `json:"paymentId"`
	CategoryID int64   `json:"categoryId"`
	Amount     float64 `json:"amount"`
	Memo       string  `json:"memo"`
}

// PaymentAllocation draws part of the payment from one financial account.
type PaymentAllocation struct {
	ID        int64   `json:"id"`
	PaymentID int64   `json:"paymentId"`
	AccountID int64   `json:"accountId"`
	Amount    float64 `json:"amount"`
}
