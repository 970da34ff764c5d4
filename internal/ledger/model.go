package ledger

import "time"

// ReferenceType tags a journal entry with the domain event that produced it.
type ReferenceType string

const (
	RefPaymentReceived   ReferenceType = "PAYMENT_RECEIVED"
	RefBillPayment       ReferenceType = "BILL_PAYMENT"
	RefExpense           ReferenceType = "EXPENSE"
	RefCommissionPayment ReferenceType = "COMMISSION_PAYMENT"
	RefAccountOpening    ReferenceType = "ACCOUNT_OPENING"
	RefAdjustment        ReferenceType = "ADJUSTMENT"
)

// Valid reports whether the reference type is known.
func (t ReferenceType) Valid() bool {
	switch t {
	case RefPaymentReceived, RefBillPayment, RefExpense, RefCommissionPayment, RefAccountOpening, RefAdjustment:
		return true
	}
	return false
}

// JournalEntry is an immutable balanced record of a financial event. Entries
// are append-only; corrections are new ADJUSTMENT entries, never updates.
type JournalEntry struct {
	ID            int64
	EntryDate     time.Time
	ReferenceType ReferenceType
	ReferenceID   *int64
	Description   string
	TotalDebit    float64
	TotalCredit   float64
	UserID        int64
	CreatedAt     time.Time
	Lines         []JournalEntryLine
}

// JournalEntryLine posts one debit or credit against a single chart node.
type JournalEntryLine struct {
	ID        int64
	EntryID   int64
	COAID     int64
	Debit     float64
	Credit    float64
	Memo      string
	CreatedAt time.Time
}
