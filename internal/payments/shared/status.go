// Package shared holds the payment status model common to purchases, sales
// and commissions.
package shared

// PaymentStatus tracks how much of an obligation has been settled.
type PaymentStatus string

const (
	StatusPending PaymentStatus = "PENDING"
	StatusPartial PaymentStatus = "PARTIAL"
	StatusPaid    PaymentStatus = "PAID"
)

// epsilon absorbs float drift from repeated partial payments so a fully paid
// obligation never sticks at PARTIAL over a fraction of a cent.
const epsilon = 0.001

// StatusFor derives the payment status from the amount paid against a total.
func StatusFor(paid, total float64) PaymentStatus {
	switch {
	case paid <= epsilon:
		return StatusPending
	case paid >= total-epsilon:
		return StatusPaid
	default:
		return StatusPartial
	}
}

// Outstanding returns the unpaid remainder, floored at zero.
func Outstanding(paid, total float64) float64 {
	if remaining := total - paid; remaining > 0 {
		return remaining
	}
	return 0
}
