// Package refnum issues human-readable reference numbers of the form
// PREFIX.YYYY/MM/NNNN. Counters are stored per prefix and month in the
// database and advanced with a single atomic upsert, so concurrent
// transactions never observe the same value and a rolled-back transaction
// leaves at most a gap, never a duplicate.
package refnum

import (
	"context"
	"fmt"
	"time"

	"github.com/halisi-erp/halisi-erp/internal/platform/db"
)

// Known prefixes. Each transaction family numbers independently.
const (
	PrefixPayment    = "PAY"
	PrefixBillPay    = "BPV"
	PrefixExpense    = "EXP"
	PrefixCommission = "COM"
)

// Generator hands out the next reference number for a prefix.
type Generator interface {
	Next(ctx context.Context, prefix string, at time.Time) (string, error)
}

// NewGenerator binds a Generator to a connection or transaction. Callers that
// need the number and the row it labels committed together pass their tx.
func NewGenerator(conn db.DBTX) Generator {
	return &generator{db: conn}
}

type generator struct {
	db db.DBTX
}

func (g *generator) Next(ctx context.Context, prefix string, at time.Time) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("refnum: prefix required")
	}
	year, month := at.Year(), int(at.Month())
	var value int64
	err := g.db.QueryRow(ctx, `INSERT INTO reference_sequences (prefix, year, month, last_value)
VALUES ($1, $2, $3, 1)
ON CONFLICT (prefix, year, month) DO UPDATE SET last_value = reference_sequences.last_value + 1
RETURNING last_value`, prefix, year, month).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("refnum: advance %s sequence: %w", prefix, err)
	}
	return Format(prefix, year, month, value), nil
}

// Format renders a reference number from its parts.
func Format(prefix string, year, month int, value int64) string {
	return fmt.Sprintf("%s.%d/%02d/%04d", prefix, year, month, value)
}
