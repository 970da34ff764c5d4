package ledger

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnbalanced indicates debit and credit totals differ. This is an
	// orchestrator bug, not a user input problem, and is never recovered
	// silently.
	ErrUnbalanced = errors.New("ledger: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("ledger: journal requires at least two lines")
	// ErrEntryNotFound indicates a missing entry.
	ErrEntryNotFound = errors.New("ledger: journal entry not found")
)

// LineInput describes one journal line for a posting request. Exactly one of
// Debit or Credit must be positive.
type LineInput struct {
	COAID  int64
	Debit  float64
	Credit float64
	Memo   string
}

// PostingInput groups fields required to create a journal entry.
// SourceModule disambiguates ReferenceID across domain tables; every
// orchestrator posts under its own module tag.
type PostingInput struct {
	EntryDate     time.Time
	ReferenceType ReferenceType
	SourceModule  string
	ReferenceID   *int64
	Description   string
	UserID        int64
	Lines         []LineInput
}

// Validate enforces the posting contract: at least two lines, each line a
// strict debit-XOR-credit, and equal totals at cent precision.
func (in PostingInput) Validate() error {
	if !in.ReferenceType.Valid() {
		return fmt.Errorf("ledger: unknown reference type %q", in.ReferenceType)
	}
	if in.EntryDate.IsZero() {
		return errors.New("ledger: entry date required")
	}
	if in.ReferenceID != nil && in.SourceModule == "" {
		return errors.New("ledger: source module required with a reference id")
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	var debit, credit float64
	for idx, line := range in.Lines {
		if line.COAID == 0 {
			return fmt.Errorf("ledger: line %d missing chart node", idx)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return fmt.Errorf("ledger: line %d negative amount", idx)
		}
		if line.Debit > 0 && line.Credit > 0 {
			return fmt.Errorf("ledger: line %d cannot be both debit and credit", idx)
		}
		if line.Debit == 0 && line.Credit == 0 {
			return fmt.Errorf("ledger: line %d has no amount", idx)
		}
		debit += line.Debit
		credit += line.Credit
	}
	if fmt.Sprintf("%.2f", debit) != fmt.Sprintf("%.2f", credit) {
		return ErrUnbalanced
	}
	return nil
}

// ReversalInput identifies the posting to mirror into an ADJUSTMENT entry.
// The latest entry recorded under (SourceModule, ReferenceID) is reversed, so
// edit chains reverse the entry describing the current applied state.
type ReversalInput struct {
	SourceModule string
	ReferenceID  int64
	EntryDate    time.Time
	Description  string
	UserID       int64
}
