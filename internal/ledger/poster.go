package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/halisi-erp/halisi-erp/internal/platform/db"
	"github.com/halisi-erp/halisi-erp/internal/shared"
)

// TxPoster is the single choke point every financial mutation posts through.
// It runs against the caller's transaction so a posting commits or rolls back
// together with the balance mutations and subsidiary updates it describes.
type TxPoster interface {
	Post(ctx context.Context, in PostingInput) (JournalEntry, error)
	ReverseLatest(ctx context.Context, in ReversalInput) (JournalEntry, error)
}

// NewTxPoster binds a poster to a transaction (or pool, in tests).
func NewTxPoster(conn db.DBTX) TxPoster {
	return &txPoster{db: conn}
}

type txPoster struct {
	db db.DBTX
}

func (p *txPoster) Post(ctx context.Context, in PostingInput) (JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var totalDebit, totalCredit float64
	for _, line := range in.Lines {
		totalDebit += line.Debit
		totalCredit += line.Credit
	}
	totalDebit = shared.Round2(totalDebit)
	totalCredit = shared.Round2(totalCredit)

	entry := JournalEntry{
		EntryDate:     in.EntryDate,
		ReferenceType: in.ReferenceType,
		ReferenceID:   in.ReferenceID,
		Description:   in.Description,
		TotalDebit:    totalDebit,
		TotalCredit:   totalCredit,
		UserID:        in.UserID,
	}
	row := p.db.QueryRow(ctx, `INSERT INTO journal_entries (entry_date, reference_type, source_module, reference_id, description, total_debit, total_credit, user_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at`,
		in.EntryDate, in.ReferenceType, in.SourceModule, in.ReferenceID, in.Description, totalDebit, totalCredit, in.UserID)
	if err := row.Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return JournalEntry{}, fmt.Errorf("ledger: insert entry: %w", err)
	}
	for _, line := range in.Lines {
		var l JournalEntryLine
		err := p.db.QueryRow(ctx, `INSERT INTO journal_lines (entry_id, coa_id, debit, credit, memo)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at`,
			entry.ID, line.COAID, line.Debit, line.Credit, line.Memo).
			Scan(&l.ID, &l.CreatedAt)
		if err != nil {
			return JournalEntry{}, fmt.Errorf("ledger: insert line: %w", err)
		}
		l.EntryID = entry.ID
		l.COAID = line.COAID
		l.Debit = line.Debit
		l.Credit = line.Credit
		l.Memo = line.Memo
		entry.Lines = append(entry.Lines, l)
	}
	return entry, nil
}

func (p *txPoster) ReverseLatest(ctx context.Context, in ReversalInput) (JournalEntry, error) {
	if in.SourceModule == "" || in.ReferenceID == 0 {
		return JournalEntry{}, errors.New("ledger: reversal requires source module and reference id")
	}
	original, err := p.latestByReference(ctx, in.SourceModule, in.ReferenceID)
	if err != nil {
		return JournalEntry{}, err
	}
	refID := in.ReferenceID
	posting := PostingInput{
		EntryDate:     in.EntryDate,
		ReferenceType: RefAdjustment,
		SourceModule:  in.SourceModule,
		ReferenceID:   &refID,
		Description:   reversalDescription(in.Description, original.ID),
		UserID:        in.UserID,
		Lines:         mirrorLines(original.Lines),
	}
	return p.Post(ctx, posting)
}

func (p *txPoster) latestByReference(ctx context.Context, sourceModule string, referenceID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := p.db.QueryRow(ctx, `SELECT id, entry_date, reference_type, reference_id, description, total_debit, total_credit, user_id, created_at
FROM journal_entries WHERE source_module=$1 AND reference_id=$2 ORDER BY id DESC LIMIT 1`, sourceModule, referenceID).
		Scan(&entry.ID, &entry.EntryDate, &entry.ReferenceType, &entry.ReferenceID, &entry.Description, &entry.TotalDebit, &entry.TotalCredit, &entry.UserID, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ErrEntryNotFound
		}
		return JournalEntry{}, err
	}
	rows, err := p.db.Query(ctx, `SELECT id, entry_id, coa_id, debit, credit, memo, created_at
FROM journal_lines WHERE entry_id=$1 ORDER BY id ASC`, entry.ID)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l JournalEntryLine
		if err := rows.Scan(&l.ID, &l.EntryID, &l.COAID, &l.Debit, &l.Credit, &l.Memo, &l.CreatedAt); err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, l)
	}
	return entry, rows.Err()
}

// mirrorLines swaps debit and credit on every line of the original posting.
func mirrorLines(lines []JournalEntryLine) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{
			COAID:  line.COAID,
			Debit:  line.Credit,
			Credit: line.Debit,
			Memo:   line.Memo,
		})
	}
	return out
}

func reversalDescription(desc string, entryID int64) string {
	if desc != "" {
		return desc
	}
	return fmt.Sprintf("Reversal of journal entry %d", entryID)
}
