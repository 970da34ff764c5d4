package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository exposes read access to the journal. There is deliberately no
// update or delete: the ledger is append-only and only TxPoster writes to it.
type Repository interface {
	List(ctx context.Context, limit, offset int) ([]JournalEntry, error)
	Get(ctx context.Context, id int64) (JournalEntry, error)
	ListByReference(ctx context.Context, sourceModule string, referenceID int64) ([]JournalEntry, error)
	ListByCOA(ctx context.Context, coaID int64, from, to time.Time) ([]JournalEntryLine, error)
	SumByCOA(ctx context.Context, coaID int64) (debit, credit float64, err error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a pgx-backed read repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const entryColumns = `id, entry_date, reference_type, reference_id, description, total_debit, total_credit, user_id, created_at`

func (r *repository) List(ctx context.Context, limit, offset int) ([]JournalEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries ORDER BY id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (r *repository) Get(ctx context.Context, id int64) (JournalEntry, error) {
	var entry JournalEntry
	err := r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, id).
		Scan(&entry.ID, &entry.EntryDate, &entry.ReferenceType, &entry.ReferenceID, &entry.Description, &entry.TotalDebit, &entry.TotalCredit, &entry.UserID, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ErrEntryNotFound
		}
		return JournalEntry{}, err
	}
	lines, err := r.linesFor(ctx, entry.ID)
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = lines
	return entry, nil
}

func (r *repository) ListByReference(ctx context.Context, sourceModule string, referenceID int64) ([]JournalEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE source_module=$1 AND reference_id=$2 ORDER BY id ASC`, sourceModule, referenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (r *repository) ListByCOA(ctx context.Context, coaID int64, from, to time.Time) ([]JournalEntryLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT l.id, l.entry_id, l.coa_id, l.debit, l.credit, l.memo, l.created_at
FROM journal_lines l JOIN journal_entries e ON e.id = l.entry_id
WHERE l.coa_id=$1 AND e.entry_date >= $2 AND e.entry_date <= $3 ORDER BY l.id ASC`, coaID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []JournalEntryLine
	for rows.Next() {
		var l JournalEntryLine
		if err := rows.Scan(&l.ID, &l.EntryID, &l.COAID, &l.Debit, &l.Credit, &l.Memo, &l.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repository) SumByCOA(ctx context.Context, coaID int64) (float64, float64, error) {
	var debit, credit float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(debit),0), COALESCE(SUM(credit),0) FROM journal_lines WHERE coa_id=$1`, coaID).
		Scan(&debit, &credit)
	return debit, credit, err
}

func (r *repository) linesFor(ctx context.Context, entryID int64) ([]JournalEntryLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, entry_id, coa_id, debit, credit, memo, created_at FROM journal_lines WHERE entry_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []JournalEntryLine
	for rows.Next() {
		var l JournalEntryLine
		if err := rows.Scan(&l.ID, &l.EntryID, &l.COAID, &l.Debit, &l.Credit, &l.Memo, &l.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func scanEntries(rows pgx.Rows) ([]JournalEntry, error) {
	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.EntryDate, &e.ReferenceType, &e.ReferenceID, &e.Description, &e.TotalDebit, &e.TotalCredit, &e.UserID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
