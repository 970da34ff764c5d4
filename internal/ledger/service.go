package ledger

import (
	"context"
	"time"
)

// Service exposes read access to the journal for the presentation layer.
// Postings happen exclusively through TxPoster inside orchestrator
// transactions; there is no mutation surface here.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]JournalEntry, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) Get(ctx context.Context, id int64) (JournalEntry, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListByReference(ctx context.Context, sourceModule string, referenceID int64) ([]JournalEntry, error) {
	return s.repo.ListByReference(ctx, sourceModule, referenceID)
}

// AccountActivity lists the lines posted against one chart node in a window.
func (s *Service) AccountActivity(ctx context.Context, coaID int64, from, to time.Time) ([]JournalEntryLine, error) {
	if to.IsZero() {
		to = time.Now()
	}
	if from.IsZero() {
		from = to.AddDate(-1, 0, 0)
	}
	return s.repo.ListByCOA(ctx, coaID, from, to)
}
