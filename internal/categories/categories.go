// Package categories stores expense and income categories. Each category
// points at the chart node its journal lines post against.
package categories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/halisi-erp/halisi-erp/internal/platform/db"
	"github.com/halisi-erp/halisi-erp/internal/shared"
)

type Kind string

const (
	KindExpense Kind = "EXPENSE"
	KindIncome  Kind = "INCOME"
)

type Category struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Kind     Kind   `json:"kind"`
	COAID    int64  `json:"coaId"`
	IsActive bool   `json:"isActive"`
}

// Store reads categories. It binds to either a pool or a transaction so
// orchestrators can validate categories inside their own transaction.
type Store struct {
	db db.DBTX
}

func NewStore(conn db.DBTX) *Store {
	return &Store{db: conn}
}

func (s *Store) Get(ctx context.Context, id int64) (Category, error) {
	return scanCategory(s.db.QueryRow(ctx,
		`SELECT id, name, kind, coa_id, is_active FROM categories WHERE id=$1`, id))
}

// GetActive returns the category or a validation error naming why it is
// unusable, for orchestrator precondition checks.
func (s *Store) GetActive(ctx context.Context, id int64, kind Kind) (Category, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return Category{}, err
	}
	if c.Kind != kind {
		return Category{}, fmt.Errorf("%w: categories: %q is a %s category, not %s", shared.ErrValidation, c.Name, c.Kind, kind)
	}
	if !c.IsActive {
		return Category{}, fmt.Errorf("%w: categories: %q is inactive", shared.ErrValidation, c.Name)
	}
	return c, nil
}

func scanCategory(row pgx.Row) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.Kind, &c.COAID, &c.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Category{}, shared.ErrNotFound
		}
		return Category{}, err
	}
	return c, nil
}
