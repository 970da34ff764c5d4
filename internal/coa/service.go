package coa

import (
	"context"
	"errors"
	"fmt"
	"time"

	internalShared "github.com/halisi-erp/halisi-erp/internal/shared"
)

// AuditPort records chart mutations into the audit log.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service implements chart of accounts operations.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewService wires the chart of accounts service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns the full chart ordered by path.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.List(ctx)
}

// Get returns one node.
func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.Get(ctx, id)
}

// DefaultByType returns the active default node for a category.
func (s *Service) DefaultByType(ctx context.Context, t AccountType) (Account, error) {
	return s.repo.GetDefault(ctx, t)
}

// CheckDefaults verifies at startup that every category the posting paths rely
// on has an active default node, so a missing configuration fails loudly once
// instead of deep inside a transaction.
func (s *Service) CheckDefaults(ctx context.Context, types ...AccountType) error {
	for _, t := range types {
		if _, err := s.repo.GetDefault(ctx, t); err != nil {
			return fmt.Errorf("coa: no active default %s node: %w", t, err)
		}
	}
	return nil
}

// Create inserts a new node, deriving depth and path from the parent chain.
func (s *Service) Create(ctx context.Context, input CreateInput) (Account, error) {
	if err := input.Validate(); err != nil {
		return Account{}, err
	}
	var created Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetByName(ctx, input.Name)
		if err != nil && !errors.Is(err, internalShared.ErrNotFound) {
			return err
		}
		if err == nil && existing.ID != 0 {
			return fmt.Errorf("%w: coa: name %q already in use", internalShared.ErrValidation, input.Name)
		}
		node := Account{
			Code:      input.Code,
			Name:      input.Name,
			Type:      AccountType(input.Type),
			ParentID:  input.ParentID,
			IsDefault: input.IsDefault,
			Depth:     0,
			Path:      input.Name,
		}
		if input.ParentID != nil {
			parent, err := tx.GetForUpdate(ctx, *input.ParentID)
			if err != nil {
				return fmt.Errorf("coa: parent %d: %w", *input.ParentID, err)
			}
			if !parent.IsActive {
				return fmt.Errorf("%w: coa: parent %q is inactive", internalShared.ErrValidation, parent.Name)
			}
			if parent.Type != node.Type {
				return fmt.Errorf("%w: coa: parent %q has type %s, node has %s", internalShared.ErrValidation, parent.Name, parent.Type, node.Type)
			}
			node.Depth = parent.Depth + 1
			node.Path = parent.Path + "/" + node.Name
		}
		if node.IsDefault {
			if err := tx.ClearDefault(ctx, node.Type, 0); err != nil {
				return err
			}
		}
		inserted, err := tx.Insert(ctx, node)
		if err != nil {
			return err
		}
		created = inserted
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, "coa.create", created.ID, map[string]any{"name": created.Name, "type": string(created.Type)})
	return created, nil
}

// Update renames or re-parents a node. Depth and path are recomputed for the
// node and its whole subtree; cycles are rejected.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (Account, error) {
	if err := input.Validate(); err != nil {
		return Account{}, err
	}
	var updated Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !current.IsActive {
			return fmt.Errorf("%w: coa: node %q is inactive", internalShared.ErrInvariantViolation, current.Name)
		}
		if input.Name != current.Name {
			existing, err := tx.GetByName(ctx, input.Name)
			if err != nil && !errors.Is(err, internalShared.ErrNotFound) {
				return err
			}
			if err == nil && existing.ID != id {
				return fmt.Errorf("%w: coa: name %q already in use", internalShared.ErrValidation, input.Name)
			}
		}

		all, err := tx.ListAll(ctx)
		if err != nil {
			return err
		}
		byID := make(map[int64]Account, len(all))
		children := make(map[int64][]int64)
		for _, a := range all {
			byID[a.ID] = a
			if a.ParentID != nil {
				children[*a.ParentID] = append(children[*a.ParentID], a.ID)
			}
		}

		next := current
		next.Name = input.Name
		next.ParentID = input.ParentID
		next.IsDefault = input.IsDefault
		next.Depth = 0
		next.Path = next.Name
		if input.ParentID != nil {
			parent, ok := byID[*input.ParentID]
			if !ok {
				return fmt.Errorf("coa: parent %d: %w", *input.ParentID, internalShared.ErrNotFound)
			}
			if !parent.IsActive {
				return fmt.Errorf("%w: coa: parent %q is inactive", internalShared.ErrValidation, parent.Name)
			}
			if parent.Type != current.Type {
				return fmt.Errorf("%w: coa: parent %q has type %s, node has %s", internalShared.ErrValidation, parent.Name, parent.Type, current.Type)
			}
			// Walk up from the new parent; hitting the node itself is a cycle.
			for cursor := &parent; cursor != nil; {
				if cursor.ID == id {
					return fmt.Errorf("%w: coa: moving %q under its own subtree", internalShared.ErrInvariantViolation, current.Name)
				}
				if cursor.ParentID == nil {
					break
				}
				up := byID[*cursor.ParentID]
				cursor = &up
			}
			next.Depth = parent.Depth + 1
			next.Path = parent.Path + "/" + next.Name
		}

		if next.IsDefault && !current.IsDefault {
			if err := tx.ClearDefault(ctx, current.Type, id); err != nil {
				return err
			}
		}
		if err := tx.UpdateNode(ctx, next); err != nil {
			return err
		}

		// Recompute the subtree below the moved node breadth-first.
		byID[id] = next
		queue := append([]int64(nil), children[id]...)
		for len(queue) > 0 {
			childID := queue[0]
			queue = queue[1:]
			child := byID[childID]
			parent := byID[*child.ParentID]
			child.Depth = parent.Depth + 1
			child.Path = parent.Path + "/" + child.Name
			if err := tx.UpdateDepthPath(ctx, child.ID, child.Depth, child.Path); err != nil {
				return err
			}
			byID[childID] = child
			queue = append(queue, children[childID]...)
		}
		updated = next
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, "coa.update", updated.ID, map[string]any{"name": updated.Name, "path": updated.Path})
	return updated, nil
}

// Deactivate soft-disables a node. Nodes with active children, active linked
// financial accounts, or any historical journal lines must stay active.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		node, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !node.IsActive {
			return fmt.Errorf("%w: coa: node %q already inactive", internalShared.ErrValidation, node.Name)
		}
		if node.IsDefault {
			return fmt.Errorf("%w: coa: node %q is the %s default", internalShared.ErrInvariantViolation, node.Name, node.Type)
		}
		hasChildren, err := tx.HasActiveChildren(ctx, id)
		if err != nil {
			return err
		}
		if hasChildren {
			return fmt.Errorf("%w: coa: node %q has active children", internalShared.ErrInvariantViolation, node.Name)
		}
		linked, err := tx.CountActiveLinkedAccounts(ctx, id)
		if err != nil {
			return err
		}
		if linked > 0 {
			return fmt.Errorf("%w: coa: node %q is linked by %d active financial accounts", internalShared.ErrInvariantViolation, node.Name, linked)
		}
		lines, err := tx.CountJournalLines(ctx, id)
		if err != nil {
			return err
		}
		if lines > 0 {
			return fmt.Errorf("%w: coa: node %q has %d journal lines", internalShared.ErrInvariantViolation, node.Name, lines)
		}
		return tx.SetActive(ctx, id, false)
	})
	if err != nil {
		return err
	}
	s.record(ctx, "coa.deactivate", id, nil)
	return nil
}

func (s *Service) record(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		Action:   action,
		Entity:   "chart_of_account",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now(),
	})
}
