package coa

import (
	"fmt"

	"github.com/halisi-erp/halisi-erp/internal/shared"
)

// CreateInput groups fields required to create a chart node.
type CreateInput struct {
	Code      string `json:"code"`
	Name      string `json:"name" validate:"required"`
	Type      string `json:"type" validate:"required"`
	ParentID  *int64 `json:"parentId"`
	IsDefault bool   `json:"isDefault"`
}

// Validate ensures creation input meets minimum criteria.
func (in CreateInput) Validate() error {
	if in.Name == "" {
		return fmt.Errorf("%w: coa: name required", shared.ErrValidation)
	}
	if !AccountType(in.Type).Valid() {
		return fmt.Errorf("%w: coa: unknown account type %q", shared.ErrValidation, in.Type)
	}
	return nil
}

// UpdateInput carries the mutable fields of a chart node.
type UpdateInput struct {
	Name      string `json:"name" validate:"required"`
	ParentID  *int64 `json:"parentId"`
	IsDefault bool   `json:"isDefault"`
}

// Validate ensures update input meets minimum criteria.
func (in UpdateInput) Validate() error {
	if in.Name == "" {
		return fmt.Errorf("%w: coa: name required", shared.ErrValidation)
	}
	return nil
}
