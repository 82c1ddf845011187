package allocation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fundline/fundline/internal/shared"
)

// Repository defines allocation data access.
type Repository interface {
	Create(ctx context.Context, a FundAllocation) (int64, error)
	Get(ctx context.Context, id int64) (FundAllocation, error)
	Update(ctx context.Context, a FundAllocation) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter ListFilter) ([]FundAllocation, int, error)
	// CountReferences counts expenses, bills, ledger entries and child
	// allocations funded by the allocation. Used to guard deletion.
	CountReferences(ctx context.Context, id int64) (int, error)
}

// Hierarchy answers superior/subordinate queries for approval gating.
type Hierarchy interface {
	IsSuperior(ctx context.Context, candidateID, subordinateID int64) (bool, error)
}

// Service owns the fund allocation lifecycle.
type Service struct {
	repo Repository
	org  Hierarchy
}

// NewService constructs a Service.
func NewService(repo Repository, org Hierarchy) *Service {
	return &Service{repo: repo, org: org}
}

// Create records a new pending allocation.
func (s *Service) Create(ctx context.Context, input CreateInput) (FundAllocation, error) {
	if !input.Amount.IsPositive() {
		return FundAllocation{}, fmt.Errorf("allocation: amount must be positive: %w", shared.ErrValidation)
	}
	if input.FromUser == input.ToUser {
		return FundAllocation{}, fmt.Errorf("allocation: funder and recipient must differ: %w", shared.ErrValidation)
	}
	if strings.TrimSpace(input.Purpose) == "" {
		return FundAllocation{}, fmt.Errorf("allocation: purpose required: %w", shared.ErrValidation)
	}
	if input.ParentID != nil {
		parent, err := s.repo.Get(ctx, *input.ParentID)
		if err != nil {
			return FundAllocation{}, err
		}
		if parent.Status != StatusDisbursed {
			return FundAllocation{}, fmt.Errorf("allocation: parent %d not disbursed: %w", parent.ID, shared.ErrInvalidState)
		}
	}

	now := time.Now()
	allocDate := input.AllocationDate
	if allocDate.IsZero() {
		allocDate = now
	}
	ref := input.ReferenceNumber
	if ref == "" {
		ref = generateReference(allocDate)
	}

	a := FundAllocation{
		FromUser:        input.FromUser,
		ToUser:          input.ToUser,
		SiteID:          input.SiteID,
		ParentID:        input.ParentID,
		Amount:          shared.Money2(input.Amount),
		Purpose:         input.Purpose,
		Description:     input.Description,
		Status:          StatusPending,
		AllocationDate:  allocDate,
		ReferenceNumber: ref,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	id, err := s.repo.Create(ctx, a)
	if err != nil {
		return FundAllocation{}, err
	}
	a.ID = id
	return a, nil
}

// Get returns one allocation.
func (s *Service) Get(ctx context.Context, id int64) (FundAllocation, error) {
	return s.repo.Get(ctx, id)
}

// List returns allocations matching the filter plus the unpaginated total.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]FundAllocation, shared.Pagination, error) {
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return rows, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Transition moves an allocation through its state machine. Approve and
// reject are restricted to the funder's superior (or the funder itself, which
// covers self-approving seed data); disburse to the recipient.
func (s *Service) Transition(ctx context.Context, id int64, next Status, actor shared.Principal) (FundAllocation, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return FundAllocation{}, err
	}

	switch {
	case a.Status == StatusPending && (next == StatusApproved || next == StatusRejected):
		allowed := actor.UserID == a.FromUser
		if !allowed {
			allowed, err = s.org.IsSuperior(ctx, actor.UserID, a.FromUser)
			if err != nil {
				return FundAllocation{}, err
			}
		}
		if !allowed {
			return FundAllocation{}, fmt.Errorf("allocation: user %d may not decide allocation %d: %w", actor.UserID, id, shared.ErrForbidden)
		}
		a.Status = next
	case a.Status == StatusApproved && next == StatusDisbursed:
		if actor.UserID != a.ToUser {
			return FundAllocation{}, fmt.Errorf("allocation: only recipient may confirm disbursal: %w", shared.ErrForbidden)
		}
		now := time.Now()
		a.Status = StatusDisbursed
		a.DisbursedDate = &now
	default:
		return FundAllocation{}, fmt.Errorf("allocation: %s -> %s: %w", a.Status, next, shared.ErrInvalidState)
	}

	a.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, a); err != nil {
		return FundAllocation{}, err
	}
	return a, nil
}

// Update applies a field patch subject to the status edit rules: everything
// while pending, reference fields only while approved, nothing afterwards.
func (s *Service) Update(ctx context.Context, id int64, patch UpdateInput) (FundAllocation, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return FundAllocation{}, err
	}

	switch a.Status {
	case StatusPending:
		if patch.Amount != nil {
			if !patch.Amount.IsPositive() {
				return FundAllocation{}, fmt.Errorf("allocation: amount must be positive: %w", shared.ErrValidation)
			}
			a.Amount = shared.Money2(*patch.Amount)
		}
		if patch.ToUser != nil {
			if *patch.ToUser == a.FromUser {
				return FundAllocation{}, fmt.Errorf("allocation: funder and recipient must differ: %w", shared.ErrValidation)
			}
			a.ToUser = *patch.ToUser
		}
		if patch.Purpose != nil {
			a.Purpose = *patch.Purpose
		}
		fallthrough
	case StatusApproved:
		if a.Status == StatusApproved && (patch.Amount != nil || patch.ToUser != nil || patch.Purpose != nil) {
			return FundAllocation{}, fmt.Errorf("allocation: financial fields locked after approval: %w", shared.ErrImmutableState)
		}
		if patch.SiteID != nil {
			a.SiteID = patch.SiteID
		}
		if patch.Description != nil {
			a.Description = *patch.Description
		}
		if patch.ReferenceNumber != nil {
			a.ReferenceNumber = *patch.ReferenceNumber
		}
	default:
		return FundAllocation{}, fmt.Errorf("allocation: no edits once %s: %w", a.Status, shared.ErrImmutableState)
	}

	a.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, a); err != nil {
		return FundAllocation{}, err
	}
	return a, nil
}

// Delete removes a pending, unreferenced allocation.
func (s *Service) Delete(ctx context.Context, id int64) error {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if a.Status != StatusPending {
		return fmt.Errorf("allocation: only pending allocations may be deleted: %w", shared.ErrInvalidState)
	}
	refs, err := s.repo.CountReferences(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return fmt.Errorf("allocation: %d records reference allocation %d: %w", refs, id, shared.ErrConflict)
	}
	return s.repo.Delete(ctx, id)
}

func generateReference(at time.Time) string {
	return fmt.Sprintf("ALC-%s-%s", at.Format("20060102"), uuid.NewString()[:8])
}
