package org

import (
	"context"
	"fmt"

	"github.com/fundline/fundline/internal/shared"
)

// Repository defines read access to user records.
type Repository interface {
	GetUser(ctx context.Context, id int64) (User, error)
}

// Service answers hierarchy queries with an iterative, depth-bounded walk
// instead of recursing over parent pointers.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns a single user.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// Ancestors returns the chain of superiors from the direct parent upward,
// nearest first. The walk stops at the root or at MaxHierarchyDepth.
func (s *Service) Ancestors(ctx context.Context, userID int64) ([]User, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := map[int64]bool{user.ID: true}
	var chain []User
	for depth := 0; user.ParentID != nil; depth++ {
		if depth >= MaxHierarchyDepth {
			return nil, fmt.Errorf("org: hierarchy deeper than %d at user %d: %w", MaxHierarchyDepth, userID, shared.ErrConflict)
		}
		parent, err := s.repo.GetUser(ctx, *user.ParentID)
		if err != nil {
			return nil, err
		}
		if seen[parent.ID] {
			return nil, fmt.Errorf("org: hierarchy cycle at user %d: %w", parent.ID, shared.ErrConflict)
		}
		seen[parent.ID] = true
		chain = append(chain, parent)
		user = parent
	}
	return chain, nil
}

// IsSuperior reports whether candidate appears anywhere above subordinate in
// the hierarchy.
func (s *Service) IsSuperior(ctx context.Context, candidateID, subordinateID int64) (bool, error) {
	if candidateID == subordinateID {
		return false, nil
	}
	chain, err := s.Ancestors(ctx, subordinateID)
	if err != nil {
		return false, err
	}
	for _, u := range chain {
		if u.ID == candidateID {
			return true, nil
		}
	}
	return false, nil
}
