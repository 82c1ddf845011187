package allocation

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fundline/fundline/internal/shared"
)

type memoryAllocationRepo struct {
	allocations map[int64]FundAllocation
	references  map[int64]int
	nextID      int64
}

func newMemoryAllocationRepo() *memoryAllocationRepo {
	return &memoryAllocationRepo{
		allocations: make(map[int64]FundAllocation),
		references:  make(map[int64]int),
	}
}

func (r *memoryAllocationRepo) Create(ctx context.Context, a FundAllocation) (int64, error) {
	r.nextID++
	a.ID = r.nextID
	r.allocations[a.ID] = a
	return a.ID, nil
}

func (r *memoryAllocationRepo) Get(ctx context.Context, id int64) (FundAllocation, error) {
	a, ok := r.allocations[id]
	if !ok {
		return FundAllocation{}, fmt.Errorf("allocation %d: %w", id, shared.ErrNotFound)
	}
	return a, nil
}

func (r *memoryAllocationRepo) Update(ctx context.Context, a FundAllocation) error {
	if _, ok := r.allocations[a.ID]; !ok {
		return shared.ErrNotFound
	}
	r.allocations[a.ID] = a
	return nil
}

func (r *memoryAllocationRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.allocations[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.allocations, id)
	return nil
}

func (r *memoryAllocationRepo) List(ctx context.Context, filter ListFilter) ([]FundAllocation, int, error) {
	var out []FundAllocation
	for _, a := range r.allocations {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.ToUser != 0 && a.ToUser != filter.ToUser {
			continue
		}
		out = append(out, a)
	}
	return out, len(out), nil
}

func (r *memoryAllocationRepo) CountReferences(ctx context.Context, id int64) (int, error) {
	count := r.references[id]
	for _, a := range r.allocations {
		if a.ParentID != nil && *a.ParentID == id {
			count++
		}
	}
	return count, nil
}

type stubHierarchy struct {
	superiors map[int64][]int64
}

func (s *stubHierarchy) IsSuperior(ctx context.Context, candidateID, subordinateID int64) (bool, error) {
	for _, id := range s.superiors[subordinateID] {
		if id == candidateID {
			return true, nil
		}
	}
	return false, nil
}

func newTestService() (*Service, *memoryAllocationRepo) {
	repo := newMemoryAllocationRepo()
	hierarchy := &stubHierarchy{superiors: map[int64][]int64{
		2: {1}, // user 1 is user 2's superior
		3: {2, 1},
	}}
	return NewService(repo, hierarchy), repo
}

func money(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{FromUser: 1, ToUser: 2, Amount: money("0"), Purpose: "materials"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, CreateInput{FromUser: 1, ToUser: 1, Amount: money("100"), Purpose: "materials"})
	require.ErrorIs(t, err, shared.ErrValidation)

	a, err := svc.Create(ctx, CreateInput{FromUser: 1, ToUser: 2, Amount: money("50000"), Purpose: "materials"})
	require.NoError(t, err)
	require.Equal(t, StatusPending, a.Status)
	require.NotEmpty(t, a.ReferenceNumber)
	require.True(t, a.Amount.Equal(money("50000")))
}

func TestTransitionStateMachine(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	funder := shared.Principal{UserID: 2, Role: "manager"}
	superior := shared.Principal{UserID: 1, Role: "finance"}
	recipient := shared.Principal{UserID: 3, Role: "supervisor"}

	a, err := svc.Create(ctx, CreateInput{FromUser: 2, ToUser: 3, Amount: money("10000"), Purpose: "labour"})
	require.NoError(t, err)

	// disburse before approval is refused
	_, err = svc.Transition(ctx, a.ID, StatusDisbursed, recipient)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	// a stranger cannot approve
	_, err = svc.Transition(ctx, a.ID, StatusApproved, shared.Principal{UserID: 99, Role: "finance"})
	require.ErrorIs(t, err, shared.ErrForbidden)

	// the funder's superior can
	a, err = svc.Transition(ctx, a.ID, StatusApproved, superior)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, a.Status)

	// approved -> rejected is not a legal edge
	_, err = svc.Transition(ctx, a.ID, StatusRejected, superior)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	// only the recipient may confirm disbursal
	_, err = svc.Transition(ctx, a.ID, StatusDisbursed, funder)
	require.ErrorIs(t, err, shared.ErrForbidden)

	a, err = svc.Transition(ctx, a.ID, StatusDisbursed, recipient)
	require.NoError(t, err)
	require.Equal(t, StatusDisbursed, a.Status)
	require.NotNil(t, a.DisbursedDate)

	// terminal
	_, err = svc.Transition(ctx, a.ID, StatusApproved, superior)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	stored := repo.allocations[a.ID]
	require.Equal(t, StatusDisbursed, stored.Status)
}

func TestSelfApprovalAllowedForFunder(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateInput{FromUser: 1, ToUser: 2, Amount: money("500"), Purpose: "seed"})
	require.NoError(t, err)

	a, err = svc.Transition(ctx, a.ID, StatusApproved, shared.Principal{UserID: 1, Role: "admin"})
	require.NoError(t, err)
	require.Equal(t, StatusApproved, a.Status)
}

func TestUpdateFieldRulesByStatus(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	superior := shared.Principal{UserID: 1, Role: "finance"}
	recipient := shared.Principal{UserID: 3, Role: "supervisor"}

	a, err := svc.Create(ctx, CreateInput{FromUser: 2, ToUser: 3, Amount: money("10000"), Purpose: "labour"})
	require.NoError(t, err)

	// pending: full field set editable
	amt := money("12000")
	a, err = svc.Update(ctx, a.ID, UpdateInput{Amount: &amt})
	require.NoError(t, err)
	require.True(t, a.Amount.Equal(amt))

	a, err = svc.Transition(ctx, a.ID, StatusApproved, superior)
	require.NoError(t, err)

	// approved: financial fields are locked
	_, err = svc.Update(ctx, a.ID, UpdateInput{Amount: &amt})
	require.ErrorIs(t, err, shared.ErrImmutableState)

	desc := "steel delivery batch 2"
	a, err = svc.Update(ctx, a.ID, UpdateInput{Description: &desc})
	require.NoError(t, err)
	require.Equal(t, desc, a.Description)

	a, err = svc.Transition(ctx, a.ID, StatusDisbursed, recipient)
	require.NoError(t, err)

	// disbursed: nothing is editable
	_, err = svc.Update(ctx, a.ID, UpdateInput{Description: &desc})
	require.ErrorIs(t, err, shared.ErrImmutableState)
}

func TestDeleteRules(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateInput{FromUser: 1, ToUser: 2, Amount: money("1000"), Purpose: "tools"})
	require.NoError(t, err)

	// pending + unreferenced deletes cleanly
	require.NoError(t, svc.Delete(ctx, a.ID))

	b, err := svc.Create(ctx, CreateInput{FromUser: 1, ToUser: 2, Amount: money("1000"), Purpose: "tools"})
	require.NoError(t, err)
	repo.references[b.ID] = 2
	err = svc.Delete(ctx, b.ID)
	require.ErrorIs(t, err, shared.ErrConflict)

	c, err := svc.Create(ctx, CreateInput{FromUser: 1, ToUser: 2, Amount: money("1000"), Purpose: "tools"})
	require.NoError(t, err)
	_, err = svc.Transition(ctx, c.ID, StatusApproved, shared.Principal{UserID: 1, Role: "admin"})
	require.NoError(t, err)
	err = svc.Delete(ctx, c.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestSubAllocationRequiresDisbursedParent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	parent, err := svc.Create(ctx, CreateInput{FromUser: 1, ToUser: 2, Amount: money("50000"), Purpose: "site fund"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateInput{FromUser: 2, ToUser: 3, Amount: money("10000"), Purpose: "sub", ParentID: &parent.ID})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = svc.Transition(ctx, parent.ID, StatusApproved, shared.Principal{UserID: 1, Role: "admin"})
	require.NoError(t, err)
	_, err = svc.Transition(ctx, parent.ID, StatusDisbursed, shared.Principal{UserID: 2, Role: "manager"})
	require.NoError(t, err)

	child, err := svc.Create(ctx, CreateInput{FromUser: 2, ToUser: 3, Amount: money("10000"), Purpose: "sub", ParentID: &parent.ID})
	require.NoError(t, err)
	require.Equal(t, parent.ID, *child.ParentID)
}
