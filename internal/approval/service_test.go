package approval

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fundline/fundline/internal/allocation"
	"github.com/fundline/fundline/internal/shared"
)

type memoryApprovalRepo struct {
	expenses map[int64]Expense
	bills    map[int64]Bill
	nextID   int64
}

func newMemoryApprovalRepo() *memoryApprovalRepo {
	return &memoryApprovalRepo{expenses: make(map[int64]Expense), bills: make(map[int64]Bill)}
}

func (r *memoryApprovalRepo) CreateExpense(ctx context.Context, e Expense) (int64, error) {
	r.nextID++
	e.ID = r.nextID
	r.expenses[e.ID] = e
	return e.ID, nil
}

func (r *memoryApprovalRepo) GetExpense(ctx context.Context, id int64) (Expense, error) {
	e, ok := r.expenses[id]
	if !ok {
		return Expense{}, fmt.Errorf("expense %d: %w", id, shared.ErrNotFound)
	}
	return e, nil
}

func (r *memoryApprovalRepo) UpdateExpense(ctx context.Context, e Expense) error {
	if _, ok := r.expenses[e.ID]; !ok {
		return shared.ErrNotFound
	}
	r.expenses[e.ID] = e
	return nil
}

func (r *memoryApprovalRepo) DeleteExpense(ctx context.Context, id int64) error {
	if _, ok := r.expenses[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.expenses, id)
	return nil
}

func (r *memoryApprovalRepo) ListExpenses(ctx context.Context, filter ListFilter) ([]Expense, int, error) {
	var out []Expense
	for _, e := range r.expenses {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.SubmittedBy != 0 && e.SubmittedBy != filter.SubmittedBy {
			continue
		}
		out = append(out, e)
	}
	return out, len(out), nil
}

func (r *memoryApprovalRepo) CreateBill(ctx context.Context, b Bill) (int64, error) {
	r.nextID++
	b.ID = r.nextID
	r.bills[b.ID] = b
	return b.ID, nil
}

func (r *memoryApprovalRepo) GetBill(ctx context.Context, id int64) (Bill, error) {
	b, ok := r.bills[id]
	if !ok {
		return Bill{}, fmt.Errorf("bill %d: %w", id, shared.ErrNotFound)
	}
	return b, nil
}

func (r *memoryApprovalRepo) UpdateBill(ctx context.Context, b Bill) error {
	if _, ok := r.bills[b.ID]; !ok {
		return shared.ErrNotFound
	}
	r.bills[b.ID] = b
	return nil
}

func (r *memoryApprovalRepo) DeleteBill(ctx context.Context, id int64) error {
	if _, ok := r.bills[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.bills, id)
	return nil
}

func (r *memoryApprovalRepo) ListBills(ctx context.Context, filter ListFilter) ([]Bill, int, error) {
	var out []Bill
	for _, b := range r.bills {
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		out = append(out, b)
	}
	return out, len(out), nil
}

type stubAllocations struct {
	allocations map[int64]allocation.FundAllocation
}

func (s stubAllocations) Get(ctx context.Context, id int64) (allocation.FundAllocation, error) {
	a, ok := s.allocations[id]
	if !ok {
		return allocation.FundAllocation{}, fmt.Errorf("allocation %d: %w", id, shared.ErrNotFound)
	}
	return a, nil
}

type stubUtilization struct {
	remaining map[int64]decimal.Decimal
}

func (s stubUtilization) RemainingBalance(ctx context.Context, allocationID int64) (decimal.Decimal, error) {
	return s.remaining[allocationID], nil
}

func amt(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type memoryIdemGuard struct {
	keys map[string]bool
}

func (g *memoryIdemGuard) CheckAndInsert(ctx context.Context, key, module string) error {
	if g.keys == nil {
		g.keys = make(map[string]bool)
	}
	if g.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	g.keys[key] = true
	return nil
}

func (g *memoryIdemGuard) Delete(ctx context.Context, key string) error {
	delete(g.keys, key)
	return nil
}

func newApprovalService(cfg Config) (*Service, *memoryApprovalRepo, stubAllocations, stubUtilization) {
	repo := newMemoryApprovalRepo()
	allocs := stubAllocations{allocations: make(map[int64]allocation.FundAllocation)}
	util := stubUtilization{remaining: make(map[int64]decimal.Decimal)}
	return NewService(repo, allocs, util, &memoryIdemGuard{}, cfg), repo, allocs, util
}

var (
	submitter = shared.Principal{UserID: 10, Role: "supervisor"}
	approver  = shared.Principal{UserID: 20, Role: "manager"}
)

func TestSubmitBillDerivesGST(t *testing.T) {
	svc, _, _, _ := newApprovalService(Config{AllowOvercommit: true})

	b, err := svc.SubmitBill(context.Background(), submitter, SubmitBillInput{
		SiteID:     1,
		VendorName: "Sharma Steels",
		BaseAmount: amt("5000"),
		GSTRate:    amt("18"),
	})
	require.NoError(t, err)
	require.Equal(t, "900.00", b.GSTAmount.StringFixed(2))
	require.Equal(t, "5900.00", b.TotalAmount.StringFixed(2))
	require.Equal(t, StatusPending, b.Status)
	require.Equal(t, submitter.UserID, b.SubmittedBy)
}

func TestSubmitValidation(t *testing.T) {
	svc, _, allocs, _ := newApprovalService(Config{AllowOvercommit: true})
	ctx := context.Background()

	_, err := svc.SubmitExpense(ctx, submitter, SubmitExpenseInput{SiteID: 1, Category: "materials", RequestedAmount: amt("0")})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.SubmitExpense(ctx, submitter, SubmitExpenseInput{SiteID: 1, RequestedAmount: amt("100")})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.SubmitBill(ctx, submitter, SubmitBillInput{SiteID: 1, VendorName: "V", BaseAmount: amt("100"), GSTRate: amt("-1")})
	require.ErrorIs(t, err, shared.ErrValidation)

	allocs.allocations[5] = allocation.FundAllocation{ID: 5, Status: allocation.StatusApproved}
	fundID := int64(5)
	_, err = svc.SubmitExpense(ctx, submitter, SubmitExpenseInput{SiteID: 1, Category: "materials", FundAllocationID: &fundID, RequestedAmount: amt("100")})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestDecideExpenseLifecycle(t *testing.T) {
	svc, _, _, _ := newApprovalService(Config{AllowOvercommit: true})
	ctx := context.Background()

	e, err := svc.SubmitExpense(ctx, submitter, SubmitExpenseInput{SiteID: 1, Category: "materials", RequestedAmount: amt("5000")})
	require.NoError(t, err)

	_, err = svc.DecideExpense(ctx, approver, e.ID, DecideInput{Action: ActionPay, PaymentMethod: "bank"})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	renegotiated := amt("4500")
	e, err = svc.DecideExpense(ctx, approver, e.ID, DecideInput{Action: ActionApprove, ApprovedAmount: &renegotiated})
	require.NoError(t, err)
	require.Equal(t, StatusApproved, e.Status)
	require.Equal(t, "4500.00", e.ApprovedAmount.StringFixed(2))
	require.Equal(t, "5000.00", e.RequestedAmount.StringFixed(2))
	require.Equal(t, approver.UserID, *e.ApprovedBy)
	require.NotNil(t, e.ApprovedAt)

	_, err = svc.DecideExpense(ctx, approver, e.ID, DecideInput{Action: ActionApprove})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = svc.DecideExpense(ctx, approver, e.ID, DecideInput{Action: ActionCredit})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = svc.DecideExpense(ctx, approver, e.ID, DecideInput{Action: ActionPay})
	require.ErrorIs(t, err, shared.ErrValidation)

	e, err = svc.DecideExpense(ctx, approver, e.ID, DecideInput{Action: ActionPay, PaymentMethod: "bank", PaymentReference: "TXN-9"})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, e.Status)
	require.NotNil(t, e.PaidDate)
	require.Equal(t, "bank", *e.PaymentMethod)
}

func TestDecideApproveDefaultsToRequested(t *testing.T) {
	svc, _, _, _ := newApprovalService(Config{AllowOvercommit: true})
	ctx := context.Background()

	e, err := svc.SubmitExpense(ctx, submitter, SubmitExpenseInput{SiteID: 1, Category: "fuel", RequestedAmount: amt("1200")})
	require.NoError(t, err)
	e, err = svc.DecideExpense(ctx, approver, e.ID, DecideInput{Action: ActionApprove})
	require.NoError(t, err)
	require.Equal(t, "1200.00", e.ApprovedAmount.StringFixed(2))

	negative := amt("-1")
	e2, err := svc.SubmitExpense(ctx, submitter, SubmitExpenseInput{SiteID: 1, Category: "fuel", RequestedAmount: amt("100")})
	require.NoError(t, err)
	_, err = svc.DecideExpense(ctx, approver, e2.ID, DecideInput{Action: ActionApprove, ApprovedAmount: &negative})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDecideRejectRequiresNotes(t *testing.T) {
	svc, _, _, _ := newApprovalService(Config{AllowOvercommit: true})
	ctx := context.Background()

	e, err := svc.SubmitExpense(ctx, submitter, SubmitExpenseInput{SiteID: 1, Category: "misc", RequestedAmount: amt("300")})
	require.NoError(t, err)

	_, err = svc.DecideExpense(ctx, approver, e.ID, DecideInput{Action: ActionReject})
	require.ErrorIs(t, err, shared.ErrValidation)

	e, err = svc.DecideExpense(ctx, approver, e.ID, DecideInput{Action: ActionReject, Notes: "duplicate request"})
	require.NoError(t, err)
	require.Equal(t, StatusRejected, e.Status)
	require.Equal(t, "duplicate request", e.Notes)
	require.Nil(t, e.ApprovedAmount)
}

func TestDecideBillCreditPath(t *testing.T) {
	svc, _, _, _ := newApprovalService(Config{AllowOvercommit: true})
	ctx := context.Background()

	b, err := svc.SubmitBill(ctx, submitter, SubmitBillInput{SiteID: 1, VendorName: "V", BaseAmount: amt("1000"), GSTRate: amt("5")})
	require.NoError(t, err)

	_, err = svc.DecideBill(ctx, approver, b.ID, DecideInput{Action: ActionCredit})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	b, err = svc.DecideBill(ctx, approver, b.ID, DecideInput{Action: ActionApprove})
	require.NoError(t, err)
	require.Equal(t, "1050.00", b.ApprovedAmount.StringFixed(2))

	b, err = svc.DecideBill(ctx, approver, b.ID, DecideInput{Action: ActionCredit})
	require.NoError(t, err)
	require.Equal(t, StatusCredited, b.Status)

	b, err = svc.DecideBill(ctx, approver, b.ID, DecideInput{Action: ActionPay, PaymentMethod: "cheque"})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, b.Status)
}

func TestSubmitterEditRules(t *testing.T) {
	svc, _, _, _ := newApprovalService(Config{AllowOvercommit: true})
	ctx := context.Background()

	e, err := svc.SubmitExpense(ctx, submitter, SubmitExpenseInput{SiteID: 1, Category: "misc", RequestedAmount: amt("300")})
	require.NoError(t, err)

	other := shared.Principal{UserID: 99, Role: "supervisor"}
	newAmount := amt("350")
	_, err = svc.UpdateExpense(ctx, other, e.ID, UpdateExpenseInput{RequestedAmount: &newAmount})
	require.ErrorIs(t, err, shared.ErrForbidden)

	e, err = svc.UpdateExpense(ctx, submitter, e.ID, UpdateExpenseInput{RequestedAmount: &newAmount})
	require.NoError(t, err)
	require.Equal(t, "350.00", e.RequestedAmount.StringFixed(2))

	_, err = svc.DecideExpense(ctx, approver, e.ID, DecideInput{Action: ActionApprove})
	require.NoError(t, err)

	_, err = svc.UpdateExpense(ctx, submitter, e.ID, UpdateExpenseInput{RequestedAmount: &newAmount})
	require.ErrorIs(t, err, shared.ErrImmutableState)
	err = svc.DeleteExpense(ctx, submitter, e.ID)
	require.ErrorIs(t, err, shared.ErrImmutableState)

	e2, err := svc.SubmitExpense(ctx, submitter, SubmitExpenseInput{SiteID: 1, Category: "misc", RequestedAmount: amt("10")})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteExpense(ctx, submitter, e2.ID))
	_, err = svc.GetExpense(ctx, e2.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestBillUpdateRederivesGST(t *testing.T) {
	svc, _, _, _ := newApprovalService(Config{AllowOvercommit: true})
	ctx := context.Background()

	b, err := svc.SubmitBill(ctx, submitter, SubmitBillInput{SiteID: 1, VendorName: "V", BaseAmount: amt("1000"), GSTRate: amt("18")})
	require.NoError(t, err)

	newBase := amt("2000")
	b, err = svc.UpdateBill(ctx, submitter, b.ID, UpdateBillInput{BaseAmount: &newBase})
	require.NoError(t, err)
	require.Equal(t, "360.00", b.GSTAmount.StringFixed(2))
	require.Equal(t, "2360.00", b.TotalAmount.StringFixed(2))
}

func TestOvercommitHardStop(t *testing.T) {
	svc, _, allocs, util := newApprovalService(Config{AllowOvercommit: false})
	ctx := context.Background()

	allocs.allocations[7] = allocation.FundAllocation{ID: 7, Status: allocation.StatusDisbursed}
	util.remaining[7] = amt("1000")
	fundID := int64(7)

	e, err := svc.SubmitExpense(ctx, submitter, SubmitExpenseInput{SiteID: 1, Category: "materials", FundAllocationID: &fundID, RequestedAmount: amt("1500")})
	require.NoError(t, err)

	_, err = svc.DecideExpense(ctx, approver, e.ID, DecideInput{Action: ActionApprove})
	require.ErrorIs(t, err, shared.ErrValidation)

	within := amt("900")
	e, err = svc.DecideExpense(ctx, approver, e.ID, DecideInput{Action: ActionApprove, ApprovedAmount: &within})
	require.NoError(t, err)
	require.Equal(t, StatusApproved, e.Status)
}

func TestPayFenceBlocksDuplicate(t *testing.T) {
	svc, repo, _, _ := newApprovalService(Config{AllowOvercommit: true})
	ctx := context.Background()

	e, err := svc.SubmitExpense(ctx, submitter, SubmitExpenseInput{SiteID: 1, Category: "misc", RequestedAmount: amt("300")})
	require.NoError(t, err)
	_, err = svc.DecideExpense(ctx, approver, e.ID, DecideInput{Action: ActionApprove})
	require.NoError(t, err)
	_, err = svc.DecideExpense(ctx, approver, e.ID, DecideInput{Action: ActionPay, PaymentMethod: "bank"})
	require.NoError(t, err)

	// A racing pay that read the record before the first one committed
	// sees approved status but must still hit the fence.
	stale := repo.expenses[e.ID]
	stale.Status = StatusApproved
	repo.expenses[e.ID] = stale
	_, err = svc.DecideExpense(ctx, approver, e.ID, DecideInput{Action: ActionPay, PaymentMethod: "bank"})
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
}

func TestOvercommitAdvisoryByDefault(t *testing.T) {
	svc, _, allocs, util := newApprovalService(Config{AllowOvercommit: true})
	ctx := context.Background()

	allocs.allocations[7] = allocation.FundAllocation{ID: 7, Status: allocation.StatusDisbursed}
	util.remaining[7] = amt("100")
	fundID := int64(7)

	e, err := svc.SubmitExpense(ctx, submitter, SubmitExpenseInput{SiteID: 1, Category: "materials", FundAllocationID: &fundID, RequestedAmount: amt("1500")})
	require.NoError(t, err)

	e, err = svc.DecideExpense(ctx, approver, e.ID, DecideInput{Action: ActionApprove})
	require.NoError(t, err)
	require.Equal(t, StatusApproved, e.Status)
}
