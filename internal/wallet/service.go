package wallet

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fundline/fundline/internal/shared"
)

// Repository reads the row-level aggregates utilization is derived from.
type Repository interface {
	// AllocationAmount returns the allocated amount, shared.ErrNotFound
	// when the allocation does not exist.
	AllocationAmount(ctx context.Context, allocationID int64) (decimal.Decimal, error)
	// ExpenseTotal sums decided expense amounts (approved or paid) funded
	// by the allocation.
	ExpenseTotal(ctx context.Context, allocationID int64) (decimal.Decimal, error)
	// BillTotal sums decided bill amounts (approved, credited or paid)
	// funded by the allocation.
	BillTotal(ctx context.Context, allocationID int64) (decimal.Decimal, error)
	// LedgerDebitNet returns sum(debit) - sum(credit) of ledger entries
	// referencing the allocation.
	LedgerDebitNet(ctx context.Context, allocationID int64) (decimal.Decimal, error)
	// SubAllocationTotal sums non-rejected child allocations.
	SubAllocationTotal(ctx context.Context, allocationID int64) (decimal.Decimal, error)
	// ReceivedAllocationIDs lists allocations disbursed to the user.
	ReceivedAllocationIDs(ctx context.Context, userID int64) ([]int64, error)
	// DisbursedOnwardTotal sums allocations the user has disbursed to
	// others.
	DisbursedOnwardTotal(ctx context.Context, userID int64) (decimal.Decimal, error)
}

// Service aggregates utilization and wallet summaries.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Utilization recomputes the allocation's consumption breakdown from source
// rows. Pending requests are excluded; the remainder may go negative when
// over-committed.
func (s *Service) Utilization(ctx context.Context, allocationID int64) (Utilization, error) {
	allocated, err := s.repo.AllocationAmount(ctx, allocationID)
	if err != nil {
		return Utilization{}, err
	}
	expenses, err := s.repo.ExpenseTotal(ctx, allocationID)
	if err != nil {
		return Utilization{}, err
	}
	bills, err := s.repo.BillTotal(ctx, allocationID)
	if err != nil {
		return Utilization{}, err
	}
	debitNet, err := s.repo.LedgerDebitNet(ctx, allocationID)
	if err != nil {
		return Utilization{}, err
	}
	if debitNet.IsNegative() {
		debitNet = decimal.Zero
	}
	children, err := s.repo.SubAllocationTotal(ctx, allocationID)
	if err != nil {
		return Utilization{}, err
	}

	utilized := expenses.Add(bills).Add(debitNet).Add(children)
	return Utilization{
		AllocationID:        allocationID,
		Allocated:           allocated,
		ExpensesTotal:       expenses,
		BillsTotal:          bills,
		LedgerDebitNet:      debitNet,
		SubAllocationsTotal: children,
		TotalUtilized:       utilized,
		RemainingBalance:    allocated.Sub(utilized),
		UtilizationPercent:  shared.Percent(utilized, allocated),
	}, nil
}

// RemainingBalance is the spendable remainder of one allocation, exposed for
// approval-time overcommit checks.
func (s *Service) RemainingBalance(ctx context.Context, allocationID int64) (decimal.Decimal, error) {
	u, err := s.Utilization(ctx, allocationID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return u.RemainingBalance, nil
}

// Summary computes the user's advisory wallet position across every
// allocation disbursed to them. Onward disbursements that are recorded as
// sub-allocations already appear inside TotalSpent, so the remainder
// subtracts spending only.
func (s *Service) Summary(ctx context.Context, userID int64) (Summary, error) {
	ids, err := s.repo.ReceivedAllocationIDs(ctx, userID)
	if err != nil {
		return Summary{}, err
	}

	received := decimal.Zero
	spent := decimal.Zero
	for _, id := range ids {
		u, err := s.Utilization(ctx, id)
		if err != nil {
			return Summary{}, err
		}
		received = received.Add(u.Allocated)
		spent = spent.Add(u.TotalUtilized)
	}

	onward, err := s.repo.DisbursedOnwardTotal(ctx, userID)
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		UserID:               userID,
		TotalReceived:        received,
		TotalDisbursedOnward: onward,
		TotalSpent:           spent,
		RemainingBalance:     received.Sub(spent),
	}, nil
}
