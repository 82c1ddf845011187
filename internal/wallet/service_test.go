package wallet

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fundline/fundline/internal/shared"
)

type memoryWalletRepo struct {
	amounts  map[int64]decimal.Decimal
	expenses map[int64]decimal.Decimal
	bills    map[int64]decimal.Decimal
	debitNet map[int64]decimal.Decimal
	children map[int64]decimal.Decimal
	received map[int64][]int64
	onward   map[int64]decimal.Decimal
}

func newMemoryWalletRepo() *memoryWalletRepo {
	return &memoryWalletRepo{
		amounts:  make(map[int64]decimal.Decimal),
		expenses: make(map[int64]decimal.Decimal),
		bills:    make(map[int64]decimal.Decimal),
		debitNet: make(map[int64]decimal.Decimal),
		children: make(map[int64]decimal.Decimal),
		received: make(map[int64][]int64),
		onward:   make(map[int64]decimal.Decimal),
	}
}

func (r *memoryWalletRepo) AllocationAmount(ctx context.Context, id int64) (decimal.Decimal, error) {
	amount, ok := r.amounts[id]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("allocation %d: %w", id, shared.ErrNotFound)
	}
	return amount, nil
}

func (r *memoryWalletRepo) ExpenseTotal(ctx context.Context, id int64) (decimal.Decimal, error) {
	return r.expenses[id], nil
}

func (r *memoryWalletRepo) BillTotal(ctx context.Context, id int64) (decimal.Decimal, error) {
	return r.bills[id], nil
}

func (r *memoryWalletRepo) LedgerDebitNet(ctx context.Context, id int64) (decimal.Decimal, error) {
	return r.debitNet[id], nil
}

func (r *memoryWalletRepo) SubAllocationTotal(ctx context.Context, id int64) (decimal.Decimal, error) {
	return r.children[id], nil
}

func (r *memoryWalletRepo) ReceivedAllocationIDs(ctx context.Context, userID int64) ([]int64, error) {
	return r.received[userID], nil
}

func (r *memoryWalletRepo) DisbursedOnwardTotal(ctx context.Context, userID int64) (decimal.Decimal, error) {
	return r.onward[userID], nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestUtilizationScenario(t *testing.T) {
	repo := newMemoryWalletRepo()
	repo.amounts[1] = dec("50000")
	repo.expenses[1] = dec("4500")

	svc := NewService(repo)
	u, err := svc.Utilization(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, u.TotalUtilized.Equal(dec("4500")), "utilized: %s", u.TotalUtilized)
	require.True(t, u.RemainingBalance.Equal(dec("45500")), "remaining: %s", u.RemainingBalance)
	require.Equal(t, 9, u.UtilizationPercent)
}

func TestUtilizationIsIdempotentAcrossReads(t *testing.T) {
	repo := newMemoryWalletRepo()
	repo.amounts[1] = dec("10000")
	repo.expenses[1] = dec("1000")
	repo.bills[1] = dec("2000")
	repo.debitNet[1] = dec("500")
	repo.children[1] = dec("1500")

	svc := NewService(repo)
	first, err := svc.Utilization(context.Background(), 1)
	require.NoError(t, err)
	second, err := svc.Utilization(context.Background(), 1)
	require.NoError(t, err)

	require.True(t, first.TotalUtilized.Equal(second.TotalUtilized))
	require.True(t, first.TotalUtilized.Equal(dec("5000")))
	require.True(t, first.RemainingBalance.Equal(dec("5000")))
	require.Equal(t, 50, first.UtilizationPercent)
}

func TestUtilizationNegativeRemainder(t *testing.T) {
	repo := newMemoryWalletRepo()
	repo.amounts[1] = dec("1000")
	repo.expenses[1] = dec("1500")

	svc := NewService(repo)
	u, err := svc.Utilization(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, u.RemainingBalance.Equal(dec("-500")))
	require.Equal(t, 150, u.UtilizationPercent)
}

func TestUtilizationZeroAllocated(t *testing.T) {
	repo := newMemoryWalletRepo()
	repo.amounts[1] = decimal.Zero

	svc := NewService(repo)
	u, err := svc.Utilization(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 0, u.UtilizationPercent)
}

func TestUtilizationFloorsNetCredit(t *testing.T) {
	repo := newMemoryWalletRepo()
	repo.amounts[1] = dec("1000")
	repo.expenses[1] = dec("200")
	repo.debitNet[1] = dec("-300")

	svc := NewService(repo)
	u, err := svc.Utilization(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, u.LedgerDebitNet.IsZero())
	require.True(t, u.TotalUtilized.Equal(dec("200")))
}

func TestUtilizationUnknownAllocation(t *testing.T) {
	svc := NewService(newMemoryWalletRepo())
	_, err := svc.Utilization(context.Background(), 99)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestWalletSummary(t *testing.T) {
	repo := newMemoryWalletRepo()
	repo.amounts[1] = dec("50000")
	repo.expenses[1] = dec("4500")
	repo.amounts[2] = dec("20000")
	repo.children[2] = dec("5000")
	repo.received[7] = []int64{1, 2}
	repo.onward[7] = dec("5000")

	svc := NewService(repo)
	s, err := svc.Summary(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, s.TotalReceived.Equal(dec("70000")))
	require.True(t, s.TotalSpent.Equal(dec("9500")))
	require.True(t, s.TotalDisbursedOnward.Equal(dec("5000")))
	require.True(t, s.RemainingBalance.Equal(dec("60500")))
}

func TestWalletSummaryEmpty(t *testing.T) {
	svc := NewService(newMemoryWalletRepo())
	s, err := svc.Summary(context.Background(), 42)
	require.NoError(t, err)
	require.True(t, s.TotalReceived.IsZero())
	require.True(t, s.RemainingBalance.IsZero())
}
