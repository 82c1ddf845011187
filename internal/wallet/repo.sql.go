package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fundline/fundline/internal/shared"
)

// PGRepository provides PostgreSQL backed aggregate reads.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// AllocationAmount returns the allocated amount of one allocation.
func (r *PGRepository) AllocationAmount(ctx context.Context, allocationID int64) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT amount FROM fund_allocations WHERE id = $1`, allocationID).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Decimal{}, fmt.Errorf("allocation %d: %w", allocationID, shared.ErrNotFound)
		}
		return decimal.Decimal{}, err
	}
	return amount, nil
}

// ExpenseTotal sums decided expense amounts funded by the allocation. The
// decided amount is the approved figure, falling back to the requested one
// for legacy rows approved before renegotiation existed.
func (r *PGRepository) ExpenseTotal(ctx context.Context, allocationID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(COALESCE(approved_amount, requested_amount)), 0)
FROM expenses WHERE fund_allocation_id = $1 AND status IN ('approved', 'paid')`, allocationID).Scan(&total)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return total, nil
}

// BillTotal sums decided bill amounts funded by the allocation.
func (r *PGRepository) BillTotal(ctx context.Context, allocationID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(COALESCE(approved_amount, total_amount)), 0)
FROM bills WHERE fund_allocation_id = $1 AND status IN ('approved', 'credited', 'paid')`, allocationID).Scan(&total)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return total, nil
}

// LedgerDebitNet returns sum(debit) - sum(credit) of entries referencing the
// allocation.
func (r *PGRepository) LedgerDebitNet(ctx context.Context, allocationID int64) (decimal.Decimal, error) {
	var net decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount) FILTER (WHERE type = 'debit'), 0)
     - COALESCE(SUM(amount) FILTER (WHERE type = 'credit'), 0)
FROM worker_ledger_entries WHERE fund_allocation_id = $1`, allocationID).Scan(&net)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return net, nil
}

// SubAllocationTotal sums non-rejected child allocations.
func (r *PGRepository) SubAllocationTotal(ctx context.Context, allocationID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)
FROM fund_allocations WHERE parent_id = $1 AND status <> 'rejected'`, allocationID).Scan(&total)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return total, nil
}

// ReceivedAllocationIDs lists allocations disbursed to the user.
func (r *PGRepository) ReceivedAllocationIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM fund_allocations WHERE to_user = $1 AND status = 'disbursed' ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DisbursedOnwardTotal sums allocations the user has disbursed to others.
func (r *PGRepository) DisbursedOnwardTotal(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)
FROM fund_allocations WHERE from_user = $1 AND status = 'disbursed'`, userID).Scan(&total)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return total, nil
}
