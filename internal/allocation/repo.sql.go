package allocation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fundline/fundline/internal/shared"
)

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const allocationColumns = `id, from_user, to_user, site_id, parent_id, amount, purpose, description, status, allocation_date, disbursed_date, reference_number, created_at, updated_at`

func scanAllocation(row pgx.Row) (FundAllocation, error) {
	var a FundAllocation
	err := row.Scan(&a.ID, &a.FromUser, &a.ToUser, &a.SiteID, &a.ParentID, &a.Amount, &a.Purpose, &a.Description,
		&a.Status, &a.AllocationDate, &a.DisbursedDate, &a.ReferenceNumber, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// Create inserts a new allocation and returns its id.
func (r *PGRepository) Create(ctx context.Context, a FundAllocation) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO fund_allocations (from_user, to_user, site_id, parent_id, amount, purpose, description, status, allocation_date, reference_number, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`,
		a.FromUser, a.ToUser, a.SiteID, a.ParentID, a.Amount, a.Purpose, a.Description, a.Status, a.AllocationDate, a.ReferenceNumber, a.CreatedAt, a.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Get fetches one allocation.
func (r *PGRepository) Get(ctx context.Context, id int64) (FundAllocation, error) {
	a, err := scanAllocation(r.pool.QueryRow(ctx, `SELECT `+allocationColumns+` FROM fund_allocations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FundAllocation{}, fmt.Errorf("allocation %d: %w", id, shared.ErrNotFound)
		}
		return FundAllocation{}, err
	}
	return a, nil
}

// Update persists the full allocation row.
func (r *PGRepository) Update(ctx context.Context, a FundAllocation) error {
	tag, err := r.pool.Exec(ctx, `UPDATE fund_allocations SET to_user=$2, site_id=$3, amount=$4, purpose=$5, description=$6, status=$7, disbursed_date=$8, reference_number=$9, updated_at=$10 WHERE id=$1`,
		a.ID, a.ToUser, a.SiteID, a.Amount, a.Purpose, a.Description, a.Status, a.DisbursedDate, a.ReferenceNumber, a.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("allocation %d: %w", a.ID, shared.ErrNotFound)
	}
	return nil
}

// Delete removes an allocation row.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM fund_allocations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("allocation %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// List returns allocations matching the filter and the unpaginated count.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]FundAllocation, int, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, cond+"$"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		add("status = ", filter.Status)
	}
	if filter.SiteID != 0 {
		add("site_id = ", filter.SiteID)
	}
	if filter.FromUser != 0 {
		add("from_user = ", filter.FromUser)
	}
	if filter.ToUser != 0 {
		add("to_user = ", filter.ToUser)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM fund_allocations`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, page.PerPage, page.Offset())
	query := `SELECT ` + allocationColumns + ` FROM fund_allocations` + where +
		` ORDER BY allocation_date DESC, id DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []FundAllocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// CountReferences counts every record funded by the allocation.
func (r *PGRepository) CountReferences(ctx context.Context, id int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT
  (SELECT COUNT(*) FROM expenses WHERE fund_allocation_id = $1)
+ (SELECT COUNT(*) FROM bills WHERE fund_allocation_id = $1)
+ (SELECT COUNT(*) FROM worker_ledger_entries WHERE fund_allocation_id = $1)
+ (SELECT COUNT(*) FROM contracts WHERE fund_allocation_id = $1)
+ (SELECT COUNT(*) FROM fund_allocations WHERE parent_id = $1)`, id).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
