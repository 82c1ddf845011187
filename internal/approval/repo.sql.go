package approval

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

const expenseColumns = `id, site_id, category, fund_allocation_id, requested_amount, approved_amount, status, amount_hidden, notes, payment_method, payment_reference, paid_date, approved_by, approved_at, submitted_by, created_at, updated_at`

func scanExpense(row pgx.Row) (Expense, error) {
	var e Expense
	err := row.Scan(&e.ID, &e.SiteID, &e.Category, &e.FundAllocationID, &e.RequestedAmount, &e.ApprovedAmount,
		&e.Status, &e.AmountHidden, &e.Notes, &e.PaymentMethod, &e.PaymentReference, &e.PaidDate,
		&e.ApprovedBy, &e.ApprovedAt, &e.SubmittedBy, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

const billColumns = `id, site_id, vendor_name, vendor_gstin, fund_allocation_id, base_amount, gst_rate, gst_amount, total_amount, approved_amount, status, amount_hidden, notes, payment_method, payment_reference, paid_date, approved_by, approved_at, submitted_by, created_at, updated_at`

func scanBill(row pgx.Row) (Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.SiteID, &b.VendorName, &b.VendorGSTIN, &b.FundAllocationID, &b.BaseAmount,
		&b.GSTRate, &b.GSTAmount, &b.TotalAmount, &b.ApprovedAmount, &b.Status, &b.AmountHidden, &b.Notes,
		&b.PaymentMethod, &b.PaymentReference, &b.PaidDate, &b.ApprovedBy, &b.ApprovedAt, &b.SubmittedBy,
		&b.CreatedAt, &b.UpdatedAt)
	return b, err
}

// CreateExpense inserts a new expense and returns its id.
func (r *PGRepository) CreateExpense(ctx context.Context, e Expense) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO expenses (site_id, category, fund_allocation_id, requested_amount, status, amount_hidden, notes, submitted_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		e.SiteID, e.Category, e.FundAllocationID, e.RequestedAmount, e.Status, e.AmountHidden, e.Notes, e.SubmittedBy, e.CreatedAt, e.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetExpense fetches one expense.
func (r *PGRepository) GetExpense(ctx context.Context, id int64) (Expense, error) {
	e, err := scanExpense(r.pool.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Expense{}, fmt.Errorf("expense %d: %w", id, shared.ErrNotFound)
		}
		return Expense{}, err
	}
	return e, nil
}

// UpdateExpense persists the full expense row.
func (r *PGRepository) UpdateExpense(ctx context.Context, e Expense) error {
	tag, err := r.pool.Exec(ctx, `UPDATE expenses SET site_id=$2, category=$3, fund_allocation_id=$4, requested_amount=$5, approved_amount=$6, status=$7, amount_hidden=$8, notes=$9, payment_method=$10, payment_reference=$11, paid_date=$12, approved_by=$13, approved_at=$14, updated_at=$15 WHERE id=$1`,
		e.ID, e.SiteID, e.Category, e.FundAllocationID, e.RequestedAmount, e.ApprovedAmount, e.Status, e.AmountHidden,
		e.Notes, e.PaymentMethod, e.PaymentReference, e.PaidDate, e.ApprovedBy, e.ApprovedAt, e.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("expense %d: %w", e.ID, shared.ErrNotFound)
	}
	return nil
}

// DeleteExpense removes an expense row.
func (r *PGRepository) DeleteExpense(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("expense %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// ListExpenses returns expenses matching the filter and the unpaginated count.
func (r *PGRepository) ListExpenses(ctx context.Context, filter ListFilter) ([]Expense, int, error) {
	where, args := filterClause(filter)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM expenses`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, page.PerPage, page.Offset())
	query := `SELECT ` + expenseColumns + ` FROM expenses` + where +
		` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// CreateBill inserts a new bill and returns its id.
func (r *PGRepository) CreateBill(ctx context.Context, b Bill) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO bills (site_id, vendor_name, vendor_gstin, fund_allocation_id, base_amount, gst_rate, gst_amount, total_amount, status, amount_hidden, notes, submitted_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) RETURNING id`,
		b.SiteID, b.VendorName, b.VendorGSTIN, b.FundAllocationID, b.BaseAmount, b.GSTRate, b.GSTAmount, b.TotalAmount,
		b.Status, b.AmountHidden, b.Notes, b.SubmittedBy, b.CreatedAt, b.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetBill fetches one bill.
func (r *PGRepository) GetBill(ctx context.Context, id int64) (Bill, error) {
	b, err := scanBill(r.pool.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bill{}, fmt.Errorf("bill %d: %w", id, shared.ErrNotFound)
		}
		return Bill{}, err
	}
	return b, nil
}

// UpdateBill persists the full bill row.
func (r *PGRepository) UpdateBill(ctx context.Context, b Bill) error {
	tag, err := r.pool.Exec(ctx, `UPDATE bills SET site_id=$2, vendor_name=$3, vendor_gstin=$4, fund_allocation_id=$5, base_amount=$6, gst_rate=$7, gst_amount=$8, total_amount=$9, approved_amount=$10, status=$11, amount_hidden=$12, notes=$13, payment_method=$14, payment_reference=$15, paid_date=$16, approved_by=$17, approved_at=$18, updated_at=$19 WHERE id=$1`,
		b.ID, b.SiteID, b.VendorName, b.VendorGSTIN, b.FundAllocationID, b.BaseAmount, b.GSTRate, b.GSTAmount,
		b.TotalAmount, b.ApprovedAmount, b.Status, b.AmountHidden, b.Notes, b.PaymentMethod, b.PaymentReference,
		b.PaidDate, b.ApprovedBy, b.ApprovedAt, b.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("bill %d: %w", b.ID, shared.ErrNotFound)
	}
	return nil
}

// DeleteBill removes a bill row.
func (r *PGRepository) DeleteBill(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bills WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("bill %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// ListBills returns bills matching the filter and the unpaginated count.
func (r *PGRepository) ListBills(ctx context.Context, filter ListFilter) ([]Bill, int, error) {
	where, args := filterClause(filter)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bills`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, page.PerPage, page.Offset())
	query := `SELECT ` + billColumns + ` FROM bills` + where +
		` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// filterClause builds the WHERE clause shared by expense and bill listings.
func filterClause(filter ListFilter) (string, []any) {
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
	if filter.FundAllocationID != 0 {
		add("fund_allocation_id = ", filter.FundAllocationID)
	}
	if filter.SubmittedBy != 0 {
		add("submitted_by = ", filter.SubmittedBy)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
