package contract

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fundline/fundline/internal/ledger"
	"github.com/fundline/fundline/internal/platform/db"
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

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const contractColumns = `id, worker_id, site_id, fund_allocation_id, contract_type, total_amount, number_of_installments, total_paid, remaining_amount, status, daily_rate, start_date, end_date, created_at, updated_at`

func scanContract(row pgx.Row) (Contract, error) {
	var c Contract
	err := row.Scan(&c.ID, &c.WorkerID, &c.SiteID, &c.FundAllocationID, &c.ContractType, &c.TotalAmount,
		&c.NumberOfInstallments, &c.TotalPaid, &c.RemainingAmount, &c.Status, &c.DailyRate,
		&c.StartDate, &c.EndDate, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// Get fetches one contract with its installments.
func (r *PGRepository) Get(ctx context.Context, id int64) (Contract, error) {
	c, err := scanContract(r.pool.QueryRow(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contract{}, fmt.Errorf("contract %d: %w", id, shared.ErrNotFound)
		}
		return Contract{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, contract_id, installment_number, amount, paid_amount, status, due_date
FROM contract_installments WHERE contract_id = $1 ORDER BY installment_number`, id)
	if err != nil {
		return Contract{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var ins Installment
		if err := rows.Scan(&ins.ID, &ins.ContractID, &ins.InstallmentNumber, &ins.Amount, &ins.PaidAmount, &ins.Status, &ins.DueDate); err != nil {
			return Contract{}, err
		}
		c.Installments = append(c.Installments, ins)
	}
	if err := rows.Err(); err != nil {
		return Contract{}, err
	}
	return c, nil
}

// List returns contracts matching the filter and the unpaginated count.
// Installments are not hydrated on listings.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Contract, int, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, cond+"$"+strconv.Itoa(len(args)))
	}
	if filter.WorkerID != 0 {
		add("worker_id = ", filter.WorkerID)
	}
	if filter.SiteID != 0 {
		add("site_id = ", filter.SiteID)
	}
	if filter.Status != "" {
		add("status = ", filter.Status)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM contracts`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, page.PerPage, page.Offset())
	rows, err := r.pool.Query(ctx, `SELECT `+contractColumns+` FROM contracts`+where+
		` ORDER BY id DESC LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Delete removes a contract and its installments.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	return r.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t := tx.(*txRepo)
		if _, err := t.tx.Exec(ctx, `DELETE FROM contract_installments WHERE contract_id = $1`, id); err != nil {
			return err
		}
		tag, err := t.tx.Exec(ctx, `DELETE FROM contracts WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("contract %d: %w", id, shared.ErrNotFound)
		}
		return nil
	})
}

func (t *txRepo) CreateContract(ctx context.Context, c Contract) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO contracts (worker_id, site_id, fund_allocation_id, contract_type, total_amount, number_of_installments, total_paid, remaining_amount, status, daily_rate, start_date, end_date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) RETURNING id`,
		c.WorkerID, c.SiteID, c.FundAllocationID, c.ContractType, c.TotalAmount, c.NumberOfInstallments,
		c.TotalPaid, c.RemainingAmount, c.Status, c.DailyRate, c.StartDate, c.EndDate, c.CreatedAt, c.UpdatedAt).Scan(&id)
	return id, err
}

func (t *txRepo) CreateInstallment(ctx context.Context, ins Installment) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO contract_installments (contract_id, installment_number, amount, paid_amount, status, due_date)
VALUES ($1, $2, $3, $4, $5, $6)`,
		ins.ContractID, ins.InstallmentNumber, ins.Amount, ins.PaidAmount, ins.Status, ins.DueDate)
	return err
}

func (t *txRepo) UpdateContract(ctx context.Context, c Contract) error {
	tag, err := t.tx.Exec(ctx, `UPDATE contracts SET total_paid=$2, remaining_amount=$3, status=$4, updated_at=$5 WHERE id=$1`,
		c.ID, c.TotalPaid, c.RemainingAmount, c.Status, c.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("contract %d: %w", c.ID, shared.ErrNotFound)
	}
	return nil
}

func (t *txRepo) UpdateInstallment(ctx context.Context, ins Installment) error {
	tag, err := t.tx.Exec(ctx, `UPDATE contract_installments SET paid_amount=$3, status=$4 WHERE contract_id=$1 AND installment_number=$2`,
		ins.ContractID, ins.InstallmentNumber, ins.PaidAmount, ins.Status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("installment %d of contract %d: %w", ins.InstallmentNumber, ins.ContractID, shared.ErrNotFound)
	}
	return nil
}

func (t *txRepo) InsertLedgerEntry(ctx context.Context, e ledger.Entry) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO worker_ledger_entries (worker_id, site_id, fund_allocation_id, type, amount, category, payment_mode, reference, transaction_date, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.WorkerID, e.SiteID, e.FundAllocationID, e.Type, e.Amount, e.Category, e.PaymentMode, e.Reference, e.TransactionDate, e.CreatedAt)
	return err
}
