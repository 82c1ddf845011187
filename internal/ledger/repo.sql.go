package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

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

// CreateEntry appends one ledger entry.
func (r *PGRepository) CreateEntry(ctx context.Context, e Entry) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO worker_ledger_entries (worker_id, site_id, fund_allocation_id, type, amount, category, payment_mode, reference, transaction_date, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		e.WorkerID, e.SiteID, e.FundAllocationID, e.Type, e.Amount, e.Category, e.PaymentMode, e.Reference, e.TransactionDate, e.CreatedAt).Scan(&id)
	return id, err
}

// ListEntries returns a worker's ledger history, newest first.
func (r *PGRepository) ListEntries(ctx context.Context, workerID int64) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, worker_id, site_id, fund_allocation_id, type, amount, category, payment_mode, reference, transaction_date, created_at
FROM worker_ledger_entries WHERE worker_id = $1 ORDER BY transaction_date DESC, id DESC`, workerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.WorkerID, &e.SiteID, &e.FundAllocationID, &e.Type, &e.Amount, &e.Category, &e.PaymentMode, &e.Reference, &e.TransactionDate, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SumByType recomputes credit and debit totals from rows.
func (r *PGRepository) SumByType(ctx context.Context, workerID int64) (decimal.Decimal, decimal.Decimal, error) {
	var credit, debit decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT
  COALESCE(SUM(amount) FILTER (WHERE type = 'credit'), 0),
  COALESCE(SUM(amount) FILTER (WHERE type = 'debit'), 0)
FROM worker_ledger_entries WHERE worker_id = $1`, workerID).Scan(&credit, &debit)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return credit, debit, nil
}

// SumDebitsByCategory sums debit amounts for the given categories.
func (r *PGRepository) SumDebitsByCategory(ctx context.Context, workerID int64, categories []string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM worker_ledger_entries
WHERE worker_id = $1 AND type = 'debit' AND category = ANY($2)`, workerID, categories).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// CreateAttendance inserts a worker-day row; unique per (worker, site, date).
func (r *PGRepository) CreateAttendance(ctx context.Context, a Attendance) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO attendance (worker_id, site_id, date, status, hours_worked, overtime, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		a.WorkerID, a.SiteID, a.Date, a.Status, a.HoursWorked, a.Overtime, a.CreatedAt).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("ledger: attendance already marked for worker %d on %s: %w",
				a.WorkerID, a.Date.Format("2006-01-02"), shared.ErrConflict)
		}
		return 0, err
	}
	return id, nil
}

// ListAttendance returns attendance rows within [from, to]. A zero from means
// no lower bound.
func (r *PGRepository) ListAttendance(ctx context.Context, workerID int64, from, to time.Time) ([]Attendance, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, worker_id, site_id, date, status, hours_worked, overtime, created_at
FROM attendance WHERE worker_id = $1 AND ($2::timestamptz = 'epoch' OR date >= $2) AND date <= $3 ORDER BY date`,
		workerID, nonZero(from), to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Attendance
	for rows.Next() {
		var a Attendance
		if err := rows.Scan(&a.ID, &a.WorkerID, &a.SiteID, &a.Date, &a.Status, &a.HoursWorked, &a.Overtime, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func nonZero(t time.Time) time.Time {
	if t.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return t
}

// WorkerDailyRate reads the daily rate off the worker's most recent active
// contract; zero when none is active.
func (r *PGRepository) WorkerDailyRate(ctx context.Context, workerID int64) (decimal.Decimal, error) {
	var rate decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(daily_rate, 0) FROM contracts
WHERE worker_id = $1 AND status = 'active' ORDER BY id DESC LIMIT 1`, workerID).Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return rate, nil
}

// CreateEntryIdempotent appends an entry and burns the key atomically.
func (r *PGRepository) CreateEntryIdempotent(ctx context.Context, key string, e Entry) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, 'ledger', $2)`, key, time.Now()); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return shared.ErrIdempotencyConflict
			}
			return err
		}
		return tx.QueryRow(ctx, `INSERT INTO worker_ledger_entries (worker_id, site_id, fund_allocation_id, type, amount, category, payment_mode, reference, transaction_date, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
			e.WorkerID, e.SiteID, e.FundAllocationID, e.Type, e.Amount, e.Category, e.PaymentMode, e.Reference, e.TransactionDate, e.CreatedAt).Scan(&id)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}
