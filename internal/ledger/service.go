package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundline/fundline/internal/shared"
)

// Repository defines ledger and attendance data access.
type Repository interface {
	CreateEntry(ctx context.Context, e Entry) (int64, error)
	ListEntries(ctx context.Context, workerID int64) ([]Entry, error)
	// SumByType recomputes credit and debit totals from rows.
	SumByType(ctx context.Context, workerID int64) (credit, debit decimal.Decimal, err error)
	// SumDebitsByCategory sums debit amounts limited to the given categories.
	SumDebitsByCategory(ctx context.Context, workerID int64, categories []string) (decimal.Decimal, error)

	CreateAttendance(ctx context.Context, a Attendance) (int64, error)
	ListAttendance(ctx context.Context, workerID int64, from, to time.Time) ([]Attendance, error)

	// WorkerDailyRate resolves the worker's daily rate from the active
	// labor contract; zero when none exists.
	WorkerDailyRate(ctx context.Context, workerID int64) (decimal.Decimal, error)

	// CreateEntryIdempotent appends an entry guarded by a one-shot key.
	// Both writes commit atomically; a reused key returns
	// shared.ErrIdempotencyConflict and writes nothing.
	CreateEntryIdempotent(ctx context.Context, key string, e Entry) (int64, error)
}

// RecordEntryInput for appending ledger entries.
type RecordEntryInput struct {
	WorkerID         int64
	SiteID           *int64
	FundAllocationID *int64
	Type             EntryType
	Amount           decimal.Decimal
	Category         string
	PaymentMode      string
	Reference        string
	TransactionDate  time.Time
}

// MarkAttendanceInput for daily attendance capture.
type MarkAttendanceInput struct {
	WorkerID    int64
	SiteID      int64
	Date        time.Time
	Status      AttendanceStatus
	HoursWorked decimal.Decimal
	Overtime    decimal.Decimal
}

// Service maintains per-worker ledger accounts.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RecordEntry appends a ledger posting. Prior entries are never mutated.
func (s *Service) RecordEntry(ctx context.Context, input RecordEntryInput) (Entry, error) {
	if input.Type != TypeCredit && input.Type != TypeDebit {
		return Entry{}, fmt.Errorf("ledger: unknown entry type %q: %w", input.Type, shared.ErrValidation)
	}
	if !input.Amount.IsPositive() {
		return Entry{}, fmt.Errorf("ledger: amount must be positive: %w", shared.ErrValidation)
	}
	if input.Category == "" {
		return Entry{}, fmt.Errorf("ledger: category required: %w", shared.ErrValidation)
	}
	txDate := input.TransactionDate
	if txDate.IsZero() {
		txDate = time.Now()
	}
	e := Entry{
		WorkerID:         input.WorkerID,
		SiteID:           input.SiteID,
		FundAllocationID: input.FundAllocationID,
		Type:             input.Type,
		Amount:           shared.Money2(input.Amount),
		Category:         input.Category,
		PaymentMode:      input.PaymentMode,
		Reference:        input.Reference,
		TransactionDate:  txDate,
		CreatedAt:        time.Now(),
	}
	id, err := s.repo.CreateEntry(ctx, e)
	if err != nil {
		return Entry{}, err
	}
	e.ID = id
	return e, nil
}

// Entries lists a worker's ledger history.
func (s *Service) Entries(ctx context.Context, workerID int64) ([]Entry, error) {
	return s.repo.ListEntries(ctx, workerID)
}

// Balance recomputes the worker's net position from rows.
func (s *Service) Balance(ctx context.Context, workerID int64) (BalanceSummary, error) {
	credit, debit, err := s.repo.SumByType(ctx, workerID)
	if err != nil {
		return BalanceSummary{}, err
	}
	return BalanceSummary{
		WorkerID:    workerID,
		TotalCredit: credit,
		TotalDebit:  debit,
		Balance:     credit.Sub(debit),
	}, nil
}

// MarkAttendance records one worker-day. Duplicate (worker, site, date) rows
// surface as ErrConflict from the repository.
func (s *Service) MarkAttendance(ctx context.Context, input MarkAttendanceInput) (Attendance, error) {
	switch input.Status {
	case AttendancePresent, AttendanceAbsent, AttendanceHalfDay, AttendanceLeave:
	default:
		return Attendance{}, fmt.Errorf("ledger: unknown attendance status %q: %w", input.Status, shared.ErrValidation)
	}
	if input.Date.IsZero() {
		return Attendance{}, fmt.Errorf("ledger: attendance date required: %w", shared.ErrValidation)
	}
	if input.Overtime.IsNegative() || input.HoursWorked.IsNegative() {
		return Attendance{}, fmt.Errorf("ledger: hours must not be negative: %w", shared.ErrValidation)
	}
	a := Attendance{
		WorkerID:    input.WorkerID,
		SiteID:      input.SiteID,
		Date:        input.Date,
		Status:      input.Status,
		HoursWorked: input.HoursWorked,
		Overtime:    input.Overtime,
		CreatedAt:   time.Now(),
	}
	id, err := s.repo.CreateAttendance(ctx, a)
	if err != nil {
		return Attendance{}, err
	}
	a.ID = id
	return a, nil
}

// Earnings computes attendance-derived pay over [from, to]. The figure is
// derived on demand, never read from a stored column.
func (s *Service) Earnings(ctx context.Context, workerID int64, from, to time.Time) (EarningsBreakdown, error) {
	rate, err := s.repo.WorkerDailyRate(ctx, workerID)
	if err != nil {
		return EarningsBreakdown{}, err
	}
	rows, err := s.repo.ListAttendance(ctx, workerID, from, to)
	if err != nil {
		return EarningsBreakdown{}, err
	}
	return ComputeEarnings(workerID, rows, rate), nil
}

// PendingSalary nets lifetime attendance earnings against salary and advance
// debits already paid out.
func (s *Service) PendingSalary(ctx context.Context, workerID int64) (decimal.Decimal, error) {
	earned, err := s.Earnings(ctx, workerID, time.Time{}, time.Now())
	if err != nil {
		return decimal.Zero, err
	}
	paid, err := s.repo.SumDebitsByCategory(ctx, workerID, []string{CategorySalary, CategoryAdvance})
	if err != nil {
		return decimal.Zero, err
	}
	return earned.Total.Sub(paid), nil
}

// PostEarnings reconciles one period's attendance earnings into the ledger as
// a single credit entry, keyed per (worker, period) so replays are no-ops.
// This is the step that makes the ledger, not ad-hoc recomputation, the
// source of truth for earned amounts.
func (s *Service) PostEarnings(ctx context.Context, workerID int64, periodStart, periodEnd time.Time) (Entry, error) {
	if !periodEnd.After(periodStart) {
		return Entry{}, fmt.Errorf("ledger: period end must follow start: %w", shared.ErrValidation)
	}
	breakdown, err := s.Earnings(ctx, workerID, periodStart, periodEnd)
	if err != nil {
		return Entry{}, err
	}
	if !breakdown.Total.IsPositive() {
		return Entry{}, fmt.Errorf("ledger: no earnings for worker %d in period: %w", workerID, shared.ErrNotFound)
	}

	key := fmt.Sprintf("earnings:%d:%s", workerID, periodStart.Format("2006-01"))
	e := Entry{
		WorkerID:        workerID,
		Type:            TypeCredit,
		Amount:          shared.Money2(breakdown.Total),
		Category:        CategoryEarnings,
		Reference:       key,
		TransactionDate: periodEnd,
		CreatedAt:       time.Now(),
	}
	id, err := s.repo.CreateEntryIdempotent(ctx, key, e)
	if err != nil {
		return Entry{}, err
	}
	e.ID = id
	return e, nil
}
