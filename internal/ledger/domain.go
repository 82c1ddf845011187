package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryType distinguishes earned credits from paid-out debits.
type EntryType string

const (
	TypeCredit EntryType = "credit"
	TypeDebit  EntryType = "debit"
)

// Entry categories. Salary and advance debits are the ones pending-salary
// accounting nets against earnings.
const (
	CategorySalary          = "salary"
	CategoryAdvance         = "advance"
	CategoryBonus           = "bonus"
	CategoryContractPayment = "contract_payment"
	CategoryEarnings        = "attendance_earnings"
)

// Entry is one credit or debit posting against a worker's running balance.
// Entries are append-only; corrections are new entries, never edits.
// PaymentMode records how a debit was paid out and stays empty on credits.
type Entry struct {
	ID               int64
	WorkerID         int64
	SiteID           *int64
	FundAllocationID *int64
	Type             EntryType
	Amount           decimal.Decimal
	Category         string
	PaymentMode      string
	Reference        string
	TransactionDate  time.Time
	CreatedAt        time.Time
}

// AttendanceStatus enumerates daily attendance states.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceHalfDay AttendanceStatus = "half_day"
	AttendanceLeave   AttendanceStatus = "leave"
)

// Attendance is one worker-day record, unique per (worker, site, date).
// Earnings are derived from these rows, never stored on them.
type Attendance struct {
	ID          int64
	WorkerID    int64
	SiteID      int64
	Date        time.Time
	Status      AttendanceStatus
	HoursWorked decimal.Decimal
	Overtime    decimal.Decimal
	CreatedAt   time.Time
}

// BalanceSummary is a worker's ledger position.
type BalanceSummary struct {
	WorkerID    int64
	TotalCredit decimal.Decimal
	TotalDebit  decimal.Decimal
	Balance     decimal.Decimal
}

// EarningsBreakdown details attendance-derived pay over a range.
type EarningsBreakdown struct {
	WorkerID    int64
	DaysPresent int
	HalfDays    int
	BasePay     decimal.Decimal
	OvertimePay decimal.Decimal
	Total       decimal.Decimal
}
