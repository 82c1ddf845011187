package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/fundline/fundline/internal/shared"
)

// DailyEarning computes one attendance row's pay at the given daily rate.
// Present earns the full rate, half days half of it, absence and leave
// nothing; overtime hours are paid at dailyRate/standardHours each.
func DailyEarning(a Attendance, dailyRate decimal.Decimal) decimal.Decimal {
	var base decimal.Decimal
	switch a.Status {
	case AttendancePresent:
		base = dailyRate
	case AttendanceHalfDay:
		base = shared.Money2(dailyRate.Div(decimal.NewFromInt(2)))
	default:
		base = decimal.Zero
	}
	if a.Overtime.IsPositive() {
		hourly := dailyRate.Div(decimal.NewFromInt(shared.StandardWorkHours))
		base = base.Add(shared.Money2(a.Overtime.Mul(hourly)))
	}
	return base
}

// ComputeEarnings aggregates attendance rows into an earnings breakdown.
func ComputeEarnings(workerID int64, rows []Attendance, dailyRate decimal.Decimal) EarningsBreakdown {
	out := EarningsBreakdown{
		WorkerID:    workerID,
		BasePay:     decimal.Zero,
		OvertimePay: decimal.Zero,
		Total:       decimal.Zero,
	}
	hourly := dailyRate.Div(decimal.NewFromInt(shared.StandardWorkHours))
	for _, a := range rows {
		switch a.Status {
		case AttendancePresent:
			out.DaysPresent++
			out.BasePay = out.BasePay.Add(dailyRate)
		case AttendanceHalfDay:
			out.HalfDays++
			out.BasePay = out.BasePay.Add(shared.Money2(dailyRate.Div(decimal.NewFromInt(2))))
		}
		if a.Overtime.IsPositive() {
			out.OvertimePay = out.OvertimePay.Add(shared.Money2(a.Overtime.Mul(hourly)))
		}
	}
	out.Total = out.BasePay.Add(out.OvertimePay)
	return out
}
