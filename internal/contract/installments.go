package contract

import (
	"time"

	"github.com/shopspring/decimal"
)

// GenerateInstallments splits total into n equal whole-unit parts by floor
// division; the last installment absorbs the remainder so the parts sum to
// the total exactly. Due dates are linearly interpolated across
// [start, end] when both are given, otherwise left unset.
func GenerateInstallments(total decimal.Decimal, n int, start, end *time.Time) []Installment {
	if n < 1 {
		return nil
	}
	base := total.Div(decimal.NewFromInt(int64(n))).Floor()
	out := make([]Installment, n)
	running := decimal.Zero
	for i := 0; i < n; i++ {
		amount := base
		if i == n-1 {
			amount = total.Sub(running)
		}
		running = running.Add(amount)
		out[i] = Installment{
			InstallmentNumber: i + 1,
			Amount:            amount,
			PaidAmount:        decimal.Zero,
			Status:            InstallmentPending,
		}
		if start != nil && end != nil {
			span := end.Sub(*start)
			due := start.Add(span * time.Duration(i+1) / time.Duration(n))
			out[i].DueDate = &due
		}
	}
	return out
}

// deriveInstallmentStatus recomputes one installment's status from amounts.
func deriveInstallmentStatus(ins Installment) InstallmentStatus {
	switch {
	case ins.PaidAmount.GreaterThanOrEqual(ins.Amount):
		return InstallmentPaid
	case ins.PaidAmount.IsPositive():
		return InstallmentPartial
	default:
		return InstallmentPending
	}
}

// recomputeTotals rederives TotalPaid and RemainingAmount from the full
// installment list. Aggregates are never incremented in place.
func recomputeTotals(c *Contract) {
	total := decimal.Zero
	for _, ins := range c.Installments {
		total = total.Add(ins.PaidAmount)
	}
	c.TotalPaid = total
	c.RemainingAmount = c.TotalAmount.Sub(total)
}
