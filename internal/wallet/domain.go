// Package wallet computes allocation utilization and per-user spendable
// balances. Everything here is read-only and recomputed from source rows on
// every call; there is no cached running total to invalidate.
package wallet

import "github.com/shopspring/decimal"

// Utilization breaks down how much of one allocation has been consumed.
type Utilization struct {
	AllocationID        int64           `json:"allocationId"`
	Allocated           decimal.Decimal `json:"allocated"`
	ExpensesTotal       decimal.Decimal `json:"expensesTotal"`
	BillsTotal          decimal.Decimal `json:"billsTotal"`
	LedgerDebitNet      decimal.Decimal `json:"ledgerDebitNet"`
	SubAllocationsTotal decimal.Decimal `json:"subAllocationsTotal"`
	TotalUtilized       decimal.Decimal `json:"totalUtilized"`
	RemainingBalance    decimal.Decimal `json:"remainingBalance"`
	UtilizationPercent  int             `json:"utilizationPercent"`
}

// Summary is a user's advisory wallet position. It warns before submission;
// it is not a ledger lock.
type Summary struct {
	UserID               int64           `json:"userId"`
	TotalReceived        decimal.Decimal `json:"totalReceived"`
	TotalDisbursedOnward decimal.Decimal `json:"totalDisbursedOnward"`
	TotalSpent           decimal.Decimal `json:"totalSpent"`
	RemainingBalance     decimal.Decimal `json:"remainingBalance"`
}
