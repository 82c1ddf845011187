// Package approval runs the request/approve/reject/pay workflow shared by
// expenses and vendor bills.
package approval

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates workflow states. Credited applies to bills only.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusCredited Status = "credited"
	StatusPaid     Status = "paid"
	StatusRejected Status = "rejected"
)

// Action names a decide() verb.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionCredit  Action = "credit"
	ActionPay     Action = "pay"
)

// Expense is a site spending request funded, optionally, by an allocation.
type Expense struct {
	ID               int64
	SiteID           int64
	Category         string
	FundAllocationID *int64
	RequestedAmount  decimal.Decimal
	ApprovedAmount   *decimal.Decimal
	Status           Status
	AmountHidden     bool
	Notes            string
	PaymentMethod    *string
	PaymentReference *string
	PaidDate         *time.Time
	ApprovedBy       *int64
	ApprovedAt       *time.Time
	SubmittedBy      int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Bill is a vendor invoice with GST-derived amounts. TotalAmount plays the
// role RequestedAmount plays for expenses.
type Bill struct {
	ID               int64
	SiteID           int64
	VendorName       string
	VendorGSTIN      string
	FundAllocationID *int64
	BaseAmount       decimal.Decimal
	GSTRate          decimal.Decimal
	GSTAmount        decimal.Decimal
	TotalAmount      decimal.Decimal
	ApprovedAmount   *decimal.Decimal
	Status           Status
	AmountHidden     bool
	Notes            string
	PaymentMethod    *string
	PaymentReference *string
	PaidDate         *time.Time
	ApprovedBy       *int64
	ApprovedAt       *time.Time
	SubmittedBy      int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SubmitExpenseInput creates a pending expense.
type SubmitExpenseInput struct {
	SiteID           int64
	Category         string
	FundAllocationID *int64
	RequestedAmount  decimal.Decimal
	AmountHidden     bool
	Notes            string
}

// SubmitBillInput creates a pending bill. GST and total amounts are derived.
type SubmitBillInput struct {
	SiteID           int64
	VendorName       string
	VendorGSTIN      string
	FundAllocationID *int64
	BaseAmount       decimal.Decimal
	GSTRate          decimal.Decimal
	AmountHidden     bool
	Notes            string
}

// UpdateExpenseInput patches a pending expense. Nil fields are left alone.
type UpdateExpenseInput struct {
	SiteID           *int64
	Category         *string
	FundAllocationID *int64
	RequestedAmount  *decimal.Decimal
	Notes            *string
}

// UpdateBillInput patches a pending bill. Changing base or rate rederives the
// GST and total amounts.
type UpdateBillInput struct {
	SiteID      *int64
	VendorName  *string
	VendorGSTIN *string
	BaseAmount  *decimal.Decimal
	GSTRate     *decimal.Decimal
	Notes       *string
}

// DecideInput carries one decide() call.
type DecideInput struct {
	Action           Action
	ApprovedAmount   *decimal.Decimal
	Notes            string
	PaymentMethod    string
	PaymentReference string
}

// ListFilter narrows expense and bill listings.
type ListFilter struct {
	SiteID           int64
	Status           Status
	FundAllocationID int64
	SubmittedBy      int64
	Page             int
	PerPage          int
}
