package contract

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates labor contract lifecycle states.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusActive     Status = "active"
	StatusCompleted  Status = "completed"
	StatusTerminated Status = "terminated"
	StatusOnHold     Status = "on_hold"
)

// InstallmentStatus is derived from paidAmount versus amount.
type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "pending"
	InstallmentPartial InstallmentStatus = "partial"
	InstallmentPaid    InstallmentStatus = "paid"
)

// Contract is a labor agreement paid out in scheduled installments.
// TotalPaid and RemainingAmount are derived from the installment rows and
// recomputed on every write, never incremented.
type Contract struct {
	ID                   int64
	WorkerID             int64
	SiteID               int64
	FundAllocationID     *int64
	ContractType         string
	TotalAmount          decimal.Decimal
	NumberOfInstallments int
	TotalPaid            decimal.Decimal
	RemainingAmount      decimal.Decimal
	Status               Status
	DailyRate            *decimal.Decimal
	StartDate            *time.Time
	EndDate              *time.Time
	Installments         []Installment
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Installment is one scheduled partial payment of the contract total.
type Installment struct {
	ID                int64
	ContractID        int64
	InstallmentNumber int
	Amount            decimal.Decimal
	PaidAmount        decimal.Decimal
	Status            InstallmentStatus
	DueDate           *time.Time
}

// CreateInput for new contracts.
type CreateInput struct {
	WorkerID             int64
	SiteID               int64
	FundAllocationID     *int64
	ContractType         string
	TotalAmount          decimal.Decimal
	NumberOfInstallments int
	DailyRate            *decimal.Decimal
	StartDate            *time.Time
	EndDate              *time.Time
}

// PaymentInput records money against one installment.
type PaymentInput struct {
	ContractID        int64
	InstallmentNumber int
	Amount            decimal.Decimal
	PaymentMode       string
	Reference         string
}

// ListFilter narrows contract listings.
type ListFilter struct {
	WorkerID int64
	SiteID   int64
	Status   Status
	Page     int
	PerPage  int
}
