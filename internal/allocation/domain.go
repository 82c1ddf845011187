package allocation

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates fund allocation lifecycle states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDisbursed Status = "disbursed"
	StatusRejected  Status = "rejected"
)

// FundAllocation is a transfer of spending authority from one user to
// another, optionally scoped to a site.
type FundAllocation struct {
	ID              int64
	FromUser        int64
	ToUser          int64
	SiteID          *int64
	ParentID        *int64
	Amount          decimal.Decimal
	Purpose         string
	Description     string
	Status          Status
	AllocationDate  time.Time
	DisbursedDate   *time.Time
	ReferenceNumber string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateInput for new allocations.
type CreateInput struct {
	FromUser        int64
	ToUser          int64
	SiteID          *int64
	ParentID        *int64
	Amount          decimal.Decimal
	Purpose         string
	Description     string
	ReferenceNumber string
	AllocationDate  time.Time
}

// UpdateInput is a sparse patch; nil fields are left untouched.
type UpdateInput struct {
	ToUser          *int64
	SiteID          *int64
	Amount          *decimal.Decimal
	Purpose         *string
	Description     *string
	ReferenceNumber *string
}

// ListFilter narrows allocation listings.
type ListFilter struct {
	Status   Status
	SiteID   int64
	FromUser int64
	ToUser   int64
	Page     int
	PerPage  int
}
