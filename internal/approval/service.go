package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundline/fundline/internal/allocation"
	"github.com/fundline/fundline/internal/shared"
)

// Repository defines expense and bill data access.
type Repository interface {
	CreateExpense(ctx context.Context, e Expense) (int64, error)
	GetExpense(ctx context.Context, id int64) (Expense, error)
	UpdateExpense(ctx context.Context, e Expense) error
	DeleteExpense(ctx context.Context, id int64) error
	ListExpenses(ctx context.Context, filter ListFilter) ([]Expense, int, error)

	CreateBill(ctx context.Context, b Bill) (int64, error)
	GetBill(ctx context.Context, id int64) (Bill, error)
	UpdateBill(ctx context.Context, b Bill) error
	DeleteBill(ctx context.Context, id int64) error
	ListBills(ctx context.Context, filter ListFilter) ([]Bill, int, error)
}

// AllocationSource validates funding references at submit time.
type AllocationSource interface {
	Get(ctx context.Context, id int64) (allocation.FundAllocation, error)
}

// UtilizationSource reports the spendable remainder of an allocation. Used
// only when over-commitment is configured as a hard stop.
type UtilizationSource interface {
	RemainingBalance(ctx context.Context, allocationID int64) (decimal.Decimal, error)
}

// IdempotencyGuard fences pay transitions so two racing pay calls on the
// same record cannot both go through.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Config carries workflow policy knobs.
type Config struct {
	// AllowOvercommit keeps utilization advisory. When false, approvals
	// that would push the funding allocation negative fail.
	AllowOvercommit bool
}

// Service runs the approval workflow for expenses and bills.
type Service struct {
	repo        Repository
	allocations AllocationSource
	utilization UtilizationSource
	idem        IdempotencyGuard
	cfg         Config
}

// NewService constructs a Service. idem may be nil, disabling the pay fence.
func NewService(repo Repository, allocations AllocationSource, utilization UtilizationSource, idem IdempotencyGuard, cfg Config) *Service {
	return &Service{repo: repo, allocations: allocations, utilization: utilization, idem: idem, cfg: cfg}
}

func (s *Service) checkFunding(ctx context.Context, fundAllocationID *int64) error {
	if fundAllocationID == nil {
		return nil
	}
	a, err := s.allocations.Get(ctx, *fundAllocationID)
	if err != nil {
		return err
	}
	if a.Status != allocation.StatusDisbursed {
		return fmt.Errorf("approval: funding allocation %d not disbursed: %w", a.ID, shared.ErrInvalidState)
	}
	return nil
}

// checkOvercommit rejects an approval amount that exceeds the allocation's
// remaining balance, only when the hard-stop policy is on. The remainder
// already excludes pending records so the candidate amount subtracts cleanly.
func (s *Service) checkOvercommit(ctx context.Context, fundAllocationID *int64, amount decimal.Decimal) error {
	if s.cfg.AllowOvercommit || fundAllocationID == nil {
		return nil
	}
	remaining, err := s.utilization.RemainingBalance(ctx, *fundAllocationID)
	if err != nil {
		return err
	}
	if remaining.Sub(amount).IsNegative() {
		return fmt.Errorf("approval: amount %s exceeds remaining balance %s of allocation %d: %w",
			amount.StringFixed(2), remaining.StringFixed(2), *fundAllocationID, shared.ErrValidation)
	}
	return nil
}

// payFence burns a one-shot key before a pay transition commits.
func (s *Service) payFence(ctx context.Context, key string) error {
	if s.idem == nil {
		return nil
	}
	return s.idem.CheckAndInsert(ctx, key, "approval")
}

// releaseFence returns the key when the pay write itself failed, so the
// caller can retry.
func (s *Service) releaseFence(ctx context.Context, key string) {
	if s.idem != nil {
		_ = s.idem.Delete(ctx, key)
	}
}

// SubmitExpense creates a pending expense owned by the submitter.
func (s *Service) SubmitExpense(ctx context.Context, actor shared.Principal, input SubmitExpenseInput) (Expense, error) {
	if !input.RequestedAmount.IsPositive() {
		return Expense{}, fmt.Errorf("approval: requested amount must be positive: %w", shared.ErrValidation)
	}
	if input.SiteID == 0 || input.Category == "" {
		return Expense{}, fmt.Errorf("approval: site and category required: %w", shared.ErrValidation)
	}
	if err := s.checkFunding(ctx, input.FundAllocationID); err != nil {
		return Expense{}, err
	}

	now := time.Now()
	e := Expense{
		SiteID:           input.SiteID,
		Category:         input.Category,
		FundAllocationID: input.FundAllocationID,
		RequestedAmount:  shared.Money2(input.RequestedAmount),
		Status:           StatusPending,
		AmountHidden:     input.AmountHidden,
		Notes:            input.Notes,
		SubmittedBy:      actor.UserID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	id, err := s.repo.CreateExpense(ctx, e)
	if err != nil {
		return Expense{}, err
	}
	e.ID = id
	return e, nil
}

// SubmitBill creates a pending bill with GST and total derived from the base
// amount and rate.
func (s *Service) SubmitBill(ctx context.Context, actor shared.Principal, input SubmitBillInput) (Bill, error) {
	if !input.BaseAmount.IsPositive() {
		return Bill{}, fmt.Errorf("approval: base amount must be positive: %w", shared.ErrValidation)
	}
	if input.GSTRate.IsNegative() {
		return Bill{}, fmt.Errorf("approval: gst rate must not be negative: %w", shared.ErrValidation)
	}
	if input.SiteID == 0 || input.VendorName == "" {
		return Bill{}, fmt.Errorf("approval: site and vendor name required: %w", shared.ErrValidation)
	}
	if err := s.checkFunding(ctx, input.FundAllocationID); err != nil {
		return Bill{}, err
	}

	base := shared.Money2(input.BaseAmount)
	now := time.Now()
	b := Bill{
		SiteID:           input.SiteID,
		VendorName:       input.VendorName,
		VendorGSTIN:      input.VendorGSTIN,
		FundAllocationID: input.FundAllocationID,
		BaseAmount:       base,
		GSTRate:          input.GSTRate,
		GSTAmount:        shared.GST(base, input.GSTRate),
		TotalAmount:      shared.GSTTotal(base, input.GSTRate),
		Status:           StatusPending,
		AmountHidden:     input.AmountHidden,
		Notes:            input.Notes,
		SubmittedBy:      actor.UserID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	id, err := s.repo.CreateBill(ctx, b)
	if err != nil {
		return Bill{}, err
	}
	b.ID = id
	return b, nil
}

// GetExpense returns one expense.
func (s *Service) GetExpense(ctx context.Context, id int64) (Expense, error) {
	return s.repo.GetExpense(ctx, id)
}

// GetBill returns one bill.
func (s *Service) GetBill(ctx context.Context, id int64) (Bill, error) {
	return s.repo.GetBill(ctx, id)
}

// ListExpenses returns expenses matching the filter.
func (s *Service) ListExpenses(ctx context.Context, filter ListFilter) ([]Expense, shared.Pagination, error) {
	rows, total, err := s.repo.ListExpenses(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return rows, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// ListBills returns bills matching the filter.
func (s *Service) ListBills(ctx context.Context, filter ListFilter) ([]Bill, shared.Pagination, error) {
	rows, total, err := s.repo.ListBills(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return rows, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// ownerMutable guards submitter edits: own record, still pending.
func ownerMutable(status Status, submittedBy int64, actor shared.Principal) error {
	if actor.UserID != submittedBy {
		return fmt.Errorf("approval: user %d does not own this record: %w", actor.UserID, shared.ErrForbidden)
	}
	if status != StatusPending {
		return fmt.Errorf("approval: record already %s: %w", status, shared.ErrImmutableState)
	}
	return nil
}

// UpdateExpense patches a pending expense owned by the actor.
func (s *Service) UpdateExpense(ctx context.Context, actor shared.Principal, id int64, patch UpdateExpenseInput) (Expense, error) {
	e, err := s.repo.GetExpense(ctx, id)
	if err != nil {
		return Expense{}, err
	}
	if err := ownerMutable(e.Status, e.SubmittedBy, actor); err != nil {
		return Expense{}, err
	}
	if patch.SiteID != nil {
		e.SiteID = *patch.SiteID
	}
	if patch.Category != nil {
		e.Category = *patch.Category
	}
	if patch.FundAllocationID != nil {
		if err := s.checkFunding(ctx, patch.FundAllocationID); err != nil {
			return Expense{}, err
		}
		e.FundAllocationID = patch.FundAllocationID
	}
	if patch.RequestedAmount != nil {
		if !patch.RequestedAmount.IsPositive() {
			return Expense{}, fmt.Errorf("approval: requested amount must be positive: %w", shared.ErrValidation)
		}
		e.RequestedAmount = shared.Money2(*patch.RequestedAmount)
	}
	if patch.Notes != nil {
		e.Notes = *patch.Notes
	}
	e.UpdatedAt = time.Now()
	if err := s.repo.UpdateExpense(ctx, e); err != nil {
		return Expense{}, err
	}
	return e, nil
}

// UpdateBill patches a pending bill owned by the actor, rederiving the GST
// amounts when base or rate change.
func (s *Service) UpdateBill(ctx context.Context, actor shared.Principal, id int64, patch UpdateBillInput) (Bill, error) {
	b, err := s.repo.GetBill(ctx, id)
	if err != nil {
		return Bill{}, err
	}
	if err := ownerMutable(b.Status, b.SubmittedBy, actor); err != nil {
		return Bill{}, err
	}
	if patch.SiteID != nil {
		b.SiteID = *patch.SiteID
	}
	if patch.VendorName != nil {
		b.VendorName = *patch.VendorName
	}
	if patch.VendorGSTIN != nil {
		b.VendorGSTIN = *patch.VendorGSTIN
	}
	if patch.BaseAmount != nil {
		if !patch.BaseAmount.IsPositive() {
			return Bill{}, fmt.Errorf("approval: base amount must be positive: %w", shared.ErrValidation)
		}
		b.BaseAmount = shared.Money2(*patch.BaseAmount)
	}
	if patch.GSTRate != nil {
		if patch.GSTRate.IsNegative() {
			return Bill{}, fmt.Errorf("approval: gst rate must not be negative: %w", shared.ErrValidation)
		}
		b.GSTRate = *patch.GSTRate
	}
	if patch.BaseAmount != nil || patch.GSTRate != nil {
		b.GSTAmount = shared.GST(b.BaseAmount, b.GSTRate)
		b.TotalAmount = shared.GSTTotal(b.BaseAmount, b.GSTRate)
	}
	if patch.Notes != nil {
		b.Notes = *patch.Notes
	}
	b.UpdatedAt = time.Now()
	if err := s.repo.UpdateBill(ctx, b); err != nil {
		return Bill{}, err
	}
	return b, nil
}

// DeleteExpense removes a pending expense owned by the actor.
func (s *Service) DeleteExpense(ctx context.Context, actor shared.Principal, id int64) error {
	e, err := s.repo.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	if err := ownerMutable(e.Status, e.SubmittedBy, actor); err != nil {
		return err
	}
	return s.repo.DeleteExpense(ctx, id)
}

// DeleteBill removes a pending bill owned by the actor.
func (s *Service) DeleteBill(ctx context.Context, actor shared.Principal, id int64) error {
	b, err := s.repo.GetBill(ctx, id)
	if err != nil {
		return err
	}
	if err := ownerMutable(b.Status, b.SubmittedBy, actor); err != nil {
		return err
	}
	return s.repo.DeleteBill(ctx, id)
}

// DecideExpense executes one workflow step on an expense.
func (s *Service) DecideExpense(ctx context.Context, actor shared.Principal, id int64, input DecideInput) (Expense, error) {
	e, err := s.repo.GetExpense(ctx, id)
	if err != nil {
		return Expense{}, err
	}
	next, err := nextStatus(e.Status, input.Action, false)
	if err != nil {
		return Expense{}, err
	}
	now := time.Now()
	fenceKey := fmt.Sprintf("expense:pay:%d", e.ID)
	switch input.Action {
	case ActionApprove:
		amount := e.RequestedAmount
		if input.ApprovedAmount != nil {
			amount = shared.Money2(*input.ApprovedAmount)
		}
		if amount.IsNegative() {
			return Expense{}, fmt.Errorf("approval: approved amount must not be negative: %w", shared.ErrValidation)
		}
		if err := s.checkOvercommit(ctx, e.FundAllocationID, amount); err != nil {
			return Expense{}, err
		}
		e.ApprovedAmount = &amount
		e.ApprovedBy = &actor.UserID
		e.ApprovedAt = &now
	case ActionReject:
		if input.Notes == "" {
			return Expense{}, fmt.Errorf("approval: rejection requires notes: %w", shared.ErrValidation)
		}
		e.Notes = input.Notes
	case ActionPay:
		if input.PaymentMethod == "" {
			return Expense{}, fmt.Errorf("approval: payment method required: %w", shared.ErrValidation)
		}
		if err := s.payFence(ctx, fenceKey); err != nil {
			return Expense{}, err
		}
		e.PaymentMethod = &input.PaymentMethod
		if input.PaymentReference != "" {
			e.PaymentReference = &input.PaymentReference
		}
		e.PaidDate = &now
	}
	if input.Action != ActionReject && input.Notes != "" {
		e.Notes = input.Notes
	}
	e.Status = next
	e.UpdatedAt = now
	if err := s.repo.UpdateExpense(ctx, e); err != nil {
		if input.Action == ActionPay {
			s.releaseFence(ctx, fenceKey)
		}
		return Expense{}, err
	}
	return e, nil
}

// DecideBill executes one workflow step on a bill. Bills additionally pass
// through credited between approved and paid when the vendor extends credit.
func (s *Service) DecideBill(ctx context.Context, actor shared.Principal, id int64, input DecideInput) (Bill, error) {
	b, err := s.repo.GetBill(ctx, id)
	if err != nil {
		return Bill{}, err
	}
	next, err := nextStatus(b.Status, input.Action, true)
	if err != nil {
		return Bill{}, err
	}
	now := time.Now()
	fenceKey := fmt.Sprintf("bill:pay:%d", b.ID)
	switch input.Action {
	case ActionApprove:
		amount := b.TotalAmount
		if input.ApprovedAmount != nil {
			amount = shared.Money2(*input.ApprovedAmount)
		}
		if amount.IsNegative() {
			return Bill{}, fmt.Errorf("approval: approved amount must not be negative: %w", shared.ErrValidation)
		}
		if err := s.checkOvercommit(ctx, b.FundAllocationID, amount); err != nil {
			return Bill{}, err
		}
		b.ApprovedAmount = &amount
		b.ApprovedBy = &actor.UserID
		b.ApprovedAt = &now
	case ActionReject:
		if input.Notes == "" {
			return Bill{}, fmt.Errorf("approval: rejection requires notes: %w", shared.ErrValidation)
		}
		b.Notes = input.Notes
	case ActionPay:
		if input.PaymentMethod == "" {
			return Bill{}, fmt.Errorf("approval: payment method required: %w", shared.ErrValidation)
		}
		if err := s.payFence(ctx, fenceKey); err != nil {
			return Bill{}, err
		}
		b.PaymentMethod = &input.PaymentMethod
		if input.PaymentReference != "" {
			b.PaymentReference = &input.PaymentReference
		}
		b.PaidDate = &now
	}
	if input.Action != ActionReject && input.Notes != "" {
		b.Notes = input.Notes
	}
	b.Status = next
	b.UpdatedAt = now
	if err := s.repo.UpdateBill(ctx, b); err != nil {
		if input.Action == ActionPay {
			s.releaseFence(ctx, fenceKey)
		}
		return Bill{}, err
	}
	return b, nil
}
