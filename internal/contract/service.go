package contract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundline/fundline/internal/allocation"
	"github.com/fundline/fundline/internal/ledger"
	"github.com/fundline/fundline/internal/shared"
)

// Repository defines contract data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	Get(ctx context.Context, id int64) (Contract, error)
	List(ctx context.Context, filter ListFilter) ([]Contract, int, error)
	Delete(ctx context.Context, id int64) error
}

// TxRepository defines operations within a transaction, so the installment
// recomputation commits atomically with the contract row it mutates.
type TxRepository interface {
	CreateContract(ctx context.Context, c Contract) (int64, error)
	CreateInstallment(ctx context.Context, ins Installment) error
	UpdateContract(ctx context.Context, c Contract) error
	UpdateInstallment(ctx context.Context, ins Installment) error
	// InsertLedgerEntry writes the payment's debit posting alongside the
	// contract mutation.
	InsertLedgerEntry(ctx context.Context, e ledger.Entry) error
}

// AllocationSource validates optional funding references.
type AllocationSource interface {
	Get(ctx context.Context, id int64) (allocation.FundAllocation, error)
}

// Service tracks labor contracts and their installment payments.
type Service struct {
	repo        Repository
	allocations AllocationSource
}

// NewService constructs a Service.
func NewService(repo Repository, allocations AllocationSource) *Service {
	return &Service{repo: repo, allocations: allocations}
}

// Create records a draft contract with its installment schedule generated up
// front.
func (s *Service) Create(ctx context.Context, input CreateInput) (Contract, error) {
	if !input.TotalAmount.IsPositive() {
		return Contract{}, fmt.Errorf("contract: total amount must be positive: %w", shared.ErrValidation)
	}
	if input.NumberOfInstallments < 1 {
		return Contract{}, fmt.Errorf("contract: at least one installment required: %w", shared.ErrValidation)
	}
	if input.WorkerID == 0 || input.SiteID == 0 {
		return Contract{}, fmt.Errorf("contract: worker and site required: %w", shared.ErrValidation)
	}
	if input.StartDate != nil && input.EndDate != nil && !input.EndDate.After(*input.StartDate) {
		return Contract{}, fmt.Errorf("contract: end date must follow start date: %w", shared.ErrValidation)
	}
	if input.FundAllocationID != nil {
		a, err := s.allocations.Get(ctx, *input.FundAllocationID)
		if err != nil {
			return Contract{}, err
		}
		if a.Status != allocation.StatusDisbursed {
			return Contract{}, fmt.Errorf("contract: funding allocation %d not disbursed: %w", a.ID, shared.ErrInvalidState)
		}
	}

	now := time.Now()
	c := Contract{
		WorkerID:             input.WorkerID,
		SiteID:               input.SiteID,
		FundAllocationID:     input.FundAllocationID,
		ContractType:         input.ContractType,
		TotalAmount:          shared.Money2(input.TotalAmount),
		NumberOfInstallments: input.NumberOfInstallments,
		TotalPaid:            decimal.Zero,
		RemainingAmount:      shared.Money2(input.TotalAmount),
		Status:               StatusDraft,
		DailyRate:            input.DailyRate,
		StartDate:            input.StartDate,
		EndDate:              input.EndDate,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	c.Installments = GenerateInstallments(c.TotalAmount, c.NumberOfInstallments, c.StartDate, c.EndDate)

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateContract(ctx, c)
		if err != nil {
			return err
		}
		c.ID = id
		for i := range c.Installments {
			c.Installments[i].ContractID = id
			if err := tx.CreateInstallment(ctx, c.Installments[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Contract{}, err
	}
	return c, nil
}

// Get returns one contract with installments.
func (s *Service) Get(ctx context.Context, id int64) (Contract, error) {
	return s.repo.Get(ctx, id)
}

// List returns contracts matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Contract, shared.Pagination, error) {
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return rows, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Activate moves a draft contract to active.
func (s *Service) Activate(ctx context.Context, id int64) (Contract, error) {
	return s.transition(ctx, id, StatusActive, map[Status]bool{StatusDraft: true})
}

// Hold pauses an active contract.
func (s *Service) Hold(ctx context.Context, id int64) (Contract, error) {
	return s.transition(ctx, id, StatusOnHold, map[Status]bool{StatusActive: true})
}

// Resume reactivates an on-hold contract.
func (s *Service) Resume(ctx context.Context, id int64) (Contract, error) {
	return s.transition(ctx, id, StatusActive, map[Status]bool{StatusOnHold: true})
}

// Terminate ends a contract permanently. Terminated is terminal and is never
// auto-overridden by payment completion.
func (s *Service) Terminate(ctx context.Context, id int64) (Contract, error) {
	return s.transition(ctx, id, StatusTerminated, map[Status]bool{StatusActive: true, StatusOnHold: true})
}

func (s *Service) transition(ctx context.Context, id int64, next Status, from map[Status]bool) (Contract, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return Contract{}, err
	}
	if !from[c.Status] {
		return Contract{}, fmt.Errorf("contract: %s -> %s: %w", c.Status, next, shared.ErrInvalidState)
	}
	c.Status = next
	c.UpdatedAt = time.Now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateContract(ctx, c)
	})
	if err != nil {
		return Contract{}, err
	}
	return c, nil
}

// RecordPayment applies a partial payment to one installment, rederives all
// aggregates from the full installment list, and posts the matching worker
// ledger debit in the same transaction.
func (s *Service) RecordPayment(ctx context.Context, input PaymentInput) (Contract, error) {
	if !input.Amount.IsPositive() {
		return Contract{}, fmt.Errorf("contract: payment amount must be positive: %w", shared.ErrValidation)
	}
	if strings.TrimSpace(input.PaymentMode) == "" {
		return Contract{}, fmt.Errorf("contract: payment mode required: %w", shared.ErrValidation)
	}
	c, err := s.repo.Get(ctx, input.ContractID)
	if err != nil {
		return Contract{}, err
	}
	if c.Status == StatusDraft {
		return Contract{}, fmt.Errorf("contract: activate before recording payments: %w", shared.ErrInvalidState)
	}
	if c.Status == StatusTerminated {
		return Contract{}, fmt.Errorf("contract: terminated contracts accept no payments: %w", shared.ErrInvalidState)
	}

	idx := -1
	for i := range c.Installments {
		if c.Installments[i].InstallmentNumber == input.InstallmentNumber {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Contract{}, fmt.Errorf("contract: installment %d of contract %d: %w", input.InstallmentNumber, c.ID, shared.ErrNotFound)
	}

	ins := &c.Installments[idx]
	ins.PaidAmount = shared.Money2(ins.PaidAmount.Add(input.Amount))
	ins.Status = deriveInstallmentStatus(*ins)

	recomputeTotals(&c)
	if c.TotalPaid.GreaterThanOrEqual(c.TotalAmount) {
		c.Status = StatusCompleted
	}
	c.UpdatedAt = time.Now()

	entry := ledger.Entry{
		WorkerID:         c.WorkerID,
		SiteID:           &c.SiteID,
		FundAllocationID: c.FundAllocationID,
		Type:             ledger.TypeDebit,
		Amount:           shared.Money2(input.Amount),
		Category:         ledger.CategoryContractPayment,
		PaymentMode:      input.PaymentMode,
		Reference:        input.Reference,
		TransactionDate:  time.Now(),
		CreatedAt:        time.Now(),
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateInstallment(ctx, *ins); err != nil {
			return err
		}
		if err := tx.UpdateContract(ctx, c); err != nil {
			return err
		}
		return tx.InsertLedgerEntry(ctx, entry)
	})
	if err != nil {
		return Contract{}, err
	}
	return c, nil
}

// Delete removes a contract that has never been paid against.
func (s *Service) Delete(ctx context.Context, id int64) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.TotalPaid.IsPositive() {
		return fmt.Errorf("contract: %s already paid against contract %d: %w", c.TotalPaid.StringFixed(2), id, shared.ErrConflict)
	}
	return s.repo.Delete(ctx, id)
}
