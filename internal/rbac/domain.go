// Package rbac maps roles onto operation capabilities through one explicit
// table, evaluated once at the workflow boundary.
package rbac

// Role names as supplied by the auth collaborator.
const (
	RoleAdmin      = "admin"
	RoleFinance    = "finance"
	RoleManager    = "manager"
	RoleSupervisor = "supervisor"
	RoleWorker     = "worker"
)

// Operation identifiers gate every mutating path in the core.
const (
	OpAllocationCreate     = "allocation:create"
	OpAllocationApprove    = "allocation:approve"
	OpAllocationDisburse   = "allocation:disburse"
	OpAllocationUpdate     = "allocation:update"
	OpAllocationDelete     = "allocation:delete"
	OpAllocationView       = "allocation:view"
	OpExpenseSubmit        = "expense:submit"
	OpExpenseDecide        = "expense:decide"
	OpBillSubmit           = "bill:submit"
	OpBillDecide           = "bill:decide"
	OpAmountsViewHidden    = "amounts:view-hidden"
	OpContractManage       = "contract:manage"
	OpContractPay          = "contract:pay"
	OpLedgerPost           = "ledger:post"
	OpLedgerView           = "ledger:view"
	OpAttendanceMark       = "attendance:mark"
	OpWalletView           = "wallet:view"
	OpEarningsPost         = "earnings:post"
)

// capabilities is the single source of role permissions. Admin is handled in
// Can rather than enumerated.
var capabilities = map[string]map[string]bool{
	RoleFinance: {
		OpAllocationCreate:   true,
		OpAllocationApprove:  true,
		OpAllocationDisburse: true,
		OpAllocationUpdate:   true,
		OpAllocationDelete:   true,
		OpAllocationView:     true,
		OpExpenseDecide:      true,
		OpBillDecide:         true,
		OpAmountsViewHidden:  true,
		OpContractManage:     true,
		OpContractPay:        true,
		OpLedgerPost:         true,
		OpLedgerView:         true,
		OpWalletView:         true,
		OpEarningsPost:       true,
	},
	RoleManager: {
		OpAllocationCreate:   true,
		OpAllocationDisburse: true,
		OpAllocationUpdate:   true,
		OpAllocationView:     true,
		OpExpenseSubmit:      true,
		OpExpenseDecide:      true,
		OpBillSubmit:         true,
		OpBillDecide:         true,
		OpAmountsViewHidden:  true,
		OpContractManage:     true,
		OpContractPay:        true,
		OpLedgerPost:         true,
		OpLedgerView:         true,
		OpAttendanceMark:     true,
		OpWalletView:         true,
		OpEarningsPost:       true,
	},
	RoleSupervisor: {
		OpAllocationDisburse: true,
		OpAllocationView:     true,
		OpExpenseSubmit:      true,
		OpBillSubmit:         true,
		OpLedgerView:         true,
		OpAttendanceMark:     true,
		OpWalletView:         true,
	},
	RoleWorker: {
		OpLedgerView: true,
	},
}

// Can reports whether a role holds a capability.
func Can(role, operation string) bool {
	if role == RoleAdmin {
		return true
	}
	return capabilities[role][operation]
}
