package rbac

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCan(t *testing.T) {
	require.True(t, Can(RoleAdmin, OpAllocationApprove))
	require.True(t, Can(RoleFinance, OpAllocationApprove))
	require.False(t, Can(RoleManager, OpAllocationApprove))
	require.True(t, Can(RoleManager, OpExpenseDecide))
	require.True(t, Can(RoleSupervisor, OpExpenseSubmit))
	require.False(t, Can(RoleSupervisor, OpExpenseDecide))
	require.False(t, Can(RoleWorker, OpExpenseSubmit))
	require.True(t, Can(RoleWorker, OpLedgerView))
	require.False(t, Can("unknown", OpLedgerView))
}
