package rbac

import "github.com/odyssey-erp/odyssey-pos/internal/shared"

// Role names understood by the default policy.
const (
	RoleOwner   = "owner"
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleCashier = "cashier"
	RoleStock   = "stock"
)

// DefaultGrants maps each built-in role to its permissions.
func DefaultGrants() map[string][]shared.Permission {
	all := shared.POSScopes()
	return map[string][]shared.Permission{
		RoleOwner: all,
		RoleAdmin: all,
		RoleManager: {
			shared.PermSaleCreate,
			shared.PermSaleCancel,
			shared.PermSaleView,
			shared.PermRefundCreate,
			shared.PermRegisterOperate,
			shared.PermRegisterView,
			shared.PermCashMovement,
			shared.PermStockManage,
			shared.PermStockView,
			shared.PermClientPayment,
			shared.PermClientCredit,
			shared.PermClientView,
			shared.PermActivityView,
		},
		RoleCashier: {
			shared.PermSaleCreate,
			shared.PermSaleView,
			shared.PermRegisterOperate,
			shared.PermRegisterView,
			shared.PermCashMovement,
			shared.PermStockView,
			shared.PermClientPayment,
			shared.PermClientView,
		},
		RoleStock: {
			shared.PermStockManage,
			shared.PermStockView,
		},
	}
}
