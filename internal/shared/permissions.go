package shared

import (
	"context"
)

// Permission names a capability checked before an operation executes.
type Permission string

// Point-of-sale permissions.
const (
	PermSaleCreate      Permission = "pos.sale.create"
	PermSaleCancel      Permission = "pos.sale.cancel"
	PermSaleView        Permission = "pos.sale.view"
	PermRefundCreate    Permission = "pos.refund.create"
	PermRegisterOperate Permission = "pos.register.operate"
	PermRegisterView    Permission = "pos.register.view"
	PermCashMovement    Permission = "pos.cash.movement"
	PermStockManage     Permission = "pos.stock.manage"
	PermStockView       Permission = "pos.stock.view"
	PermClientPayment   Permission = "pos.client.payment"
	PermClientCredit    Permission = "pos.client.credit"
	PermClientView      Permission = "pos.client.view"
	PermActivityView    Permission = "pos.activity.view"
)

// POSScopes lists all point-of-sale permissions.
func POSScopes() []Permission {
	return []Permission{
		PermSaleCreate,
		PermSaleCancel,
		PermSaleView,
		PermRefundCreate,
		PermRegisterOperate,
		PermRegisterView,
		PermCashMovement,
		PermStockManage,
		PermStockView,
		PermClientPayment,
		PermClientCredit,
		PermClientView,
		PermActivityView,
	}
}

// Authorizer decides whether an actor may perform an action. Implementations
// return a KindForbidden *Error on deny.
type Authorizer interface {
	Authorize(ctx context.Context, actor Actor, perm Permission) error
}

// AllowAll grants everything. Used by tests and single-user deployments.
type AllowAll struct{}

// Authorize implements Authorizer.
func (AllowAll) Authorize(context.Context, Actor, Permission) error { return nil }

// Authorize runs the check with a nil-safe authorizer and validates the actor.
func Authorize(ctx context.Context, authz Authorizer, actor Actor, perm Permission) error {
	if !actor.Valid() {
		return Unauthorized("sesión no válida")
	}
	if authz == nil {
		return nil
	}
	return authz.Authorize(ctx, actor, perm)
}
