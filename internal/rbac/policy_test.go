package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

func TestPolicyCashierCannotCancelSales(t *testing.T) {
	policy := NewDefaultPolicy()
	actor := shared.Actor{UserID: uuid.New(), BusinessID: uuid.New(), Role: "Cashier"}

	require.NoError(t, policy.Authorize(context.Background(), actor, shared.PermSaleCreate))
	err := policy.Authorize(context.Background(), actor, shared.PermSaleCancel)
	require.Error(t, err)
	assert.Equal(t, shared.KindForbidden, shared.KindOf(err))
}

func TestPolicyUnknownRoleHasNothing(t *testing.T) {
	policy := NewDefaultPolicy()
	assert.False(t, policy.Allows("guest", shared.PermSaleView))
	assert.Empty(t, policy.EffectivePermissions("guest"))
}

func TestMiddlewareRequireAny(t *testing.T) {
	mw := Middleware{Authorizer: NewDefaultPolicy()}
	handler := mw.RequireAny(shared.PermStockManage, shared.PermStockView)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		actor  *shared.Actor
		status int
	}{
		{name: "no actor", status: http.StatusUnauthorized},
		{name: "cashier can view", actor: &shared.Actor{UserID: uuid.New(), BusinessID: uuid.New(), Role: RoleCashier}, status: http.StatusNoContent},
		{name: "unknown role", actor: &shared.Actor{UserID: uuid.New(), BusinessID: uuid.New(), Role: "guest"}, status: http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.actor != nil {
				req = req.WithContext(shared.ContextWithActor(req.Context(), *tc.actor))
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, tc.status, rr.Code)
		})
	}
}

func TestMiddlewareRequireAll(t *testing.T) {
	mw := Middleware{Authorizer: NewDefaultPolicy()}
	handler := mw.RequireAll(shared.PermStockManage, shared.PermSaleCancel)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(shared.ContextWithActor(req.Context(), shared.Actor{UserID: uuid.New(), BusinessID: uuid.New(), Role: RoleStock}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
