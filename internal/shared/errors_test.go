package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOfWrappedError(t *testing.T) {
	err := fmt.Errorf("sales: create: %w", Conflict("la venta ya fue anulada"))
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, "la venta ya fue anulada", UserSafeMessage(err))
}

func TestAsErrorHidesUnexpectedCause(t *testing.T) {
	cause := errors.New("pq: connection reset")
	e := AsError(cause)
	require.NotNil(t, e)
	assert.Equal(t, KindInternal, e.Kind)
	assert.NotContains(t, e.Message, "connection reset")
	assert.ErrorIs(t, e, cause)
}

func TestNotFoundMatchesSentinel(t *testing.T) {
	err := NotFound("producto no encontrado")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWithDetailsDoesNotMutateOriginal(t *testing.T) {
	base := Validation("datos inválidos")
	withDetail := base.WithDetails(FieldError{Field: "total", Message: "no coincide"})
	assert.Empty(t, base.Details)
	require.Len(t, withDetail.Details, 1)
	assert.Equal(t, "total", withDetail.Details[0].Field)
}
