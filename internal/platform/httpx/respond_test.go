package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

func TestRespondErrorConflict(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, nil, nil, shared.Conflict("ya tiene una caja abierta"))

	require.Equal(t, http.StatusConflict, rr.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ya tiene una caja abierta", body.Error)
	assert.Empty(t, body.Details)
}

func TestRespondErrorInternalHidesCause(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", nil)
	RespondError(rr, req, nil, errors.New("dial tcp 10.0.0.1:5432: refused"))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "10.0.0.1")
}

type sampleRequest struct {
	Reason string `json:"reason" validate:"required,min=10"`
	Items  []struct {
		Quantity int `json:"quantity" validate:"gt=0"`
	} `json:"items" validate:"required,min=1,dive"`
}

func TestValidateReportsFieldDetails(t *testing.T) {
	req := sampleRequest{Reason: "corto"}
	req.Items = append(req.Items, struct {
		Quantity int `json:"quantity" validate:"gt=0"`
	}{Quantity: 0})

	err := Validate(req)
	require.Error(t, err)
	e := shared.AsError(err)
	assert.Equal(t, shared.KindValidation, e.Kind)

	fields := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		fields = append(fields, d.Field)
	}
	assert.Contains(t, fields, "reason")
	assert.Contains(t, fields, "items[0].quantity")
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"x","bogus":1}`))
	var target sampleRequest
	err := DecodeJSON(rr, req, &target)
	require.Error(t, err)
	assert.Equal(t, shared.KindValidation, shared.KindOf(err))
}
