package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Lgsalgado/banking-system-backend/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createRequest struct {
	AccountNumber string `json:"accountNumber" validate:"required"`
	MovementType  string `json:"movementType" validate:"required"`
}

func TestDecodeJSONValidates(t *testing.T) {
	v := NewValidator()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"accountNumber":"478758"}`))
	var dst createRequest
	err := v.DecodeJSON(req, &dst)
	require.Error(t, err)

	rec := httptest.NewRecorder()
	WriteError(rec, nil, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "VALIDATION_FAILED", body.Code)
	assert.Contains(t, body.Details, "movementType")
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	v := NewValidator()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"accountNumber":"1","movementType":"DEBIT","extra":true}`))
	var dst createRequest
	err := v.DecodeJSON(req, &dst)

	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestWriteErrorMapsKinds(t *testing.T) {
	tests := []struct {
		kind       apperror.Kind
		wantStatus int
	}{
		{apperror.KindValidation, http.StatusBadRequest},
		{apperror.KindBusinessRule, http.StatusUnprocessableEntity},
		{apperror.KindNotFound, http.StatusNotFound},
		{apperror.KindConflict, http.StatusConflict},
		{apperror.KindBusy, http.StatusServiceUnavailable},
		{apperror.KindDelivery, http.StatusAccepted},
	}

	for _, tc := range tests {
		t.Run(string(tc.kind), func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, nil, fmt.Errorf("wrapped: %w", apperror.New(tc.kind, "CODE", "message")))
			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}

func TestWriteErrorBusySetsRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, nil, apperror.New(apperror.KindBusy, "ACCOUNT_BUSY", "busy"))
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, nil, errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
}
