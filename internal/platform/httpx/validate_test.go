package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/replenishment/internal/shared"
)

type lineRequest struct {
	ItemID   int64 `json:"item_id" validate:"required,gt=0"`
	Quantity int64 `json:"quantity" validate:"gt=0"`
}

func TestDecodeAndValidateReportsFieldFailures(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"item_id":0,"quantity":-1}`))
	var body lineRequest
	err := DecodeAndValidate(req, &body)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "lineRequest.ItemID failed required")
	require.Contains(t, err.Error(), "lineRequest.Quantity failed gt")
}

func TestDecodeAndValidateAcceptsValidBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"item_id":3,"quantity":5}`))
	var body lineRequest
	require.NoError(t, DecodeAndValidate(req, &body))
	require.Equal(t, int64(3), body.ItemID)
}

func TestIDParam(t *testing.T) {
	withParam := func(value string) *http.Request {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", value)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	id, err := IDParam(withParam("42"), "id")
	require.NoError(t, err)
	require.Equal(t, int64(42), id)

	_, err = IDParam(withParam("abc"), "id")
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = IDParam(withParam("-1"), "id")
	require.ErrorIs(t, err, shared.ErrValidation)
}
