package handler

import (
	"context"
	"encoding/json"
	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/rookgm/reviewmart/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"testing"
)

var decimalComparer = cmp.Comparer(func(x, y decimal.Decimal) bool {
	return x.Equal(y)
})

// envelope mirrors response with raw data
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func readEnvelope(t *testing.T, res *http.Response) envelope {
	t.Helper()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(body, &env))
	return env
}

func decodeData(t *testing.T, env envelope, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func withPayload(r *http.Request, payload *models.TokenPayload) *http.Request {
	if payload == nil {
		return r
	}
	return r.WithContext(context.WithValue(r.Context(), authPayloadKey, payload))
}

func withURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decimalEq matches decimal argument by value
type decimalEq string

func (d decimalEq) Matches(x any) bool {
	got, ok := x.(decimal.Decimal)
	return ok && got.Equal(decimal.RequireFromString(string(d)))
}

func (d decimalEq) String() string {
	return "is decimal " + string(d)
}
