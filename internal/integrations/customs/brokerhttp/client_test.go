package brokerhttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BearBump/CustomsBox/internal/integrations/customs"
	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/stretchr/testify/require"
)

func query() customs.ClearanceQuery {
	return customs.ClearanceQuery{
		TrackingNumber:     "CUS-20260301-ABCDEF01",
		DestinationCountry: "US",
		DeclaredValue:      models.MustMoney("500", models.CurrencyUSD),
	}
}

func TestClient_GetClearanceStatus_Cleared(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/clearances/CUS-20260301-ABCDEF01", r.URL.Path)
		require.Equal(t, "US", r.URL.Query().Get("country"))
		require.Equal(t, "k", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "tracking_number": "CUS-20260301-ABCDEF01",
  "status": "RELEASED",
  "status_text": "Released by CBP",
  "fees": {"amount": "42.50", "currency": "USD"},
  "updated_at": "2026-03-04T10:00:00Z"
}`))
	}))
	defer srv.Close()

	res, err := New(srv.URL, "k").GetClearanceStatus(context.Background(), query())
	require.NoError(t, err)
	require.Equal(t, models.CustomsCleared, res.Status)
	require.Equal(t, "Released by CBP", res.StatusRaw)
	require.NotNil(t, res.Fees)
	require.True(t, res.Fees.Equal(models.MustMoney("42.50", models.CurrencyUSD)))
	require.WithinDuration(t, time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC), res.UpdatedAt, time.Second)
}

func TestClient_GetClearanceStatus_Hold(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ON_HOLD","reason":"x-ray anomaly"}`))
	}))
	defer srv.Close()

	res, err := New(srv.URL, "").GetClearanceStatus(context.Background(), query())
	require.NoError(t, err)
	require.Equal(t, models.CustomsDetained, res.Status)
	require.Equal(t, "x-ray anomaly", *res.Reason)
	require.Nil(t, res.Fees)
	require.False(t, res.UpdatedAt.IsZero())
}

func TestClient_GetClearanceStatus_429(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "k").GetClearanceStatus(context.Background(), query())
	require.ErrorIs(t, err, customs.ErrRateLimited)
}

func TestClient_GetClearanceStatus_BadFees(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"CLEARED","fees":{"amount":"abc","currency":"USD"}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "k").GetClearanceStatus(context.Background(), query())
	require.Error(t, err)
}

func TestClient_GetClearanceStatus_5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "k").GetClearanceStatus(context.Background(), query())
	require.EqualError(t, err, "customs broker http 502")
}
