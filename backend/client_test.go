package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunef/agent-go/backend"
)

func newTestClient(handler http.Handler) (*backend.Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return backend.NewClient(srv.URL), srv
}

func TestResolveTag(t *testing.T) {
	var gotPath string
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]string{
			"wallet_address": "0x1234abcd",
			"display_name":   "Alice",
		})
	}))
	defer srv.Close()

	res, err := client.ResolveTag(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/users/tag/alice", gotPath)
	assert.Equal(t, "@alice", res.Tag)
	assert.Equal(t, "0x1234abcd", res.Address)
	assert.Equal(t, "Alice", res.DisplayName)
}

func TestResolveTagDisplayNameFallback(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"wallet_address": "0x1234abcd"})
	}))
	defer srv.Close()

	res, err := client.ResolveTag(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", res.DisplayName)
}

func TestResolveTagNotFound(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := client.ResolveTag(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, "Tag @ghost not found. Please check the spelling.", err.Error())
	assert.Equal(t, http.StatusNotFound, backend.StatusCode(err))
}

func TestFiatToGAS(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GBP", r.URL.Query().Get("fiat"))
		assert.Equal(t, "20", r.URL.Query().Get("amount"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"gas_amount":    "7.42",
			"fx_rate":       0.371,
			"gas_price_usd": 3.41,
		})
	}))
	defer srv.Close()

	conv, err := client.FiatToGAS(context.Background(), "GBP", 20)
	require.NoError(t, err)
	assert.Equal(t, 20.0, conv.FiatAmount)
	assert.Equal(t, "GBP", conv.FiatCurrency)
	assert.Equal(t, "7.42", conv.GasAmount)
	assert.Equal(t, 0.371, conv.FXRate)
}

func TestBalanceSendsUserHeader(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "user-1", r.Header.Get("X-User-Id"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"gas_balance":     "42.5",
			"fiat_equivalent": 120.0,
			"fiat_currency":   "GBP",
			"address":         "0xfeed",
		})
	}))
	defer srv.Close()

	bal, err := client.Balance(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "42.5", bal.GasBalance)
	assert.Equal(t, 120.0, bal.FiatEquivalent)
}

func TestBalanceWalletMissing(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := client.Balance(context.Background(), "user-1")
	require.Error(t, err)
	assert.Equal(t, "Wallet not found. Please create a wallet first.", err.Error())
}

func TestCreatePreview(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req backend.PreviewRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "@alice", req.ToTag)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"preview_id":   "prev-1",
			"from_address": "0xme",
			"to_address":   req.ToAddress,
			"amount_gas":   req.AmountGAS,
			"total_gas":    "7.421",
		})
	}))
	defer srv.Close()

	preview, err := client.CreatePreview(context.Background(), "user-1", &backend.PreviewRequest{
		ToAddress:    "0x1234abcd",
		ToTag:        "@alice",
		AmountGAS:    "7.42",
		FiatAmount:   20,
		FiatCurrency: "GBP",
	})
	require.NoError(t, err)

	assert.Equal(t, "prev-1", preview.PreviewID)
	assert.Equal(t, "@alice", preview.ToTag)
	assert.Equal(t, 20.0, preview.FiatAmount)
	assert.Equal(t, "GBP", preview.FiatCurrency)
	assert.Equal(t, "0.001", preview.EstimatedFee)
	assert.Equal(t, backend.PreviewAwaitingConfirmation, preview.Status)
}

func TestCreatePreviewValidationMessagePassesThrough(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Amount below minimum"})
	}))
	defer srv.Close()

	_, err := client.CreatePreview(context.Background(), "user-1", &backend.PreviewRequest{})
	require.Error(t, err)
	assert.Equal(t, "Amount below minimum", err.Error())
}

func TestCreatePreviewInsufficientBalance(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := client.CreatePreview(context.Background(), "user-1", &backend.PreviewRequest{})
	require.Error(t, err)
	assert.Equal(t, "Insufficient balance for this payment", err.Error())
}

func TestExecutePayment(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/payments/prev-1/execute", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"tx_hash":      "0xabc",
			"explorer_url": "https://xexplorer.neo.org/tx/0xabc",
			"amount_gas":   "7.42",
			"to_tag":       "@alice",
		})
	}))
	defer srv.Close()

	tx, err := client.ExecutePayment(context.Background(), "user-1", "prev-1")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", tx.TxHash)
	assert.Equal(t, "confirmed", tx.Status)
}

func TestExecutePaymentStatusMessages(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusNotFound, "Payment preview expired or not found. Please start a new payment."},
		{http.StatusForbidden, "Insufficient balance or payment not confirmed"},
		{http.StatusConflict, "Payment already executed"},
		{http.StatusInternalServerError, "Payment failed: 500"},
	}

	for _, tt := range tests {
		client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		_, err := client.ExecutePayment(context.Background(), "user-1", "prev-1")
		require.Error(t, err, "status %d", tt.status)
		assert.Equal(t, tt.want, err.Error(), "status %d", tt.status)
		srv.Close()
	}
}

func TestExecutePaymentTimeout(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.ExecutePayment(ctx, "user-1", "prev-1")
	require.Error(t, err)
	assert.True(t, backend.IsTimeout(err))
	assert.Equal(t, "The payment was submitted but confirmation timed out. Please check your transaction history.", err.Error())
}

func TestGenerateVideoStatusMessages(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusPaymentRequired, "Video generation requires payment. Please ensure you have sufficient balance."},
		{http.StatusForbidden, "Insufficient GAS balance for video generation"},
		{http.StatusTooManyRequests, "Rate limited. Please try again in a few minutes."},
	}

	for _, tt := range tests {
		client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		_, err := client.GenerateVideo(context.Background(), "user-1", &backend.VideoRequest{Prompt: "a cat"})
		require.Error(t, err, "status %d", tt.status)
		assert.Equal(t, tt.want, err.Error(), "status %d", tt.status)
		srv.Close()
	}
}

func TestGenerateVideo(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req backend.VideoRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a cat surfing", req.Prompt)
		assert.Equal(t, 10, req.DurationSeconds)

		_ = json.NewEncoder(w).Encode(map[string]string{
			"video_url":     "https://cdn.lunef.io/v/1.mp4",
			"thumbnail_url": "https://cdn.lunef.io/v/1.jpg",
			"cost_gas":      "0.35",
			"purchase_id":   "pur-1",
		})
	}))
	defer srv.Close()

	video, err := client.GenerateVideo(context.Background(), "user-1", &backend.VideoRequest{
		Prompt:          "a cat surfing",
		DurationSeconds: 10,
		Style:           "cinematic",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.lunef.io/v/1.mp4", video.VideoURL)
	assert.Equal(t, "pur-1", video.PurchaseID)
}
