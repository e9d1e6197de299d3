package paystack_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/servicehub-backend/internal/gateway"
	"github.com/ignatzorin/servicehub-backend/internal/gateway/paystack"
	"github.com/ignatzorin/servicehub-backend/internal/pkg/apperror"
)

type recorded struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

func newServer(t *testing.T, status int, response string, rec *recorded) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &rec.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_InitializeCharge(t *testing.T) {
	rec := &recorded{}
	srv := newServer(t, http.StatusOK, `{"status":true,"message":"ok","data":{"authorization_url":"https://checkout.paystack.com/x","access_code":"ac","reference":"ref-1"}}`, rec)
	client := paystack.NewClient(paystack.Config{SecretKey: "sk_test", BaseURL: srv.URL})

	charge, err := client.InitializeCharge(context.Background(), gateway.ChargeRequest{
		Email:       "buyer@example.com",
		AmountMinor: 700000,
		CallbackURL: "https://app/payment/1",
		Metadata:    map[string]any{"jobId": "1"},
		Reference:   "ref-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://checkout.paystack.com/x", charge.AuthorizationURL)
	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/transaction/initialize", rec.path)
	assert.Equal(t, "Bearer sk_test", rec.auth)
	assert.Equal(t, float64(700000), rec.body["amount"])
	assert.Equal(t, "NGN", rec.body["currency"])
	assert.Equal(t, "ref-1", rec.body["reference"])
}

func TestClient_VerifyChargeMapsStatus(t *testing.T) {
	cases := map[string]gateway.ChargeStatus{
		"success":   gateway.ChargeSuccess,
		"failed":    gateway.ChargeFailed,
		"abandoned": gateway.ChargeFailed,
		"ongoing":   gateway.ChargePending,
	}
	for providerStatus, expected := range cases {
		t.Run(providerStatus, func(t *testing.T) {
			rec := &recorded{}
			srv := newServer(t, http.StatusOK, `{"status":true,"message":"ok","data":{"status":"`+providerStatus+`","reference":"ref-1","amount":700000}}`, rec)
			client := paystack.NewClient(paystack.Config{SecretKey: "sk_test", BaseURL: srv.URL})

			v, err := client.VerifyCharge(context.Background(), "ref-1")
			require.NoError(t, err)
			assert.Equal(t, expected, v.Status)
			assert.Equal(t, "/transaction/verify/ref-1", rec.path)
		})
	}
}

func TestClient_TransferUsesBalanceSource(t *testing.T) {
	rec := &recorded{}
	srv := newServer(t, http.StatusOK, `{"status":true,"message":"queued","data":{"reference":"payout_1","transfer_code":"TRF_1","status":"pending"}}`, rec)
	client := paystack.NewClient(paystack.Config{SecretKey: "sk_test", BaseURL: srv.URL})

	tr, err := client.InitiateTransfer(context.Background(), gateway.TransferRequest{
		RecipientCode: "RCP_1",
		AmountMinor:   900000,
		Reason:        "payout",
		Reference:     "payout_1",
	})
	require.NoError(t, err)
	assert.Equal(t, "payout_1", tr.Reference)
	assert.Equal(t, "balance", rec.body["source"])
	assert.Equal(t, "RCP_1", rec.body["recipient"])
}

func TestClient_RecipientIsNuban(t *testing.T) {
	rec := &recorded{}
	srv := newServer(t, http.StatusCreated, `{"status":true,"message":"ok","data":{"recipient_code":"RCP_1"}}`, rec)
	client := paystack.NewClient(paystack.Config{SecretKey: "sk_test", BaseURL: srv.URL})

	r, err := client.CreatePayoutRecipient(context.Background(), gateway.RecipientRequest{Name: "Seller", AccountNumber: "0123456789", BankCode: "058"})
	require.NoError(t, err)
	assert.Equal(t, "RCP_1", r.Code)
	assert.Equal(t, "nuban", rec.body["type"])
	assert.Equal(t, "/transferrecipient", rec.path)
}

func TestClient_ProviderErrorPreservesPayload(t *testing.T) {
	rec := &recorded{}
	srv := newServer(t, http.StatusBadRequest, `{"status":false,"message":"Insufficient balance"}`, rec)
	client := paystack.NewClient(paystack.Config{SecretKey: "sk_test", BaseURL: srv.URL})

	_, err := client.Refund(context.Background(), gateway.RefundRequest{SourceReference: "ref-1", AmountMinor: 100})
	require.Error(t, err)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeGateway, appErr.Code)
	assert.Equal(t, http.StatusBadGateway, appErr.HTTPStatus)
	assert.Contains(t, appErr.Message, "Insufficient balance")
	assert.JSONEq(t, `{"status":false,"message":"Insufficient balance"}`, string(appErr.Details.(json.RawMessage)))
}

func TestClient_StatusFalseIsError(t *testing.T) {
	rec := &recorded{}
	srv := newServer(t, http.StatusOK, `{"status":false,"message":"Invalid key"}`, rec)
	client := paystack.NewClient(paystack.Config{SecretKey: "sk_test", BaseURL: srv.URL})

	_, err := client.VerifyCharge(context.Background(), "ref")
	assert.True(t, apperror.IsGateway(err))
}

func TestClient_MissingSecretIsConfigError(t *testing.T) {
	client := paystack.NewClient(paystack.Config{BaseURL: "http://127.0.0.1:1"})

	_, err := client.InitializeCharge(context.Background(), gateway.ChargeRequest{Reference: "r"})
	assert.True(t, apperror.IsConfig(err))
}
