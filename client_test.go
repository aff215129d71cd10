package paypresto

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPInvoiceClientDefaults(t *testing.T) {
	t.Run("production origin", func(t *testing.T) {
		t.Setenv(apiHostEnv, "")
		client := NewHTTPInvoiceClient()
		assert.Equal(t, DefaultAPIHost, client.BaseURL)
	})

	t.Run("environment override", func(t *testing.T) {
		t.Setenv(apiHostEnv, "https://staging.example.com/api")
		client := NewHTTPInvoiceClient()
		assert.Equal(t, "https://staging.example.com/api", client.BaseURL)
	})
}

func TestCreateInvoiceRequest(t *testing.T) {
	var gotPath, gotMethod string
	var gotBody map[string]InvoiceRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Invoice{
			ID:       "inv-7",
			Satoshis: gotBody["invoice"].Satoshis,
			Script:   gotBody["invoice"].Script,
			Status:   "pending",
		})
	}))
	defer server.Close()

	client := &HTTPInvoiceClient{BaseURL: server.URL}
	inv, err := client.CreateInvoice(context.Background(), InvoiceRequest{
		Satoshis:    1000,
		Script:      "76a914000000000000000000000000000000000000000088ac",
		Description: "coffee",
	})
	require.NoError(t, err)

	assert.Equal(t, "POST", gotMethod)
	assert.Equal(t, "/invoices", gotPath)
	assert.Equal(t, uint64(1000), gotBody["invoice"].Satoshis)
	assert.Equal(t, "coffee", gotBody["invoice"].Description)
	assert.Equal(t, "inv-7", inv.ID)
	assert.Equal(t, uint64(1000), inv.Satoshis)
}

func TestGetInvoiceRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/invoices/inv-9", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Invoice{ID: "inv-9", Satoshis: 2000, Status: "pending"})
	}))
	defer server.Close()

	client := &HTTPInvoiceClient{BaseURL: server.URL}
	inv, err := client.GetInvoice(context.Background(), "inv-9")
	require.NoError(t, err)
	assert.Equal(t, "inv-9", inv.ID)
	assert.Equal(t, uint64(2000), inv.Satoshis)
}

func TestInvoiceRequestErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{
			name:    "json error body",
			status:  http.StatusUnprocessableEntity,
			body:    `{"error":"satoshis must be positive"}`,
			wantMsg: "satoshis must be positive",
		},
		{
			name:    "plain body",
			status:  http.StatusBadGateway,
			body:    "upstream gone",
			wantMsg: "upstream gone",
		},
		{
			name:    "empty body",
			status:  http.StatusInternalServerError,
			body:    "",
			wantMsg: "status 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := &HTTPInvoiceClient{BaseURL: server.URL}
			_, err := client.CreateInvoice(context.Background(), InvoiceRequest{Satoshis: 1000})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvoiceRequest)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestInvoiceRequestNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client := &HTTPInvoiceClient{BaseURL: server.URL}
	_, err := client.GetInvoice(context.Background(), "inv-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvoiceRequest)
}

func TestInvoiceRequestHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &HTTPInvoiceClient{BaseURL: server.URL}
	_, err := client.CreateInvoice(ctx, InvoiceRequest{Satoshis: 1000})
	require.Error(t, err)
}
