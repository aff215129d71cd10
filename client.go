package paypresto

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

// DefaultAPIHost is the production origin of the Presto invoice API. It can
// be overridden with the PRESTO_API_HOST environment variable or by setting
// HTTPInvoiceClient.BaseURL directly.
const DefaultAPIHost = "https://www.paypresto.co/api"

// apiHostEnv names the environment variable overriding the API origin.
const apiHostEnv = "PRESTO_API_HOST"

// InvoiceRequest is the body of an invoice creation request.
type InvoiceRequest struct {
	// Satoshis is the funding amount to request.
	Satoshis uint64 `json:"satoshis"`

	// Script is the hex-encoded locking script funds must be paid to.
	Script string `json:"script"`

	// Description is an optional human-readable description.
	Description string `json:"description,omitempty"`
}

// InvoiceClient performs the two network operations of the invoice API.
type InvoiceClient interface {
	// CreateInvoice creates an invoice for the given amount and script.
	CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error)

	// GetInvoice fetches an existing invoice by identifier.
	GetInvoice(ctx context.Context, id string) (*Invoice, error)
}

// HTTPInvoiceClient is an InvoiceClient backed by the Presto HTTP API.
type HTTPInvoiceClient struct {
	// BaseURL is the API origin (e.g. "https://www.paypresto.co/api").
	BaseURL string

	// Client is the HTTP client to use for requests. If nil,
	// http.DefaultClient is used.
	Client *http.Client
}

// Verify that HTTPInvoiceClient implements InvoiceClient.
var _ InvoiceClient = (*HTTPInvoiceClient)(nil)

// NewHTTPInvoiceClient creates a client against the configured API origin,
// reading PRESTO_API_HOST and falling back to the production origin.
func NewHTTPInvoiceClient() *HTTPInvoiceClient {
	base := os.Getenv(apiHostEnv)
	if base == "" {
		base = DefaultAPIHost
	}
	return &HTTPInvoiceClient{BaseURL: base}
}

// httpClient returns the HTTP client to use, defaulting to
// http.DefaultClient.
func (c *HTTPInvoiceClient) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

// CreateInvoice posts a new invoice to the API.
func (c *HTTPInvoiceClient) CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error) {
	body := struct {
		Invoice InvoiceRequest `json:"invoice"`
	}{Invoice: req}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/invoices", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	return c.doInvoiceRequest(httpReq)
}

// GetInvoice fetches an invoice by id.
func (c *HTTPInvoiceClient) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"/invoices/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	return c.doInvoiceRequest(httpReq)
}

// doInvoiceRequest sends the request and decodes an invoice resource.
func (c *HTTPInvoiceClient) doInvoiceRequest(req *http.Request) (*Invoice, error) {
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvoiceRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, parseErrorResponse(resp)
	}

	var invoice Invoice
	if err := json.NewDecoder(resp.Body).Decode(&invoice); err != nil {
		return nil, fmt.Errorf("failed to decode invoice response: %w", err)
	}

	return &invoice, nil
}

// parseErrorResponse extracts error details from a non-2xx HTTP response.
func parseErrorResponse(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(resp.Body)

	var errBody map[string]interface{}
	if err := json.Unmarshal(bodyBytes, &errBody); err == nil {
		if reason, ok := errBody["error"].(string); ok && reason != "" {
			return fmt.Errorf("%w: status %d, reason: %s", ErrInvoiceRequest, resp.StatusCode, reason)
		}
	}

	// If we couldn't parse as JSON, include raw body (truncated)
	if len(bodyBytes) > 0 && len(bodyBytes) < 500 {
		return fmt.Errorf("%w: status %d, body: %s", ErrInvoiceRequest, resp.StatusCode, string(bodyBytes))
	}

	return fmt.Errorf("%w: status %d", ErrInvoiceRequest, resp.StatusCode)
}
