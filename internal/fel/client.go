package fel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client implements Certifier against a certifier's REST API.
type Client struct {
	baseURL   string
	apiKey    string
	issuerNIT string
	http      *http.Client
}

type certifyRequest struct {
	IssuerNIT     string `json:"issuer_nit"`
	RecipientNIT  string `json:"recipient_nit"`
	RecipientName string `json:"recipient_name"`
	Reference     string `json:"reference"`
	Description   string `json:"description"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
}

type certifyResponse struct {
	Authorization  string `json:"authorization"`
	Series         string `json:"series"`
	DocumentNumber string `json:"document_number"`
	ErrorCode      int    `json:"error_code"`
	Message        string `json:"message"`
}

// NewClient creates a certifier client.
func NewClient(baseURL, apiKey, issuerNIT string) *Client {
	return &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		issuerNIT: issuerNIT,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

var _ Certifier = (*Client)(nil)

// Certify submits the invoice for certification.
func (c *Client) Certify(ctx context.Context, invoice Invoice) (*Authorization, error) {
	nit := invoice.NIT
	if nit == "" {
		nit = "CF" // consumidor final
	}
	payload := certifyRequest{
		IssuerNIT:     c.issuerNIT,
		RecipientNIT:  nit,
		RecipientName: invoice.RecipientName,
		Reference:     invoice.RegistrationCode,
		Description:   invoice.Description,
		Amount:        invoice.Amount.String(),
		Currency:      invoice.Currency,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal invoice payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/invoices", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCertifierUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status %d", ErrCertifierUnavailable, resp.StatusCode)
	}

	var result certifyResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || result.ErrorCode != 0 {
		return nil, fmt.Errorf("%w: status %d, code %d: %s",
			ErrCertification, resp.StatusCode, result.ErrorCode, result.Message)
	}

	return &Authorization{
		Number:         result.Authorization,
		Series:         result.Series,
		DocumentNumber: result.DocumentNumber,
	}, nil
}
