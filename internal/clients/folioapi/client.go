// Package folioapi provides the client for the portfolio tracker's REST
// backend. It covers the three collaborator surfaces the QuickStart engine
// consumes: the account directory, the security/crypto lookup, and the
// per-entity batch-create operations.
package folioapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/foliodraft/foliodraft/internal/draft"
)

const defaultTimeout = 30 * time.Second

// Client is the portfolio backend API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a new backend client. baseURL has no trailing slash.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		log: log.With().Str("component", "folioapi").Logger(),
	}
}

// Instrument is one security/crypto lookup hit.
type Instrument struct {
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	AssetType string          `json:"assetType"` // "security" or "crypto"
}

// Quote is the current price of one instrument.
type Quote struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

// Account is one existing account from the directory.
type Account struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Currency string `json:"currency"`
}

// BatchCreateResult is the success payload of one batch-create call. IDs are
// the server-assigned identifiers, in the order the items were sent.
type BatchCreateResult struct {
	IDs []string `json:"ids"`
}

// SearchInstruments looks up instruments by partial symbol or name.
func (c *Client) SearchInstruments(ctx context.Context, query string) ([]Instrument, error) {
	endpoint := fmt.Sprintf("%s/api/v1/instruments/search?q=%s", c.baseURL, url.QueryEscape(query))

	var results []Instrument
	if err := c.getJSON(ctx, endpoint, &results); err != nil {
		return nil, fmt.Errorf("instrument search failed: %w", err)
	}
	return results, nil
}

// GetQuote fetches the current price for one symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	endpoint := fmt.Sprintf("%s/api/v1/quotes/%s", c.baseURL, url.PathEscape(symbol))

	var quote Quote
	if err := c.getJSON(ctx, endpoint, &quote); err != nil {
		return nil, fmt.Errorf("quote lookup failed for %s: %w", symbol, err)
	}
	return &quote, nil
}

// ListAccounts returns the existing accounts from the directory.
func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	endpoint := c.baseURL + "/api/v1/accounts"

	var accounts []Account
	if err := c.getJSON(ctx, endpoint, &accounts); err != nil {
		return nil, fmt.Errorf("account list failed: %w", err)
	}
	return accounts, nil
}

// CreateAccount creates a single account (the directory has no batch form;
// batch account creation goes through BatchCreate like the other types).
func (c *Client) CreateAccount(ctx context.Context, payload interface{}) (*Account, error) {
	endpoint := c.baseURL + "/api/v1/accounts"

	var account Account
	if err := c.postJSON(ctx, endpoint, payload, &account); err != nil {
		return nil, fmt.Errorf("account create failed: %w", err)
	}
	return &account, nil
}

// resourcePaths maps entity types to their batch-create endpoints.
var resourcePaths = map[draft.EntityType]string{
	draft.EntityAccount:    "accounts",
	draft.EntitySecurity:   "securities",
	draft.EntityCash:       "cash",
	draft.EntityCrypto:     "crypto",
	draft.EntityMetal:      "metals",
	draft.EntityOtherAsset: "other-assets",
	draft.EntityLiability:  "liabilities",
}

// batchCreateRequest is the body of a batch-create call. AccountID is empty
// for types that are not scoped to an account.
type batchCreateRequest struct {
	AccountID string        `json:"accountId,omitempty"`
	Items     []interface{} `json:"items"`
}

// BatchCreate submits one sub-group of payloads. The call is all-or-nothing:
// an error means no item of the sub-group was accepted.
func (c *Client) BatchCreate(ctx context.Context, t draft.EntityType, accountID string, payloads []interface{}) (*BatchCreateResult, error) {
	resource, ok := resourcePaths[t]
	if !ok {
		return nil, fmt.Errorf("no batch endpoint for entity type %q", t)
	}
	endpoint := fmt.Sprintf("%s/api/v1/%s/batch", c.baseURL, resource)

	var result BatchCreateResult
	body := batchCreateRequest{AccountID: accountID, Items: payloads}
	if err := c.postJSON(ctx, endpoint, body, &result); err != nil {
		return nil, fmt.Errorf("batch create %s failed: %w", resource, err)
	}
	if len(result.IDs) != len(payloads) {
		return nil, fmt.Errorf("batch create %s returned %d ids for %d items", resource, len(result.IDs), len(payloads))
	}
	return &result, nil
}

// getJSON performs a GET request and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

// postJSON performs a POST request with a JSON body and decodes the response.
func (c *Client) postJSON(ctx context.Context, endpoint string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	c.log.Debug().Str("method", req.Method).Str("url", req.URL.String()).Msg("Backend request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("backend error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
