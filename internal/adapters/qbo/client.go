package qbo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"aliada/ms_informes_qbo/internal/core/report"
	"aliada/ms_informes_qbo/internal/core/vendor"
)

// HTTPClient interface allows using both standard and instrumented HTTP clients.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenProvider supplies a valid access token and the connected realm for
// each call. *SessionManager satisfies it.
type TokenProvider interface {
	Token(ctx context.Context) (accessToken, realmID string, err error)
}

// Client issues authenticated calls against the QuickBooks REST API.
type Client struct {
	baseURL      string
	minorVersion string
	tokens       TokenProvider
	client       HTTPClient
	log          *slog.Logger
}

// NewClient creates a QuickBooks API client. The minor version pins API
// behavior on every request.
func NewClient(baseURL, minorVersion string, tokens TokenProvider, client HTTPClient, log *slog.Logger) *Client {
	return &Client{
		baseURL:      baseURL,
		minorVersion: minorVersion,
		tokens:       tokens,
		client:       client,
		log:          log,
	}
}

// get performs an authenticated GET under /v3/company/{realm}/ and returns
// the raw response body.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	token, realmID, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("minorversion", c.minorVersion)

	endpoint := fmt.Sprintf("%s/v3/company/%s/%s?%s", c.baseURL, realmID, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("quickbooks %s failed (%d): %s", path, resp.StatusCode, string(body))
	}

	return body, nil
}

// Query runs a SQL-like SELECT against the entity query endpoint.
func (c *Client) query(ctx context.Context, statement string) (*queryEnvelope, error) {
	params := url.Values{}
	params.Set("query", statement)

	body, err := c.get(ctx, "query", params)
	if err != nil {
		return nil, err
	}

	var envelope queryEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal query response: %w", err)
	}
	return &envelope, nil
}

// Customers lists active customers for the report form selector.
func (c *Client) Customers(ctx context.Context) ([]Customer, error) {
	envelope, err := c.query(ctx, "SELECT Id, DisplayName, Active FROM Customer WHERE Active = true MAXRESULTS 1000")
	if err != nil {
		return nil, err
	}

	customers := make([]Customer, 0, len(envelope.QueryResponse.Customer))
	for _, raw := range envelope.QueryResponse.Customer {
		name := raw.DisplayName
		if name == "" {
			name = "Customer " + raw.ID
		}
		customers = append(customers, Customer{ID: raw.ID, Name: name})
	}
	return customers, nil
}

// Accounts lists active accounts.
func (c *Client) Accounts(ctx context.Context) ([]Account, error) {
	envelope, err := c.query(ctx, "SELECT Id, Name, AccountType, AccountSubType, Active FROM Account WHERE Active = true MAXRESULTS 1000")
	if err != nil {
		return nil, err
	}

	accounts := make([]Account, 0, len(envelope.QueryResponse.Account))
	for _, raw := range envelope.QueryResponse.Account {
		name := raw.Name
		if name == "" {
			name = "Account " + raw.ID
		}
		accounts = append(accounts, Account{
			ID:      raw.ID,
			Name:    name,
			Type:    raw.AccountType,
			SubType: raw.AccountSubType,
		})
	}
	return accounts, nil
}

// Vendors lists active vendors with the metadata the regulatory mapper
// reads (display name, notes, tax identifier).
func (c *Client) Vendors(ctx context.Context) ([]vendor.Record, error) {
	envelope, err := c.query(ctx, "SELECT * FROM Vendor WHERE Active = true MAXRESULTS 1000")
	if err != nil {
		return nil, err
	}

	records := make([]vendor.Record, 0, len(envelope.QueryResponse.Vendor))
	for _, raw := range envelope.QueryResponse.Vendor {
		records = append(records, vendor.Record{
			ID:            raw.ID,
			DisplayName:   raw.DisplayName,
			Notes:         raw.Notes,
			TaxIdentifier: raw.TaxIdentifier,
		})
	}
	return records, nil
}

// Report fetches a named report and decodes it into a typed tree.
func (c *Client) Report(ctx context.Context, name string, params map[string]string) (*report.Tree, error) {
	values := url.Values{}
	for key, value := range params {
		if value != "" {
			values.Set(key, value)
		}
	}

	body, err := c.get(ctx, "reports/"+name, values)
	if err != nil {
		return nil, fmt.Errorf("quickbooks report %q: %w", name, err)
	}

	tree, err := report.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("quickbooks report %q: %w", name, err)
	}
	return tree, nil
}

// ProfitAndLossParams are the knobs of the ProfitAndLossDetail report.
type ProfitAndLossParams struct {
	StartDate         string
	EndDate           string
	AccountingMethod  string // Accrual or Cash, defaults to Accrual
	SummarizeColumnBy string
	CustomerID        string // empty or "all" means every customer
}

// ProfitAndLossDetail fetches the Profit & Loss Detail report.
func (c *Client) ProfitAndLossDetail(ctx context.Context, p ProfitAndLossParams) (*report.Tree, error) {
	method := p.AccountingMethod
	if method == "" {
		method = "Accrual"
	}
	summarize := p.SummarizeColumnBy
	if summarize == "" {
		summarize = "Total"
	}

	params := map[string]string{
		"start_date":          p.StartDate,
		"end_date":            p.EndDate,
		"accounting_method":   method,
		"summarize_column_by": summarize,
	}
	if p.CustomerID != "" && p.CustomerID != "all" {
		params["customer"] = p.CustomerID
	}

	return c.Report(ctx, "ProfitAndLossDetail", params)
}

// TaxDetail fetches the Tax Detail report.
func (c *Client) TaxDetail(ctx context.Context, startDate, endDate string) (*report.Tree, error) {
	return c.Report(ctx, "TaxDetail", map[string]string{
		"start_date": startDate,
		"end_date":   endDate,
	})
}
