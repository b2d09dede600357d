// Package gocardless talks to the GoCardless Bank Account Data API
// (formerly Nordigen) used for open banking synchronisation.
package gocardless

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crm-gin/internal/cache"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const DefaultBaseURL = "https://bankaccountdata.gocardless.com/api/v2"

// Credentials are the tenant's secret id/key pair
type Credentials struct {
	SecretID  string
	SecretKey string
}

type tokenResponse struct {
	Access        string `json:"access"`
	AccessExpires int    `json:"access_expires"`
}

type apiError struct {
	Summary string `json:"summary"`
	Detail  string `json:"detail"`
}

func (e apiError) String() string {
	if e.Detail != "" {
		return e.Summary + ": " + e.Detail
	}
	return e.Summary
}

type Institution struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	BIC  string `json:"bic"`
	Logo string `json:"logo"`
}

type Requisition struct {
	ID       string   `json:"id"`
	Status   string   `json:"status"`
	Link     string   `json:"link"`
	Accounts []string `json:"accounts"`
}

// Linked reports whether the end user completed the bank consent
func (r Requisition) Linked() bool { return r.Status == "LN" }

type requisitionRequest struct {
	Redirect      string `json:"redirect"`
	InstitutionID string `json:"institution_id"`
	Reference     string `json:"reference"`
	UserLanguage  string `json:"user_language"`
}

type AccountDetails struct {
	IBAN     string `json:"iban"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
	Owner    string `json:"ownerName"`
}

type Amount struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func (a Amount) Decimal() decimal.Decimal {
	d, err := decimal.NewFromString(a.Amount)
	if err != nil {
		return decimal.Zero
	}
	return d
}

type Balance struct {
	BalanceAmount Amount `json:"balanceAmount"`
	BalanceType   string `json:"balanceType"`
}

type Transaction struct {
	TransactionID         string `json:"transactionId"`
	InternalTransactionID string `json:"internalTransactionId"`
	BookingDate           string `json:"bookingDate"`
	TransactionAmount     Amount `json:"transactionAmount"`
	RemittanceInformation string `json:"remittanceInformationUnstructured"`
	CreditorName          string `json:"creditorName"`
	DebtorName            string `json:"debtorName"`
}

// ExternalID picks the most stable identifier the bank provides
func (t Transaction) ExternalID() string {
	if t.TransactionID != "" {
		return t.TransactionID
	}
	return t.InternalTransactionID
}

// Counterparty is the debtor of a credit or the creditor of a debit
func (t Transaction) Counterparty() string {
	if t.TransactionAmount.Decimal().IsPositive() {
		return t.DebtorName
	}
	return t.CreditorName
}

func (t Transaction) BookedAt() time.Time {
	d, err := time.Parse("2006-01-02", t.BookingDate)
	if err != nil {
		return time.Time{}
	}
	return d
}

type Client struct {
	http   *resty.Client
	tokens *cache.TTLCache[string]
}

// New builds a client sharing an access token cache across tenants. Tokens
// are keyed by secret id and kept for an hour, well under their validity.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetHeader("Accept", "application/json").
			SetTimeout(30 * time.Second),
		tokens: cache.MustNew[string](128, time.Hour, cache.SystemClock),
	}
}

func (c *Client) token(ctx context.Context, creds Credentials) (string, error) {
	return c.tokens.GetOrLoad(creds.SecretID, func() (string, error) {
		var out tokenResponse
		var apiErr apiError
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(map[string]string{"secret_id": creds.SecretID, "secret_key": creds.SecretKey}).
			SetResult(&out).
			SetError(&apiErr).
			Post("/token/new/")
		if err != nil {
			return "", fmt.Errorf("gocardless token: %w", err)
		}
		if resp.IsError() {
			return "", fmt.Errorf("gocardless token: %s", apiErr)
		}
		return out.Access, nil
	})
}

func (c *Client) authed(ctx context.Context, creds Credentials) (*resty.Request, *apiError, error) {
	tok, err := c.token(ctx, creds)
	if err != nil {
		return nil, nil, err
	}
	apiErr := &apiError{}
	return c.http.R().SetContext(ctx).SetAuthToken(tok).SetError(apiErr), apiErr, nil
}

func check(op string, resp *resty.Response, err error, apiErr *apiError) error {
	if err != nil {
		return fmt.Errorf("gocardless %s: %w", op, err)
	}
	if resp.IsError() {
		return fmt.Errorf("gocardless %s: status %d: %s", op, resp.StatusCode(), apiErr)
	}
	return nil
}

// Verify obtains a token, which is enough to validate the credentials
func (c *Client) Verify(ctx context.Context, creds Credentials) error {
	_, err := c.token(ctx, creds)
	return err
}

func (c *Client) Institutions(ctx context.Context, creds Credentials, country string) ([]Institution, error) {
	req, apiErr, err := c.authed(ctx, creds)
	if err != nil {
		return nil, err
	}
	var out []Institution
	resp, err := req.SetQueryParam("country", strings.ToLower(country)).SetResult(&out).Get("/institutions/")
	if err := check("institutions", resp, err, apiErr); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateRequisition(ctx context.Context, creds Credentials, institutionID, redirect, reference string) (*Requisition, error) {
	req, apiErr, err := c.authed(ctx, creds)
	if err != nil {
		return nil, err
	}
	var out Requisition
	resp, err := req.
		SetBody(requisitionRequest{Redirect: redirect, InstitutionID: institutionID, Reference: reference, UserLanguage: "FR"}).
		SetResult(&out).
		Post("/requisitions/")
	if err := check("create requisition", resp, err, apiErr); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetRequisition(ctx context.Context, creds Credentials, id string) (*Requisition, error) {
	req, apiErr, err := c.authed(ctx, creds)
	if err != nil {
		return nil, err
	}
	var out Requisition
	resp, err := req.SetResult(&out).Get("/requisitions/" + id + "/")
	if err := check("get requisition", resp, err, apiErr); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AccountDetails(ctx context.Context, creds Credentials, accountID string) (*AccountDetails, error) {
	req, apiErr, err := c.authed(ctx, creds)
	if err != nil {
		return nil, err
	}
	var out struct {
		Account AccountDetails `json:"account"`
	}
	resp, err := req.SetResult(&out).Get("/accounts/" + accountID + "/details/")
	if err := check("account details", resp, err, apiErr); err != nil {
		return nil, err
	}
	return &out.Account, nil
}

// Balance returns the booked closing balance, or the first one reported
func (c *Client) Balance(ctx context.Context, creds Credentials, accountID string) (*Balance, error) {
	req, apiErr, err := c.authed(ctx, creds)
	if err != nil {
		return nil, err
	}
	var out struct {
		Balances []Balance `json:"balances"`
	}
	resp, err := req.SetResult(&out).Get("/accounts/" + accountID + "/balances/")
	if err := check("balances", resp, err, apiErr); err != nil {
		return nil, err
	}
	if len(out.Balances) == 0 {
		return nil, fmt.Errorf("gocardless balances: none reported")
	}
	for _, b := range out.Balances {
		if b.BalanceType == "closingBooked" || b.BalanceType == "interimBooked" {
			return &b, nil
		}
	}
	return &out.Balances[0], nil
}

// BookedTransactions lists booked transactions since from (inclusive)
func (c *Client) BookedTransactions(ctx context.Context, creds Credentials, accountID string, from time.Time) ([]Transaction, error) {
	req, apiErr, err := c.authed(ctx, creds)
	if err != nil {
		return nil, err
	}
	var out struct {
		Transactions struct {
			Booked []Transaction `json:"booked"`
		} `json:"transactions"`
	}
	if !from.IsZero() {
		req.SetQueryParam("date_from", from.Format("2006-01-02"))
	}
	resp, err := req.SetResult(&out).Get("/accounts/" + accountID + "/transactions/")
	if err := check("transactions", resp, err, apiErr); err != nil {
		return nil, err
	}
	return out.Transactions.Booked, nil
}
