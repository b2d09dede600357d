package realtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Centrifugo Client
// Publish back-office events (invoices, treasury) to the tenant channel
// ===========================================================================

// Publisher interface for realtime events
type Publisher interface {
	PublishInvoiceEvent(ctx context.Context, tenantID uuid.UUID, event *InvoiceEvent) error
	PublishTreasuryEvent(ctx context.Context, tenantID uuid.UUID, event *TreasuryEvent) error
}

// Event types
const (
	InvoiceCreated  = "invoice_created"
	InvoiceSent     = "invoice_sent"
	InvoicePaid     = "invoice_paid"
	QuoteConverted  = "quote_converted"
	TreasurySynced  = "treasury_synced"
	PaymentReceived = "payment_received"
)

type InvoiceEvent struct {
	Type      string    `json:"type"`
	InvoiceID uuid.UUID `json:"invoice_id"`
	Number    string    `json:"number"`
	Status    string    `json:"status"`
	TotalTTC  string    `json:"total_ttc"`
	CreatedAt time.Time `json:"created_at"`
}

type TreasuryEvent struct {
	Type            string    `json:"type"`
	BankAccountID   uuid.UUID `json:"bank_account_id"`
	NewTransactions int       `json:"new_transactions"`
	Balance         string    `json:"balance,omitempty"`
}

// Channel returns the Centrifugo channel of a tenant
func Channel(tenantID uuid.UUID) string {
	return "crm:tenant_" + tenantID.String()
}

// CentrifugoClient implements Publisher
type CentrifugoClient struct {
	http *resty.Client
	log  *zap.Logger
}

func NewCentrifugoClient(url, apiKey string, log *zap.Logger) *CentrifugoClient {
	return &CentrifugoClient{
		http: resty.New().
			SetBaseURL(strings.TrimRight(url, "/")).
			SetHeader("Authorization", "apikey "+apiKey).
			SetTimeout(5 * time.Second),
		log: log,
	}
}

type publishRequest struct {
	Method string        `json:"method"`
	Params publishParams `json:"params"`
}

type publishParams struct {
	Channel string `json:"channel"`
	Data    any    `json:"data"`
}

func (c *CentrifugoClient) publish(ctx context.Context, channel string, data any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(publishRequest{Method: "publish", Params: publishParams{Channel: channel, Data: data}}).
		Post("/api")
	if err != nil {
		c.log.Warn("centrifugo publish failed", zap.Error(err))
		return fmt.Errorf("centrifugo publish: %w", err)
	}
	if resp.IsError() {
		c.log.Warn("centrifugo publish bad status",
			zap.Int("status", resp.StatusCode()),
			zap.String("channel", channel),
		)
		return fmt.Errorf("centrifugo: bad status %d", resp.StatusCode())
	}

	c.log.Debug("published to centrifugo", zap.String("channel", channel))
	return nil
}

func (c *CentrifugoClient) PublishInvoiceEvent(ctx context.Context, tenantID uuid.UUID, event *InvoiceEvent) error {
	return c.publish(ctx, Channel(tenantID), event)
}

func (c *CentrifugoClient) PublishTreasuryEvent(ctx context.Context, tenantID uuid.UUID, event *TreasuryEvent) error {
	return c.publish(ctx, Channel(tenantID), event)
}

// ===========================================================================
// Noop Publisher (for when Centrifugo is not configured)
// ===========================================================================

type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

func (n *NoopPublisher) PublishInvoiceEvent(context.Context, uuid.UUID, *InvoiceEvent) error {
	return nil
}

func (n *NoopPublisher) PublishTreasuryEvent(context.Context, uuid.UUID, *TreasuryEvent) error {
	return nil
}
