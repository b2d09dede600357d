package services

import (
	"context"
	"fmt"

	"crm-gin/internal/integrations/slack"
	"crm-gin/internal/mail"
	"crm-gin/internal/models"
	"crm-gin/internal/realtime"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier fans business events out to the dashboard (Centrifugo) and to
// Slack. Delivery failures are logged and never fail the operation.
type Notifier interface {
	InvoiceChanged(ctx context.Context, tenantID uuid.UUID, eventType string, invoice *models.Invoice)
	TreasurySynced(ctx context.Context, tenantID uuid.UUID, event *realtime.TreasuryEvent)
}

type notifier struct {
	settings  SettingsService
	slack     *slack.Client
	publisher realtime.Publisher
	logger    *zap.Logger
}

func NewNotifier(settings SettingsService, slackClient *slack.Client, publisher realtime.Publisher, logger *zap.Logger) Notifier {
	if publisher == nil {
		publisher = realtime.NewNoopPublisher()
	}
	return &notifier{settings: settings, slack: slackClient, publisher: publisher, logger: logger}
}

func (n *notifier) InvoiceChanged(ctx context.Context, tenantID uuid.UUID, eventType string, inv *models.Invoice) {
	event := &realtime.InvoiceEvent{
		Type:      eventType,
		InvoiceID: inv.ID,
		Number:    inv.Number,
		Status:    string(inv.Status),
		TotalTTC:  fmt.Sprintf("%.2f", inv.TotalTTC),
		CreatedAt: inv.CreatedAt,
	}
	if err := n.publisher.PublishInvoiceEvent(ctx, tenantID, event); err != nil {
		n.logger.Warn("publish invoice event failed", zap.String("type", eventType), zap.Error(err))
	}

	if eventType != realtime.InvoicePaid || n.slack == nil {
		return
	}
	settings, err := n.settings.Get(ctx, tenantID)
	if err != nil || !settings.Slack.Configured() || !settings.Slack.NotifyPayments {
		return
	}
	client := "client"
	if inv.Client != nil {
		client = inv.Client.DisplayName()
	}
	text := fmt.Sprintf(":moneybag: Facture %s payée par %s (%s)", inv.Number, client, mail.FormatMoney(inv.TotalTTC))
	if err := n.slack.Post(ctx, settings.Slack.WebhookURL, settings.Slack.Channel, text); err != nil {
		n.logger.Warn("slack payment notification failed", zap.String("invoice", inv.Number), zap.Error(err))
	}
}

func (n *notifier) TreasurySynced(ctx context.Context, tenantID uuid.UUID, event *realtime.TreasuryEvent) {
	if err := n.publisher.PublishTreasuryEvent(ctx, tenantID, event); err != nil {
		n.logger.Warn("publish treasury event failed", zap.Error(err))
	}
}
