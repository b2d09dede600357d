package mail

import (
	"context"

	apperrors "crm-gin/internal/errors"
	"crm-gin/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SettingsSource resolves the tenant settings holding the SMTP section
type SettingsSource interface {
	Get(ctx context.Context, tenantID uuid.UUID) (*models.TenantSettings, error)
}

// Mailer sends composed messages through the tenant's SMTP server
type Mailer struct {
	settings SettingsSource
	factory  TransportFactory
	logger   *zap.Logger
}

func NewMailer(settings SettingsSource, factory TransportFactory, logger *zap.Logger) *Mailer {
	if factory == nil {
		factory = NewSMTPTransport
	}
	return &Mailer{settings: settings, factory: factory, logger: logger}
}

func (m *Mailer) Send(ctx context.Context, tenantID uuid.UUID, msg *Message) error {
	settings, err := m.settings.Get(ctx, tenantID)
	if err != nil {
		return err
	}
	if !settings.SMTP.Configured() {
		return apperrors.New(apperrors.ErrNotConfigured, "Le serveur SMTP n'est pas configuré")
	}

	if err := m.factory(settings.SMTP).Send(ctx, msg); err != nil {
		m.logger.Error("email delivery failed",
			zap.String("tenant_id", tenantID.String()),
			zap.Strings("to", msg.To),
			zap.Error(err),
		)
		return apperrors.External("SMTP", err)
	}

	m.logger.Info("email sent",
		zap.String("tenant_id", tenantID.String()),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// Test checks a set of SMTP settings, saved or not
func (m *Mailer) Test(ctx context.Context, cfg models.SMTPSettings) error {
	if !cfg.Configured() {
		return apperrors.New(apperrors.ErrNotConfigured, "Le serveur SMTP n'est pas configuré")
	}
	if err := m.factory(cfg).Test(ctx); err != nil {
		return apperrors.External("SMTP", err)
	}
	return nil
}
