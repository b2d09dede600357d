package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"crm-gin/internal/cache"
	apperrors "crm-gin/internal/errors"
	"crm-gin/internal/models"
	"crm-gin/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Settings Service
// Per-tenant integration registry, cached in memory with a short TTL
// ===========================================================================

// SecretMask replaces secret values shown on the dashboard. Sending it back
// unchanged keeps the stored secret.
const SecretMask = "********"

// secretFields lists the JSON keys hidden per section
var secretFields = map[string][]string{
	models.SectionSMTP:       {"password"},
	models.SectionOVH:        {"application_secret", "consumer_key"},
	models.SectionCloudflare: {"api_token"},
	models.SectionSlack:      {"webhook_url"},
	models.SectionOpenAI:     {"api_key"},
	models.SectionO365:       {"client_secret", "refresh_token"},
	models.SectionGoCardless: {"secret_key"},
	models.SectionDocuSeal:   {"api_key"},
	models.SectionTelegram:   {"bot_token", "webhook_secret"},
}

type SettingsService interface {
	// Get returns the tenant settings, served from cache within the TTL
	Get(ctx context.Context, tenantID uuid.UUID) (*models.TenantSettings, error)
	// Tenant returns the cached tenant row (name, slug, settings)
	Tenant(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error)
	// Masked returns every section with secrets replaced by SecretMask
	Masked(ctx context.Context, tenantID uuid.UUID) (map[string]map[string]any, error)
	// UpdateSection validates and stores one section, then drops the cache entry
	UpdateSection(ctx context.Context, tenantID uuid.UUID, section string, data json.RawMessage) error
	// Preview merges unsaved section data over the stored settings without
	// persisting, so a connection can be tested before saving.
	Preview(ctx context.Context, tenantID uuid.UUID, section string, data json.RawMessage) (*models.TenantSettings, error)
	// SaveO365RefreshToken stores a token rotated by Microsoft
	SaveO365RefreshToken(ctx context.Context, tenantID uuid.UUID, refreshToken string) error
	Invalidate(tenantID uuid.UUID)
}

type settingsService struct {
	tenants  repositories.TenantRepository
	cache    *cache.TTLCache[*models.Tenant]
	validate *validator.Validate
	logger   *zap.Logger
}

func NewSettingsService(tenants repositories.TenantRepository, tenantCache *cache.TTLCache[*models.Tenant], logger *zap.Logger) SettingsService {
	return &settingsService{
		tenants:  tenants,
		cache:    tenantCache,
		validate: validator.New(),
		logger:   logger,
	}
}

func (s *settingsService) Tenant(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error) {
	return s.cache.GetOrLoad(tenantID.String(), func() (*models.Tenant, error) {
		tenant, err := s.tenants.FindByID(ctx, tenantID)
		if err != nil {
			if repositories.IsNotFound(err) {
				return nil, apperrors.NotFound("Espace")
			}
			return nil, fmt.Errorf("load tenant: %w", err)
		}
		return tenant, nil
	})
}

func (s *settingsService) Get(ctx context.Context, tenantID uuid.UUID) (*models.TenantSettings, error) {
	tenant, err := s.Tenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	// copy so callers cannot mutate the cached value
	settings := tenant.Settings
	return &settings, nil
}

func (s *settingsService) Invalidate(tenantID uuid.UUID) {
	s.cache.Delete(tenantID.String())
}

func (s *settingsService) Masked(ctx context.Context, tenantID uuid.UUID) (map[string]map[string]any, error) {
	settings, err := s.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]any, len(models.SettingsSections))
	for _, section := range models.SettingsSections {
		fields, err := sectionFields(settings, section)
		if err != nil {
			return nil, err
		}
		for _, key := range secretFields[section] {
			if v, ok := fields[key].(string); ok && v != "" {
				fields[key] = SecretMask
			}
		}
		out[section] = fields
	}
	return out, nil
}

func (s *settingsService) UpdateSection(ctx context.Context, tenantID uuid.UUID, section string, data json.RawMessage) error {
	settings, err := s.Preview(ctx, tenantID, section, data)
	if err != nil {
		return err
	}
	if err := s.tenants.UpdateSettings(ctx, tenantID, *settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	s.Invalidate(tenantID)

	s.logger.Info("settings section updated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("section", section),
	)
	return nil
}

func (s *settingsService) Preview(ctx context.Context, tenantID uuid.UUID, section string, data json.RawMessage) (*models.TenantSettings, error) {
	// the stored row is the source of truth for masked secrets, not the cache
	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, apperrors.NotFound("Espace")
		}
		return nil, fmt.Errorf("load tenant: %w", err)
	}
	settings := tenant.Settings

	target, err := sectionPtr(&settings, section)
	if err != nil {
		return nil, err
	}
	current, err := sectionFields(&settings, section)
	if err != nil {
		return nil, err
	}

	var incoming map[string]any
	in := json.NewDecoder(bytes.NewReader(data))
	in.UseNumber()
	if err := in.Decode(&incoming); err != nil || incoming == nil {
		return nil, apperrors.Invalid("Données de configuration invalides")
	}
	for _, key := range secretFields[section] {
		if v, ok := incoming[key].(string); ok && v == SecretMask {
			incoming[key] = current[key]
		}
	}

	merged, err := json.Marshal(incoming)
	if err != nil {
		return nil, err
	}
	// reset the section so removed optional keys do not survive
	if err := resetSection(&settings, section); err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(merged))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return nil, apperrors.Invalid("Données de configuration invalides: " + err.Error())
	}

	if err := s.validate.Struct(target); err != nil {
		return nil, validationError(err)
	}
	return &settings, nil
}

func (s *settingsService) SaveO365RefreshToken(ctx context.Context, tenantID uuid.UUID, refreshToken string) error {
	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("load tenant: %w", err)
	}
	if tenant.Settings.O365.RefreshToken == refreshToken {
		return nil
	}
	tenant.Settings.O365.RefreshToken = refreshToken
	if err := s.tenants.UpdateSettings(ctx, tenantID, tenant.Settings); err != nil {
		return fmt.Errorf("save o365 token: %w", err)
	}
	s.Invalidate(tenantID)
	return nil
}

// ===========================================================================
// Section helpers
// ===========================================================================

func sectionPtr(s *models.TenantSettings, section string) (any, error) {
	switch section {
	case models.SectionSMTP:
		return &s.SMTP, nil
	case models.SectionOVH:
		return &s.OVH, nil
	case models.SectionCloudflare:
		return &s.Cloudflare, nil
	case models.SectionSlack:
		return &s.Slack, nil
	case models.SectionOpenAI:
		return &s.OpenAI, nil
	case models.SectionO365:
		return &s.O365, nil
	case models.SectionGoCardless:
		return &s.GoCardless, nil
	case models.SectionDocuSeal:
		return &s.DocuSeal, nil
	case models.SectionSEPA:
		return &s.SEPA, nil
	case models.SectionTelegram:
		return &s.Telegram, nil
	}
	return nil, apperrors.Newf(apperrors.ErrInvalidInput, "Section inconnue: %s", section)
}

func resetSection(s *models.TenantSettings, section string) error {
	switch section {
	case models.SectionSMTP:
		s.SMTP = models.SMTPSettings{}
	case models.SectionOVH:
		s.OVH = models.OVHSettings{}
	case models.SectionCloudflare:
		s.Cloudflare = models.CloudflareSettings{}
	case models.SectionSlack:
		s.Slack = models.SlackSettings{}
	case models.SectionOpenAI:
		s.OpenAI = models.OpenAISettings{}
	case models.SectionO365:
		s.O365 = models.O365Settings{}
	case models.SectionGoCardless:
		s.GoCardless = models.GoCardlessSettings{}
	case models.SectionDocuSeal:
		s.DocuSeal = models.DocuSealSettings{}
	case models.SectionSEPA:
		s.SEPA = models.SEPASettings{}
	case models.SectionTelegram:
		s.Telegram = models.TelegramSettings{}
	default:
		return apperrors.Newf(apperrors.ErrInvalidInput, "Section inconnue: %s", section)
	}
	return nil
}

func sectionFields(s *models.TenantSettings, section string) (map[string]any, error) {
	ptr, err := sectionPtr(s, section)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(ptr)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// validationError turns validator output into a French message naming the fields
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Invalid("Configuration invalide")
	}
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		names = append(names, strings.ToLower(fe.Field()))
	}
	return apperrors.Newf(apperrors.ErrInvalidInput, "Champs invalides: %s", strings.Join(names, ", "))
}
