package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"crm-gin/internal/cache"
	apperrors "crm-gin/internal/errors"
	"crm-gin/internal/integrations"
	"crm-gin/internal/integrations/cloudflare"
	"crm-gin/internal/integrations/docuseal"
	"crm-gin/internal/integrations/gocardless"
	"crm-gin/internal/integrations/graph"
	"crm-gin/internal/integrations/ovh"
	"crm-gin/internal/integrations/slack"
	"crm-gin/internal/llm"
	"crm-gin/internal/mail"
	"crm-gin/internal/models"
	"crm-gin/internal/repositories"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ===========================================================================
// Integration Service
// Connection tests of settings sections and the OVH domain import
// ===========================================================================

// TesterDeps are the shared clients the connection testers run through
type TesterDeps struct {
	Mailer            *mail.Mailer
	GoCardless        *gocardless.Client
	Graph             *graph.Client
	Slack             *slack.Client
	LLM               llm.Provider
	OVHBaseURL        string
	CloudflareBaseURL string
	DocuSealBaseURL   string
}

// NewTesterRegistry registers one tester per testable settings section
func NewTesterRegistry(deps TesterDeps) *integrations.Registry {
	r := integrations.NewRegistry()

	r.Register(integrations.TesterFunc{Name: models.SectionSMTP, Fn: func(ctx context.Context, s models.TenantSettings) error {
		return deps.Mailer.Test(ctx, s.SMTP)
	}})
	r.Register(integrations.TesterFunc{Name: models.SectionOVH, Fn: func(ctx context.Context, s models.TenantSettings) error {
		if !s.OVH.Configured() {
			return notConfigured("OVH")
		}
		_, err := ovh.New(s.OVH, deps.OVHBaseURL).Me(ctx)
		return err
	}})
	r.Register(integrations.TesterFunc{Name: models.SectionCloudflare, Fn: func(ctx context.Context, s models.TenantSettings) error {
		if !s.Cloudflare.Configured() {
			return notConfigured("Cloudflare")
		}
		_, err := cloudflare.New(deps.CloudflareBaseURL, s.Cloudflare.APIToken).VerifyToken(ctx)
		return err
	}})
	r.Register(integrations.TesterFunc{Name: models.SectionSlack, Fn: func(ctx context.Context, s models.TenantSettings) error {
		if !s.Slack.Configured() {
			return notConfigured("Slack")
		}
		return deps.Slack.Post(ctx, s.Slack.WebhookURL, s.Slack.Channel, "Connexion Slack vérifiée ✅")
	}})
	r.Register(integrations.TesterFunc{Name: models.SectionGoCardless, Fn: func(ctx context.Context, s models.TenantSettings) error {
		if !s.GoCardless.Configured() {
			return notConfigured("GoCardless")
		}
		return deps.GoCardless.Verify(ctx, gocardless.Credentials{SecretID: s.GoCardless.SecretID, SecretKey: s.GoCardless.SecretKey})
	}})
	r.Register(integrations.TesterFunc{Name: models.SectionO365, Fn: func(ctx context.Context, s models.TenantSettings) error {
		if !s.O365.Configured() {
			return notConfigured("Office 365")
		}
		creds := graphCredentials(s.O365)
		return deps.Graph.Verify(ctx, &creds)
	}})
	r.Register(integrations.TesterFunc{Name: models.SectionDocuSeal, Fn: func(ctx context.Context, s models.TenantSettings) error {
		if !s.DocuSeal.Configured() {
			return notConfigured("DocuSeal")
		}
		base := s.DocuSeal.BaseURL
		if base == "" {
			base = deps.DocuSealBaseURL
		}
		return docuseal.New(base, s.DocuSeal.APIKey).Ping(ctx)
	}})
	r.Register(integrations.TesterFunc{Name: models.SectionOpenAI, Fn: func(ctx context.Context, s models.TenantSettings) error {
		client, err := deps.LLM.ForTenant(s.OpenAI)
		if err != nil {
			return err
		}
		_, err = client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "ping"}},
			MaxTokens: 1,
		})
		return err
	}})
	return r
}

func notConfigured(service string) error {
	return apperrors.Newf(apperrors.ErrNotConfigured, "%s n'est pas configuré", service)
}

func graphCredentials(s models.O365Settings) graph.Credentials {
	return graph.Credentials{
		TenantID:     s.TenantID,
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
		RefreshToken: s.RefreshToken,
		TimeZone:     s.TimeZone,
	}
}

// DomainSyncResult reports an OVH import
type DomainSyncResult struct {
	Total   int      `json:"total"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Failed  []string `json:"failed,omitempty"`
}

type IntegrationService interface {
	// Test checks a section; data, when present, is tested without being saved
	Test(ctx context.Context, tenantID uuid.UUID, section string, data json.RawMessage) error
	Sections() []string
	OVHDomains(ctx context.Context, tenantID uuid.UUID) ([]ovh.ServiceInfos, error)
	// SyncOVHDomains imports every OVH domain and its expiry
	SyncOVHDomains(ctx context.Context, tenantID uuid.UUID) (*DomainSyncResult, error)
}

type integrationService struct {
	store      *repositories.Store
	settings   SettingsService
	registry   *integrations.Registry
	ovhBaseURL string
	clock      cache.Clock
	logger     *zap.Logger
}

func NewIntegrationService(
	store *repositories.Store,
	settings SettingsService,
	registry *integrations.Registry,
	ovhBaseURL string,
	clock cache.Clock,
	logger *zap.Logger,
) IntegrationService {
	return &integrationService{
		store:      store,
		settings:   settings,
		registry:   registry,
		ovhBaseURL: ovhBaseURL,
		clock:      clock,
		logger:     logger,
	}
}

func (s *integrationService) Sections() []string {
	return s.registry.Sections()
}

func (s *integrationService) Test(ctx context.Context, tenantID uuid.UUID, section string, data json.RawMessage) error {
	tester, err := s.registry.Get(section)
	if err != nil {
		return apperrors.Newf(apperrors.ErrInvalidInput, "Section inconnue: %s", section)
	}

	var settings *models.TenantSettings
	if len(data) > 0 && string(data) != "null" {
		settings, err = s.settings.Preview(ctx, tenantID, section, data)
	} else {
		settings, err = s.settings.Get(ctx, tenantID)
	}
	if err != nil {
		return err
	}

	if err := tester.Test(ctx, *settings); err != nil {
		s.logger.Info("integration test failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("section", section),
			zap.Error(err),
		)
		if apperrors.Is(err, apperrors.ErrNotConfigured) || apperrors.Is(err, apperrors.ErrExternal) {
			return err
		}
		return apperrors.External(section, err)
	}
	return nil
}

func (s *integrationService) ovhClient(ctx context.Context, tenantID uuid.UUID) (*ovh.Client, error) {
	settings, err := s.settings.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !settings.OVH.Configured() {
		return nil, notConfigured("OVH")
	}
	return ovh.New(settings.OVH, s.ovhBaseURL), nil
}

func (s *integrationService) OVHDomains(ctx context.Context, tenantID uuid.UUID) ([]ovh.ServiceInfos, error) {
	client, err := s.ovhClient(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	names, err := client.ListDomains(ctx)
	if err != nil {
		return nil, apperrors.External("OVH", err)
	}
	sort.Strings(names)

	out := make([]ovh.ServiceInfos, 0, len(names))
	for _, name := range names {
		info, err := client.DomainInfo(ctx, name)
		if err != nil {
			s.logger.Warn("ovh domain info failed", zap.String("domain", name), zap.Error(err))
			out = append(out, ovh.ServiceInfos{Domain: name})
			continue
		}
		if info.Domain == "" {
			info.Domain = name
		}
		out = append(out, *info)
	}
	return out, nil
}

func (s *integrationService) SyncOVHDomains(ctx context.Context, tenantID uuid.UUID) (*DomainSyncResult, error) {
	infos, err := s.OVHDomains(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	res := &DomainSyncResult{Total: len(infos)}
	for _, info := range infos {
		d := &models.Domain{
			Name:      info.Domain,
			Registrar: "ovh",
			ExpiresAt: info.ExpiresAt(),
			AutoRenew: info.Renew.Automatic,
		}
		d.TenantID = tenantID
		created, err := s.store.Domains.UpsertByName(ctx, d)
		if err != nil {
			res.Failed = append(res.Failed, info.Domain)
			continue
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}

	s.logger.Info("ovh domains synced",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("failed", len(res.Failed)),
	)
	if len(res.Failed) > 0 && res.Created+res.Updated == 0 {
		return res, fmt.Errorf("store domains: %d failed", len(res.Failed))
	}
	return res, nil
}
