package models

import (
	"database/sql/driver"
	"encoding/json"
)

// ===========================================================================
// Tenant
// One customer organisation. Integration credentials live in a single JSON
// settings blob, one section per integration.
// ===========================================================================

type Tenant struct {
	BaseModel

	Name     string         `gorm:"size:255;not null" json:"name"`
	Slug     string         `gorm:"size:100;uniqueIndex;not null" json:"slug"`
	Settings TenantSettings `gorm:"type:jsonb;default:'{}'" json:"-"`
	IsActive bool           `gorm:"default:true" json:"is_active"`
}

func (Tenant) TableName() string {
	return "tenants"
}

// Settings section names
const (
	SectionSMTP       = "smtp"
	SectionOVH        = "ovh"
	SectionCloudflare = "cloudflare"
	SectionSlack      = "slack"
	SectionOpenAI     = "openai"
	SectionO365       = "o365"
	SectionGoCardless = "gocardless"
	SectionDocuSeal   = "docuseal"
	SectionSEPA       = "sepa"
	SectionTelegram   = "telegram"
)

// SettingsSections lists every known section in display order
var SettingsSections = []string{
	SectionSMTP, SectionOVH, SectionCloudflare, SectionSlack, SectionOpenAI,
	SectionO365, SectionGoCardless, SectionDocuSeal, SectionSEPA, SectionTelegram,
}

// TenantSettings is the per-tenant integration registry
type TenantSettings struct {
	SMTP       SMTPSettings       `json:"smtp"`
	OVH        OVHSettings        `json:"ovh"`
	Cloudflare CloudflareSettings `json:"cloudflare"`
	Slack      SlackSettings      `json:"slack"`
	OpenAI     OpenAISettings     `json:"openai"`
	O365       O365Settings       `json:"o365"`
	GoCardless GoCardlessSettings `json:"gocardless"`
	DocuSeal   DocuSealSettings   `json:"docuseal"`
	SEPA       SEPASettings       `json:"sepa"`
	Telegram   TelegramSettings   `json:"telegram"`
}

type SMTPSettings struct {
	Host      string `json:"host" validate:"required,hostname|ip"`
	Port      int    `json:"port" validate:"required,min=1,max=65535"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FromEmail string `json:"from_email" validate:"required,email"`
	FromName  string `json:"from_name"`
	// Security is one of starttls, tls, none
	Security string `json:"security" validate:"omitempty,oneof=starttls tls none"`
}

func (s SMTPSettings) Configured() bool { return s.Host != "" && s.FromEmail != "" }

type OVHSettings struct {
	Endpoint          string `json:"endpoint" validate:"omitempty,oneof=ovh-eu ovh-ca ovh-us"`
	ApplicationKey    string `json:"application_key" validate:"required"`
	ApplicationSecret string `json:"application_secret" validate:"required"`
	ConsumerKey       string `json:"consumer_key" validate:"required"`
}

func (s OVHSettings) Configured() bool { return s.ApplicationKey != "" && s.ConsumerKey != "" }

type CloudflareSettings struct {
	APIToken  string `json:"api_token" validate:"required"`
	AccountID string `json:"account_id"`
}

func (s CloudflareSettings) Configured() bool { return s.APIToken != "" }

type SlackSettings struct {
	WebhookURL     string `json:"webhook_url" validate:"required,url"`
	Channel        string `json:"channel"`
	NotifyPayments bool   `json:"notify_payments"`
}

func (s SlackSettings) Configured() bool { return s.WebhookURL != "" }

type OpenAISettings struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

// O365Settings holds the delegated OAuth2 app used for calendar access
type O365Settings struct {
	TenantID     string `json:"tenant_id" validate:"required"`
	ClientID     string `json:"client_id" validate:"required"`
	ClientSecret string `json:"client_secret" validate:"required"`
	RefreshToken string `json:"refresh_token"`
	TimeZone     string `json:"time_zone"`
}

func (s O365Settings) Configured() bool {
	return s.ClientID != "" && s.ClientSecret != "" && s.RefreshToken != ""
}

type GoCardlessSettings struct {
	SecretID  string `json:"secret_id" validate:"required"`
	SecretKey string `json:"secret_key" validate:"required"`
	Country   string `json:"country" validate:"omitempty,len=2"`
}

func (s GoCardlessSettings) Configured() bool { return s.SecretID != "" && s.SecretKey != "" }

type DocuSealSettings struct {
	APIKey     string `json:"api_key" validate:"required"`
	BaseURL    string `json:"base_url" validate:"omitempty,url"`
	TemplateID int    `json:"template_id" validate:"omitempty,min=1"`
}

func (s DocuSealSettings) Configured() bool { return s.APIKey != "" }

// SEPASettings are printed on invoices as payment instructions
type SEPASettings struct {
	CreditorName string `json:"creditor_name"`
	IBAN         string `json:"iban" validate:"required"`
	BIC          string `json:"bic"`
	CreditorID   string `json:"creditor_id"`
}

func (s SEPASettings) Configured() bool { return s.IBAN != "" }

type TelegramSettings struct {
	Enabled       bool    `json:"enabled"`
	BotToken      string  `json:"bot_token" validate:"required_if=Enabled true"`
	WebhookSecret string  `json:"webhook_secret"`
	AllowedUsers  []int64 `json:"allowed_users"`
}

// IsAllowed reports whether a Telegram user id may talk to the assistant.
// The allow-list only restricts access once it holds at least one id; the
// webhook secret is then the only gate.
func (s TelegramSettings) IsAllowed(userID int64) bool {
	if len(s.AllowedUsers) == 0 {
		return true
	}
	for _, id := range s.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer
func (s TenantSettings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner. Malformed JSON yields empty settings
// rather than failing the whole tenant load.
func (s *TenantSettings) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		*s = TenantSettings{}
		return nil
	default:
		*s = TenantSettings{}
		return nil
	}
	var parsed TenantSettings
	if err := json.Unmarshal(raw, &parsed); err != nil {
		*s = TenantSettings{}
		return nil
	}
	*s = parsed
	return nil
}
