package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Microsoft  MicrosoftConfig  `mapstructure:"microsoft"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Assistant  AssistantConfig  `mapstructure:"assistant"`
	Centrifugo CentrifugoConfig `mapstructure:"centrifugo"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type AppConfig struct {
	Name        string   `mapstructure:"name"`
	Env         string   `mapstructure:"env"`
	Port        int      `mapstructure:"port"`
	PublicURL   string   `mapstructure:"public_url"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// DatabaseConfig selects the driver and how to reach it.
// URL wins over the discrete fields when both are set.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	URL             string        `mapstructure:"url"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DSN returns the connection string for the configured driver
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	if c.Driver == DriverSQLite {
		return c.Name
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=Europe/Paris",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type JWTConfig struct {
	Secret                string        `mapstructure:"secret"`
	AccessDuration        time.Duration `mapstructure:"access_duration"`
	RefreshDuration       time.Duration `mapstructure:"refresh_duration"`
	ImpersonationDuration time.Duration `mapstructure:"impersonation_duration"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OpenAIConfig is the platform fallback when a tenant has no key of its own.
type OpenAIConfig struct {
	APIKey             string `mapstructure:"api_key"`
	BaseURL            string `mapstructure:"base_url"`
	Model              string `mapstructure:"model"`
	TranscriptionModel string `mapstructure:"transcription_model"`
	VisionModel        string `mapstructure:"vision_model"`
}

type TelegramConfig struct {
	APIBaseURL     string        `mapstructure:"api_base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RatePerMinute  int           `mapstructure:"rate_per_minute"`
	TypingInterval time.Duration `mapstructure:"typing_interval"`
}

type MicrosoftConfig struct {
	LoginBaseURL string `mapstructure:"login_base_url"`
	GraphBaseURL string `mapstructure:"graph_base_url"`
}

type CacheConfig struct {
	SettingsTTL          time.Duration `mapstructure:"settings_ttl"`
	SettingsCapacity     int           `mapstructure:"settings_capacity"`
	ConversationTTL      time.Duration `mapstructure:"conversation_ttl"`
	ConversationCapacity int           `mapstructure:"conversation_capacity"`
}

type AssistantConfig struct {
	MaxHistory          int           `mapstructure:"max_history"`
	Timezone            string        `mapstructure:"timezone"`
	DefaultEventMinutes int           `mapstructure:"default_event_minutes"`
	ReplyTimeout        time.Duration `mapstructure:"reply_timeout"`
}

// Location resolves the assistant timezone, falling back to UTC
func (c *AssistantConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type CentrifugoConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// IsProduction checks if app is in production mode
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// IsDevelopment checks if app is in development mode
func (c *AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// ENV vars override config
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Name:        getEnvOrDefault("APP_NAME", v.GetString("app.name")),
			Env:         getEnvOrDefault("APP_ENV", v.GetString("app.env")),
			Port:        getEnvOrDefaultInt("APP_PORT", v.GetInt("app.port")),
			PublicURL:   getEnvOrDefault("APP_PUBLIC_URL", v.GetString("app.public_url")),
			CORSOrigins: getEnvOrDefaultList("APP_CORS_ORIGINS", v.GetStringSlice("app.cors_origins")),
		},
		Database: DatabaseConfig{
			Driver:          getEnvOrDefault("DB_DRIVER", v.GetString("database.driver")),
			URL:             getEnvOrDefault("DATABASE_URL", v.GetString("database.url")),
			Host:            getEnvOrDefault("DB_HOST", v.GetString("database.host")),
			Port:            getEnvOrDefaultInt("DB_PORT", v.GetInt("database.port")),
			User:            getEnvOrDefault("DB_USER", v.GetString("database.user")),
			Password:        getEnvOrDefault("DB_PASSWORD", v.GetString("database.password")),
			Name:            getEnvOrDefault("DB_NAME", v.GetString("database.name")),
			SSLMode:         getEnvOrDefault("DB_SSL_MODE", v.GetString("database.ssl_mode")),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		JWT: JWTConfig{
			Secret:                getEnvOrDefault("JWT_SECRET", v.GetString("jwt.secret")),
			AccessDuration:        v.GetDuration("jwt.access_duration"),
			RefreshDuration:       v.GetDuration("jwt.refresh_duration"),
			ImpersonationDuration: v.GetDuration("jwt.impersonation_duration"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", v.GetString("logging.level")),
			Format: getEnvOrDefault("LOG_FORMAT", v.GetString("logging.format")),
		},
		OpenAI: OpenAIConfig{
			APIKey:             getEnvOrDefault("OPENAI_API_KEY", v.GetString("openai.api_key")),
			BaseURL:            getEnvOrDefault("OPENAI_BASE_URL", v.GetString("openai.base_url")),
			Model:              getEnvOrDefault("OPENAI_MODEL", v.GetString("openai.model")),
			TranscriptionModel: v.GetString("openai.transcription_model"),
			VisionModel:        v.GetString("openai.vision_model"),
		},
		Telegram: TelegramConfig{
			APIBaseURL:     getEnvOrDefault("TELEGRAM_API_BASE_URL", v.GetString("telegram.api_base_url")),
			RequestTimeout: v.GetDuration("telegram.request_timeout"),
			RatePerMinute:  v.GetInt("telegram.rate_per_minute"),
			TypingInterval: v.GetDuration("telegram.typing_interval"),
		},
		Microsoft: MicrosoftConfig{
			LoginBaseURL: v.GetString("microsoft.login_base_url"),
			GraphBaseURL: v.GetString("microsoft.graph_base_url"),
		},
		Cache: CacheConfig{
			SettingsTTL:          v.GetDuration("cache.settings_ttl"),
			SettingsCapacity:     v.GetInt("cache.settings_capacity"),
			ConversationTTL:      v.GetDuration("cache.conversation_ttl"),
			ConversationCapacity: v.GetInt("cache.conversation_capacity"),
		},
		Assistant: AssistantConfig{
			MaxHistory:          getEnvOrDefaultInt("MAX_HISTORY", v.GetInt("assistant.max_history")),
			Timezone:            getEnvOrDefault("ASSISTANT_TIMEZONE", v.GetString("assistant.timezone")),
			DefaultEventMinutes: v.GetInt("assistant.default_event_minutes"),
			ReplyTimeout:        v.GetDuration("assistant.reply_timeout"),
		},
		Centrifugo: CentrifugoConfig{
			URL:    getEnvOrDefault("CENTRIFUGO_URL", v.GetString("centrifugo.url")),
			APIKey: getEnvOrDefault("CENTRIFUGO_API_KEY", v.GetString("centrifugo.api_key")),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("metrics.enabled"),
			Path:    v.GetString("metrics.path"),
		},
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// SetDefaults fills every zero value that has a sensible default
func (c *Config) SetDefaults() {
	if c.App.Port == 0 {
		c.App.Port = 8080
	}
	if len(c.App.CORSOrigins) == 0 {
		c.App.CORSOrigins = []string{"http://localhost:3000"}
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 5 * time.Minute
	}
	if c.JWT.AccessDuration == 0 {
		c.JWT.AccessDuration = 15 * time.Minute
	}
	if c.JWT.RefreshDuration == 0 {
		c.JWT.RefreshDuration = 168 * time.Hour
	}
	if c.JWT.ImpersonationDuration == 0 {
		c.JWT.ImpersonationDuration = time.Hour
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.OpenAI.TranscriptionModel == "" {
		c.OpenAI.TranscriptionModel = "whisper-1"
	}
	if c.OpenAI.VisionModel == "" {
		c.OpenAI.VisionModel = c.OpenAI.Model
	}
	if c.Telegram.APIBaseURL == "" {
		c.Telegram.APIBaseURL = "https://api.telegram.org"
	}
	if c.Telegram.RequestTimeout == 0 {
		c.Telegram.RequestTimeout = 15 * time.Second
	}
	if c.Telegram.RatePerMinute == 0 {
		c.Telegram.RatePerMinute = 20
	}
	if c.Telegram.TypingInterval == 0 {
		c.Telegram.TypingInterval = 4 * time.Second
	}
	if c.Microsoft.LoginBaseURL == "" {
		c.Microsoft.LoginBaseURL = "https://login.microsoftonline.com"
	}
	if c.Microsoft.GraphBaseURL == "" {
		c.Microsoft.GraphBaseURL = "https://graph.microsoft.com/v1.0"
	}
	if c.Cache.SettingsTTL == 0 {
		c.Cache.SettingsTTL = 5 * time.Minute
	}
	if c.Cache.SettingsCapacity == 0 {
		c.Cache.SettingsCapacity = 256
	}
	if c.Cache.ConversationTTL == 0 {
		c.Cache.ConversationTTL = 5 * time.Minute
	}
	if c.Cache.ConversationCapacity == 0 {
		c.Cache.ConversationCapacity = 1000
	}
	if c.Assistant.MaxHistory == 0 {
		c.Assistant.MaxHistory = 20
	}
	if c.Assistant.Timezone == "" {
		c.Assistant.Timezone = "Europe/Paris"
	}
	if c.Assistant.DefaultEventMinutes == 0 {
		c.Assistant.DefaultEventMinutes = 60
	}
	if c.Assistant.ReplyTimeout == 0 {
		c.Assistant.ReplyTimeout = 50 * time.Second
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// getEnvOrDefault returns env value or default
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	// ${VAR:default} placeholders in the file resolve to their default
	if strings.HasPrefix(defaultVal, "${") && strings.HasSuffix(defaultVal, "}") {
		inner := defaultVal[2 : len(defaultVal)-1]
		parts := strings.SplitN(inner, ":", 2)
		if len(parts) == 2 {
			return parts[1]
		}
		return ""
	}
	return defaultVal
}

// getEnvOrDefaultInt returns env value as int or default
func getEnvOrDefaultInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		var intVal int
		fmt.Sscanf(val, "%d", &intVal)
		if intVal > 0 {
			return intVal
		}
	}
	if defaultVal > 0 {
		return defaultVal
	}
	return 0
}

// getEnvOrDefaultList reads a comma separated env value
func getEnvOrDefaultList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.App.Port)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Database.Driver == DriverSQLite && c.Database.DSN() == "" {
		return fmt.Errorf("sqlite requires database.name or database.url")
	}

	return nil
}
