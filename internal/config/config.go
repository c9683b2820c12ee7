package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

// ErrInvalidConfig wraps every validation failure returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	ProviderLibreTranslate = "libretranslate"
	ProviderOpenAI         = "openai"
	ProviderAnthropic      = "anthropic"

	RecordSuccessOnly = "success"
	RecordAllStatuses = "all"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Visits      VisitsConfig      `mapstructure:"visits"`
	Translation TranslationConfig `mapstructure:"translation"`
}

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AuthConfig struct {
	AdminKey       string `mapstructure:"admin_key"`
	AdminSecretKey string `mapstructure:"admin_secret_key"`
	AdminRateLimit int    `mapstructure:"admin_rate_limit_qps"` // per client IP
}

type DatabaseConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Addr            string `mapstructure:"addr"`
	Password        string `mapstructure:"password"`
	DB              int    `mapstructure:"db"`
	CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type VisitsConfig struct {
	RetentionDays          int      `mapstructure:"retention_days"`
	CleanupIntervalMinutes int      `mapstructure:"cleanup_interval_minutes"` // 0 disables the in-process sweeper
	SweepBatchSize         int      `mapstructure:"sweep_batch_size"`
	RecordStatuses         string   `mapstructure:"record_statuses"` // success | all
	ExcludedPrefixes       []string `mapstructure:"excluded_prefixes"`
	AdminPrefixes          []string `mapstructure:"admin_prefixes"`
	ExcludedExtensions     []string `mapstructure:"excluded_extensions"`
	ExcludedPatterns       []string `mapstructure:"excluded_patterns"`
	BotSignatures          []string `mapstructure:"bot_signatures"`
	DevToolSignatures      []string `mapstructure:"dev_tool_signatures"`
	MinUserAgentLength     int      `mapstructure:"min_user_agent_length"`
	MaxUserAgentLength     int      `mapstructure:"max_user_agent_length"`
	WriteBuffer            int      `mapstructure:"write_buffer"` // 0 writes inline with the request
}

// Retention is the visit retention horizon.
func (v VisitsConfig) Retention() time.Duration {
	return time.Duration(v.RetentionDays) * 24 * time.Hour
}

type TranslationConfig struct {
	Enabled           bool     `mapstructure:"enabled"`
	Provider          string   `mapstructure:"provider"`
	APIURL            string   `mapstructure:"api_url"`
	APIKey            string   `mapstructure:"api_key"`
	Model             string   `mapstructure:"model"`
	TimeoutSeconds    int      `mapstructure:"timeout_seconds"`
	DefaultLanguage   string   `mapstructure:"default_language"`
	Languages         []string `mapstructure:"languages"` // processing order
	DisabledLanguages []string `mapstructure:"disabled_languages"`
	RateLimitQPS      int      `mapstructure:"rate_limit_qps"`
	Async             bool     `mapstructure:"async"`
	Workers           int      `mapstructure:"workers"`
	QueueSize         int      `mapstructure:"queue_size"`
}

func (t TranslationConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// TargetLanguages returns the enabled non-default languages in configured order.
func (t TranslationConfig) TargetLanguages() []string {
	targets := make([]string, 0, len(t.Languages))
	for _, lang := range t.Languages {
		if lang == t.DefaultLanguage || slices.Contains(t.DisabledLanguages, lang) {
			continue
		}
		targets = append(targets, lang)
	}
	return targets
}

// DefaultAdminPrefixes are the administrative routes, also used to split visit stats.
var DefaultAdminPrefixes = []string{
	"/admin/",
	"/dashboard/",
	"/analytics/",
	"/admin-dashboard/",
	"/admin-analytics/",
	"/login/",
	"/logout/",
	"/password-change/",
	"/manage/",
	"/api/",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("auth.admin_key", "")
	v.SetDefault("auth.admin_secret_key", "")
	v.SetDefault("auth.admin_rate_limit_qps", 10)
	v.SetDefault("database.dsn", "sqlite://folio.db")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl_seconds", 86400)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("visits.retention_days", 180)
	v.SetDefault("visits.cleanup_interval_minutes", 0)
	v.SetDefault("visits.sweep_batch_size", 1000)
	v.SetDefault("visits.record_statuses", RecordSuccessOnly)
	v.SetDefault("visits.admin_prefixes", DefaultAdminPrefixes)
	v.SetDefault("visits.excluded_prefixes", append(slices.Clone(DefaultAdminPrefixes),
		"/manage/ajax/",
		"/static/",
		"/media/",
		"/favicon.ico",
		"/robots.txt",
		"/sitemap.xml",
		"/.well-known/",
		"/apple-touch-icon",
		"/browserconfig.xml",
		"/manifest.json",
		"/health",
		"/metrics",
	))
	v.SetDefault("visits.excluded_extensions", []string{
		".css", ".js", ".map", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp",
		".ico", ".woff", ".woff2", ".ttf", ".eot", ".pdf", ".txt", ".xml",
	})
	v.SetDefault("visits.excluded_patterns", []string{
		".well-known", "devtools", "chrome-extension", "moz-extension", "safari-extension",
		"edge-extension", "__webpack", "hot-update", ".map", "sourcemap",
	})
	v.SetDefault("visits.bot_signatures", []string{
		"googlebot", "bingbot", "slurp", "duckduckbot", "baiduspider", "yandexbot",
		"facebookexternalhit", "linkedinbot", "whatsapp", "telegram", "bot", "crawler",
		"spider", "scraper", "curl", "wget", "python-requests", "postman", "insomnia", "httpie",
	})
	v.SetDefault("visits.dev_tool_signatures", []string{
		"devtools", "chrome-devtools", "webkit-devtools", "firefox-devtools", "safari-devtools",
		"edge-devtools", "vscode", "jetbrains", "intellij",
	})
	v.SetDefault("visits.min_user_agent_length", 10)
	v.SetDefault("visits.max_user_agent_length", 500)
	v.SetDefault("visits.write_buffer", 0)

	v.SetDefault("translation.enabled", false)
	v.SetDefault("translation.provider", ProviderLibreTranslate)
	v.SetDefault("translation.api_url", "")
	v.SetDefault("translation.timeout_seconds", 10)
	v.SetDefault("translation.default_language", "en")
	v.SetDefault("translation.languages", []string{"en", "es"})
	v.SetDefault("translation.disabled_languages", []string{})
	v.SetDefault("translation.rate_limit_qps", 5)
	v.SetDefault("translation.async", false)
	v.SetDefault("translation.workers", 2)
	v.SetDefault("translation.queue_size", 100)
}

// Load reads config.yaml from . or ./configs plus FOLIO_* environment variables.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file; an empty path searches the defaults.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	// e.g. FOLIO_TRANSLATION_API_URL
	v.SetEnvPrefix("folio")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Translation.Provider = strings.ToLower(strings.TrimSpace(c.Translation.Provider))
	c.Translation.APIURL = strings.TrimRight(strings.TrimSpace(c.Translation.APIURL), "/")
	c.Translation.DefaultLanguage = canonicalLanguage(c.Translation.DefaultLanguage)
	for i, lang := range c.Translation.Languages {
		c.Translation.Languages[i] = canonicalLanguage(lang)
	}
	for i, lang := range c.Translation.DisabledLanguages {
		c.Translation.DisabledLanguages[i] = canonicalLanguage(lang)
	}
	c.Visits.RecordStatuses = strings.ToLower(strings.TrimSpace(c.Visits.RecordStatuses))
	lowerAll(c.Visits.ExcludedExtensions)
	lowerAll(c.Visits.ExcludedPatterns)
	lowerAll(c.Visits.BotSignatures)
	lowerAll(c.Visits.DevToolSignatures)
}

// Validate reports misconfiguration that must stop the process at startup.
func (c *Config) Validate() error {
	var errs []error

	if c.Visits.RetentionDays <= 0 {
		errs = append(errs, fmt.Errorf("visits.retention_days must be positive, got %d", c.Visits.RetentionDays))
	}
	if c.Visits.SweepBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("visits.sweep_batch_size must be positive, got %d", c.Visits.SweepBatchSize))
	}
	switch c.Visits.RecordStatuses {
	case RecordSuccessOnly, RecordAllStatuses:
	default:
		errs = append(errs, fmt.Errorf("visits.record_statuses must be %q or %q, got %q", RecordSuccessOnly, RecordAllStatuses, c.Visits.RecordStatuses))
	}

	errs = append(errs, c.Translation.validate()...)

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func (t TranslationConfig) validate() []error {
	var errs []error

	if len(t.Languages) == 0 {
		errs = append(errs, errors.New("translation.languages must not be empty"))
	}
	for _, lang := range t.Languages {
		if _, err := language.Parse(lang); err != nil {
			errs = append(errs, fmt.Errorf("translation.languages: %q is not a valid language tag", lang))
		}
	}
	if !slices.Contains(t.Languages, t.DefaultLanguage) {
		errs = append(errs, fmt.Errorf("translation.default_language %q must be one of translation.languages", t.DefaultLanguage))
	}
	if t.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("translation.timeout_seconds must be positive, got %d", t.TimeoutSeconds))
	}
	if !t.Enabled {
		return errs
	}

	switch t.Provider {
	case ProviderLibreTranslate:
		if t.APIURL == "" {
			errs = append(errs, errors.New("translation.api_url is required when translation is enabled"))
		} else if u, err := url.Parse(t.APIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("translation.api_url %q must be an absolute http(s) URL", t.APIURL))
		}
	case ProviderOpenAI, ProviderAnthropic:
		if t.APIKey == "" {
			errs = append(errs, fmt.Errorf("translation.api_key is required for provider %s", t.Provider))
		}
		if t.Model == "" {
			errs = append(errs, fmt.Errorf("translation.model is required for provider %s", t.Provider))
		}
	default:
		errs = append(errs, fmt.Errorf("translation.provider %q is not supported", t.Provider))
	}
	if t.Async && t.Workers <= 0 {
		errs = append(errs, fmt.Errorf("translation.workers must be positive in async mode, got %d", t.Workers))
	}
	return errs
}

func canonicalLanguage(code string) string {
	code = strings.TrimSpace(code)
	tag, err := language.Parse(code)
	if err != nil {
		return strings.ToLower(code)
	}
	return tag.String()
}

func lowerAll(values []string) {
	for i, v := range values {
		values[i] = strings.ToLower(strings.TrimSpace(v))
	}
}
