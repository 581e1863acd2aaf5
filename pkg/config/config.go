package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Default public endpoints. Every one of them can be overridden from the environment.
const (
	PisteOAuthURL           = "https://oauth.piste.gouv.fr/api/oauth/token"
	PisteSandboxOAuthURL    = "https://sandbox-oauth.piste.gouv.fr/api/oauth/token"
	ChorusProBaseURL        = "https://api.piste.gouv.fr/cpro"
	ChorusProSandboxBaseURL = "https://sandbox-api.piste.gouv.fr/cpro"
	PennylaneBaseURL        = "https://app.pennylane.com/api/external/v1"
	SAGEBaseURL             = "https://api.accounting.sage.com/v3.1"
)

// Config groups the application settings, read through Viper from the
// environment and optionally from a .env or config file.
type Config struct {
	App       AppConfig
	DB        DBConfig
	JWT       JWTConfig
	HTTP      HTTPConfig
	Redis     RedisConfig
	FacturX   FacturXConfig
	ChorusPro ChorusProConfig
	Pennylane PortalConfig
	SAGE      PortalConfig

	v *viper.Viper
}

// AppConfig holds general settings.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// DBConfig is the submission ledger database. DatabaseURL wins when set.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
}

// Enabled reports whether a ledger database is configured.
func (c DBConfig) Enabled() bool {
	return c.DatabaseURL != "" || c.Host != ""
}

// ConnectionString returns DatabaseURL when set, DSN() otherwise.
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN builds a postgres URL, escaping special characters in the password.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// JWTConfig configures API authentication.
type JWTConfig struct {
	Secret     string
	Expiration int // minutes
	Issuer     string
}

// HTTPConfig is the API listener.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr returns host:port.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedisConfig points at the Chorus Pro structure cache. Empty URL disables it.
type RedisConfig struct {
	URL        string
	TTLMinutes int
}

// FacturXConfig locates the validation resources and the external tools.
type FacturXConfig struct {
	SchematronDir   string
	XSDDir          string
	XsltprocPath    string
	XmllintPath     string
	GhostscriptPath string
	PyhankoPath     string
	TempDir         string
}

// ChorusProConfig holds the PISTE application and the Chorus Pro technical account.
type ChorusProConfig struct {
	Sandbox           bool
	PisteClientID     string
	PisteClientSecret string
	OAuthURL          string
	SandboxOAuthURL   string
	Login             string
	Password          string
	BaseURL           string
	SandboxBaseURL    string
}

// Enabled reports whether PISTE credentials are present.
func (c ChorusProConfig) Enabled() bool {
	return c.PisteClientID != "" && c.PisteClientSecret != ""
}

// TokenURL picks the sandbox or production OAuth endpoint.
func (c ChorusProConfig) TokenURL() string {
	if c.Sandbox {
		return c.SandboxOAuthURL
	}
	return c.OAuthURL
}

// APIURL picks the sandbox or production API base.
func (c ChorusProConfig) APIURL() string {
	if c.Sandbox {
		return c.SandboxBaseURL
	}
	return c.BaseURL
}

// PortalConfig configures a bearer-token portal (Pennylane, SAGE).
type PortalConfig struct {
	Sandbox        bool
	APIKey         string
	BaseURL        string
	SandboxBaseURL string
}

// Enabled reports whether an API key is present.
func (c PortalConfig) Enabled() bool {
	return c.APIKey != ""
}

// APIURL picks the sandbox or production base.
func (c PortalConfig) APIURL() string {
	if c.Sandbox && c.SandboxBaseURL != "" {
		return c.SandboxBaseURL
	}
	return c.BaseURL
}

// Load reads the configuration. Environment variables take precedence over
// files. Expected names: APP_ENV, DB_HOST, JWT_SECRET, PISTE_CLIENT_ID, ...
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig() // optional

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "facture-electronique"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
		},
		DB: DBConfig{
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", ""),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "facturx"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:     getString(v, "JWT_SECRET", ""),
			Expiration: getInt(v, "JWT_EXPIRATION_MINUTES", 60),
			Issuer:     getString(v, "JWT_ISSUER", "facture-electronique"),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		Redis: RedisConfig{
			URL:        getString(v, "REDIS_URL", ""),
			TTLMinutes: getInt(v, "REDIS_STRUCTURE_TTL_MINUTES", 24*60),
		},
		FacturX: FacturXConfig{
			SchematronDir:   getString(v, "FACTURX_SCHEMATRON_DIR", ""),
			XSDDir:          getString(v, "FACTURX_XSD_DIR", ""),
			XsltprocPath:    getString(v, "FACTURX_XSLTPROC", "xsltproc"),
			XmllintPath:     getString(v, "FACTURX_XMLLINT", "xmllint"),
			GhostscriptPath: getString(v, "FACTURX_GHOSTSCRIPT", "gs"),
			PyhankoPath:     getString(v, "FACTURX_PYHANKO", "pyhanko"),
			TempDir:         getString(v, "FACTURX_TEMP_DIR", os.TempDir()),
		},
		ChorusPro: ChorusProConfig{
			Sandbox:           getBool(v, "CHORUS_PRO_SANDBOX", true),
			PisteClientID:     getString(v, "PISTE_CLIENT_ID", ""),
			PisteClientSecret: getString(v, "PISTE_CLIENT_SECRET", ""),
			OAuthURL:          getString(v, "PISTE_OAUTH_URL", PisteOAuthURL),
			SandboxOAuthURL:   getString(v, "PISTE_SANDBOX_OAUTH_URL", PisteSandboxOAuthURL),
			Login:             getString(v, "CHORUS_PRO_LOGIN", ""),
			Password:          getString(v, "CHORUS_PRO_PASSWORD", ""),
			BaseURL:           getString(v, "CHORUS_PRO_BASE_URL", ChorusProBaseURL),
			SandboxBaseURL:    getString(v, "CHORUS_PRO_SANDBOX_BASE_URL", ChorusProSandboxBaseURL),
		},
		Pennylane: PortalConfig{
			Sandbox:        getBool(v, "PENNYLANE_SANDBOX", true),
			APIKey:         getString(v, "PENNYLANE_API_KEY", ""),
			BaseURL:        getString(v, "PENNYLANE_BASE_URL", PennylaneBaseURL),
			SandboxBaseURL: getString(v, "PENNYLANE_SANDBOX_BASE_URL", ""),
		},
		SAGE: PortalConfig{
			Sandbox:        getBool(v, "SAGE_SANDBOX", true),
			APIKey:         getString(v, "SAGE_API_KEY", ""),
			BaseURL:        getString(v, "SAGE_BASE_URL", SAGEBaseURL),
			SandboxBaseURL: getString(v, "SAGE_SANDBOX_BASE_URL", ""),
		},
		v: v,
	}
}

// ConfigError reports a required setting that is missing.
type ConfigError struct {
	Name string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration: required setting %q not found", e.Name)
}

// NewConfigError builds a ConfigError for the given setting name.
func NewConfigError(name string) *ConfigError {
	return &ConfigError{Name: name}
}

// Require returns a *ConfigError naming the first setting that is not set.
func (c *Config) Require(names ...string) error {
	for _, name := range names {
		if c.v == nil || strings.TrimSpace(c.v.GetString(name)) == "" {
			return NewConfigError(name)
		}
	}
	return nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if !v.IsSet(key) {
		return def
	}
	if s, ok := v.Get(key).(string); ok {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return def
		}
		return n
	}
	return v.GetInt(key)
}

func getBool(v *viper.Viper, key string, def bool) bool {
	if !v.IsSet(key) {
		return def
	}
	if s, ok := v.Get(key).(string); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return def
		}
		return b
	}
	return v.GetBool(key)
}
