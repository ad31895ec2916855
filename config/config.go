package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// DBConfig Database config
type DBConfig struct {
	Type     string `yaml:"type"` // postgres or sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Passwd   string `yaml:"passwd"`
	MaxConn  int    `yaml:"max_conn"`
	IdleConn int    `yaml:"idle_conn"`
	Debug    bool   `yaml:"debug"`
}

// SysConfig System config
type SysConfig struct {
	Appid    string `yaml:"appid"`
	Location string `yaml:"location"`
	Workdir  string `yaml:"workdir"`
	Debug    bool   `yaml:"debug"`
	Version  string `yaml:"version"`
}

// WebConfig web server config
type WebConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Secret   string `yaml:"secret"`
	TokenTTL int    `yaml:"token_ttl"` // hours
}

type LogConfig struct {
	Mode       string `yaml:"mode"`
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
}

// SmtpConfig outgoing mail for order notifications
type SmtpConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	User    string `yaml:"user"`
	Passwd  string `yaml:"passwd"`
	From    string `yaml:"from"`
}

type CatalogConfig struct {
	LowStockThreshold int `yaml:"low_stock_threshold"`
}

// AdminConfig default administrator created on first start
type AdminConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type AppConfig struct {
	System   SysConfig     `yaml:"system"`
	Web      WebConfig     `yaml:"web"`
	Database DBConfig      `yaml:"database"`
	Logger   LogConfig     `yaml:"logger"`
	Smtp     SmtpConfig    `yaml:"smtp"`
	Catalog  CatalogConfig `yaml:"catalog"`
	Admin    AdminConfig   `yaml:"admin"`
}

func (c *AppConfig) GetLogDir() string {
	return path.Join(c.System.Workdir, "logs")
}

func (c *AppConfig) GetDataDir() string {
	return path.Join(c.System.Workdir, "data")
}

func (c *AppConfig) InitDirs() {
	_ = os.MkdirAll(c.GetLogDir(), 0o755)
	_ = os.MkdirAll(c.GetDataDir(), 0o755)
}

func (c *AppConfig) WebAddr() string {
	return fmt.Sprintf("%s:%d", c.Web.Host, c.Web.Port)
}

// DefaultWebSecret is the built-in signing secret. It is public and must not sign real tokens.
const DefaultWebSecret = "9b6de5cc-0731-4d8b-9e1e-7a4f1c2d3e5f"

// EnsureSecret swaps an empty or built-in web secret for a random one. It reports
// whether the secret was replaced.
func (c *AppConfig) EnsureSecret() (bool, error) {
	if c.Web.Secret != "" && c.Web.Secret != DefaultWebSecret {
		return false, nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return false, fmt.Errorf("generate web secret: %w", err)
	}
	c.Web.Secret = hex.EncodeToString(buf)
	return true, nil
}

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "Storefront",
		Location: "UTC",
		Workdir:  "/var/storefront",
		Debug:    false,
		Version:  "1.0.0",
	},
	Web: WebConfig{
		Host:     "0.0.0.0",
		Port:     8080,
		Secret:   DefaultWebSecret,
		TokenTTL: 24,
	},
	Database: DBConfig{
		Type:     "postgres",
		Host:     "127.0.0.1",
		Port:     5432,
		Name:     "storefront",
		User:     "postgres",
		Passwd:   "postgres",
		MaxConn:  100,
		IdleConn: 10,
		Debug:    false,
	},
	Logger: LogConfig{
		Mode:       "development",
		FileEnable: false,
		Filename:   "/var/storefront/logs/storefront.log",
	},
	Smtp: SmtpConfig{
		Enabled: false,
		Host:    "localhost",
		Port:    25,
		From:    "shop@localhost",
	},
	Catalog: CatalogConfig{
		LowStockThreshold: 5,
	},
	Admin: AdminConfig{
		Email:    "admin@storefront.local",
		Password: "storefront",
	},
}

// LoadConfig reads the yaml file when it exists, then applies STOREFRONT_* environment overrides.
func LoadConfig(cfile string) (*AppConfig, error) {
	cfg := *DefaultAppConfig
	if cfile != "" {
		data, err := os.ReadFile(cfile)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", cfile, err)
			}
		}
	}
	applyEnv(&cfg)
	cfg.Database.Type = strings.ToLower(strings.TrimSpace(cfg.Database.Type))
	return &cfg, nil
}

func applyEnv(cfg *AppConfig) {
	setEnvString("STOREFRONT_WORKDIR", &cfg.System.Workdir)
	setEnvString("STOREFRONT_LOCATION", &cfg.System.Location)
	setEnvBool("STOREFRONT_DEBUG", &cfg.System.Debug)

	setEnvString("STOREFRONT_WEB_HOST", &cfg.Web.Host)
	setEnvInt("STOREFRONT_WEB_PORT", &cfg.Web.Port)
	setEnvString("STOREFRONT_WEB_SECRET", &cfg.Web.Secret)
	setEnvInt("STOREFRONT_TOKEN_TTL", &cfg.Web.TokenTTL)

	setEnvString("STOREFRONT_DB_TYPE", &cfg.Database.Type)
	setEnvString("STOREFRONT_DB_HOST", &cfg.Database.Host)
	setEnvInt("STOREFRONT_DB_PORT", &cfg.Database.Port)
	setEnvString("STOREFRONT_DB_NAME", &cfg.Database.Name)
	setEnvString("STOREFRONT_DB_USER", &cfg.Database.User)
	setEnvString("STOREFRONT_DB_PWD", &cfg.Database.Passwd)
	setEnvBool("STOREFRONT_DB_DEBUG", &cfg.Database.Debug)

	setEnvString("STOREFRONT_LOGGER_MODE", &cfg.Logger.Mode)
	setEnvBool("STOREFRONT_LOGGER_FILE_ENABLE", &cfg.Logger.FileEnable)

	setEnvBool("STOREFRONT_SMTP_ENABLED", &cfg.Smtp.Enabled)
	setEnvString("STOREFRONT_SMTP_HOST", &cfg.Smtp.Host)
	setEnvInt("STOREFRONT_SMTP_PORT", &cfg.Smtp.Port)
	setEnvString("STOREFRONT_SMTP_USER", &cfg.Smtp.User)
	setEnvString("STOREFRONT_SMTP_PWD", &cfg.Smtp.Passwd)
	setEnvString("STOREFRONT_SMTP_FROM", &cfg.Smtp.From)

	setEnvInt("STOREFRONT_LOW_STOCK_THRESHOLD", &cfg.Catalog.LowStockThreshold)
	setEnvString("STOREFRONT_ADMIN_EMAIL", &cfg.Admin.Email)
	setEnvString("STOREFRONT_ADMIN_PASSWORD", &cfg.Admin.Password)
}

func setEnvString(name string, val *string) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		*val = v
	}
}

func setEnvInt(name string, val *int) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		if n, err := cast.ToIntE(v); err == nil {
			*val = n
		}
	}
}

func setEnvBool(name string, val *bool) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		if b, err := cast.ToBoolE(v); err == nil {
			*val = b
		}
	}
}
