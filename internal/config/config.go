package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// FileEnv names the environment variable holding an optional YAML config path.
const FileEnv = "TICKETSYNC_CONFIG"

const (
	DriverSQLServer = "sqlserver"
	DriverSQLite    = "sqlite"
)

type Config struct {
	Auth    Auth    `yaml:"auth"`
	Source  Source  `yaml:"source"`
	DB      DB      `yaml:"db"`
	Log     Log     `yaml:"log"`
	Metrics Metrics `yaml:"metrics"`
}

type Auth struct {
	ClientID     string `yaml:"client_id" validate:"required"`
	TenantID     string `yaml:"tenant_id" validate:"required"`
	Scope        string `yaml:"scope" validate:"required"`
	ClientSecret string `yaml:"client_secret"`
	CachePath    string `yaml:"cache_path"`
	RedirectURI  string `yaml:"redirect_uri" validate:"omitempty,url"`
}

// Authority is the Entra ID authority URL for the configured tenant.
func (a Auth) Authority() string {
	return "https://login.microsoftonline.com/" + a.TenantID
}

type Source struct {
	URL     string        `yaml:"url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

type DB struct {
	Driver   string `yaml:"driver" validate:"oneof=sqlserver sqlite"`
	Server   string `yaml:"server" validate:"required_if=Driver sqlserver"`
	Port     int    `yaml:"port" validate:"gte=1,lte=65535"`
	Name     string `yaml:"name" validate:"required"`
	Username string `yaml:"username" validate:"required_if=Driver sqlserver"`
	Password string `yaml:"password" validate:"required_if=Driver sqlserver"`
	Table    string `yaml:"table" validate:"required"`
}

type Log struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

type Metrics struct {
	Textfile string `yaml:"textfile"`
}

// Default returns the configuration used before any file or environment is applied.
func Default() Config {
	return Config{
		Auth: Auth{CachePath: ".token_cache.json"},
		DB:   DB{Driver: DriverSQLServer, Port: 1433},
		Log:  Log{Level: "info", Format: "json"},
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// TICKETSYNC_CONFIG, a .env file in the working directory and the environment,
// in that order of precedence, and validates the result.
func Load() (*Config, error) {
	// A missing .env is the normal case in production.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv(FileEnv); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("config: decode %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	strs := map[string]*string{
		"CLIENT_ID":        &cfg.Auth.ClientID,
		"TENANT_ID":        &cfg.Auth.TenantID,
		"SCOPE":            &cfg.Auth.Scope,
		"CLIENT_SECRET":    &cfg.Auth.ClientSecret,
		"TOKEN_CACHE":      &cfg.Auth.CachePath,
		"REDIRECT_URI":     &cfg.Auth.RedirectURI,
		"CRM_URL":          &cfg.Source.URL,
		"DB_DRIVER":        &cfg.DB.Driver,
		"DB_SERVER":        &cfg.DB.Server,
		"DB_NAME":          &cfg.DB.Name,
		"DB_USERNAME":      &cfg.DB.Username,
		"DB_PASSWORD":      &cfg.DB.Password,
		"TICKET_TABLE":     &cfg.DB.Table,
		"LOG_LEVEL":        &cfg.Log.Level,
		"LOG_FORMAT":       &cfg.Log.Format,
		"METRICS_TEXTFILE": &cfg.Metrics.Textfile,
	}
	// A blank variable leaves the default or file value in place.
	for name, dst := range strs {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := lookup("DB_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: DB_PORT: %w", err)
		}
		cfg.DB.Port = port
	}
	if v, ok := lookup("HTTP_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: HTTP_TIMEOUT: %w", err)
		}
		cfg.Source.Timeout = d
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate reports every invalid field in one error.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return &InvalidError{Fields: msgs}
}

// InvalidError lists the configuration fields that failed validation.
type InvalidError struct {
	Fields []string
}

func (e *InvalidError) Error() string {
	return "config: invalid: " + strings.Join(e.Fields, "; ")
}
