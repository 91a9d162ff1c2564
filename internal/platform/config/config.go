package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile   = "config/config.yaml"
	DefaultPort         = 8080
	DefaultFrontendURL  = "https://attendance-frontend-chi.vercel.app/"
	DefaultQueryTimeout = 5 * time.Second

	ModeDev     = "dev"
	ModeRelease = "release"
)

type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	URL             string        `yaml:"-"`
	User            string        `yaml:"-"`
	Password        string        `yaml:"-"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
}

type CORSConfig struct {
	AllowOrigins []string `yaml:"allow_origins"`
}

type Certs struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

// Config is built once at startup and passed explicitly to every component.
type Config struct {
	Version     string         `yaml:"version"`
	Mode        string         `yaml:"mode"`
	DB          DatabaseConfig `yaml:"database"`
	CORS        CORSConfig     `yaml:"cors"`
	Certificate Certs          `yaml:"certificate"`

	Port        int    `yaml:"-"`
	FrontendURL string `yaml:"-"`
	LogLevel    string `yaml:"-"`
	BcryptCost  int    `yaml:"-"`
}

// TLSEnabled reports whether both certificate paths are configured.
func (c *Config) TLSEnabled() bool {
	return c.Certificate.Cert != "" && c.Certificate.Key != ""
}

// env holds everything read from the process environment. Required fields
// come first so a missing credential is reported before anything else.
// DB_PASSWORD may be set but empty, which envdecode's required tag rejects,
// so its presence is checked separately.
type env struct {
	DBURL        string        `env:"DB_URL,required"`
	DBUser       string        `env:"DB_USER,required"`
	DBPassword   string        `env:"DB_PASSWORD"`
	DBDriver     string        `env:"DB_DRIVER"`
	Mode         string        `env:"APP_MODE"`
	Port         int           `env:"PORT,default=8080"`
	FrontendURL  string        `env:"FRONTEND_URL"`
	LogLevel     string        `env:"LOG_LEVEL,default=info"`
	BcryptCost   int           `env:"BCRYPT_COST"`
	QueryTimeout time.Duration `env:"QUERY_TIMEOUT"`
}

// Load reads .env (if present), the optional YAML tuning file at path and the
// environment. Environment values win over the YAML file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{Mode: ModeRelease}
	if err := readFile(path, cfg); err != nil {
		return nil, err
	}

	var e env
	if err := envdecode.Decode(&e); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if _, ok := os.LookupEnv("DB_PASSWORD"); !ok {
		return nil, errors.New(`failed to read environment: the environment variable "DB_PASSWORD" is missing`)
	}
	cfg.merge(e)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	if path == "" {
		return nil
	}
	buf, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) merge(e env) {
	c.DB.URL = e.DBURL
	c.DB.User = e.DBUser
	c.DB.Password = e.DBPassword
	if e.DBDriver != "" {
		c.DB.Driver = e.DBDriver
	}
	if e.Mode != "" {
		c.Mode = e.Mode
	}
	if e.QueryTimeout > 0 {
		c.DB.QueryTimeout = e.QueryTimeout
	}
	if c.DB.QueryTimeout <= 0 {
		c.DB.QueryTimeout = DefaultQueryTimeout
	}

	c.Port = e.Port
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	c.FrontendURL = e.FrontendURL
	if c.FrontendURL == "" {
		c.FrontendURL = DefaultFrontendURL
	}
	c.LogLevel = e.LogLevel
	c.BcryptCost = e.BcryptCost

	if len(c.CORS.AllowOrigins) == 0 {
		c.CORS.AllowOrigins = []string{"*"}
	}
}

func (c *Config) validate() error {
	if c.Mode != ModeDev && c.Mode != ModeRelease {
		return fmt.Errorf("invalid mode %q: must be %q or %q", c.Mode, ModeDev, ModeRelease)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if (c.Certificate.Cert == "") != (c.Certificate.Key == "") {
		return errors.New("certificate.cert and certificate.key must be set together")
	}
	return nil
}
