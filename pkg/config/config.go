package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

const envPrefix = "CART"

type PsqlConfig struct {
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Sslmode  string `mapstructure:"sslmode"`
}

type HTTPConfig struct {
	Env             string        `mapstructure:"env"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type CartConfig struct {
	// TaxRate is jurisdiction specific, 0.07 is Thai VAT.
	TaxRate        string `mapstructure:"tax_rate"`
	MaxImportBytes int64  `mapstructure:"max_import_bytes"`
}

type Config struct {
	HTTP HTTPConfig `mapstructure:"http"`
	Psql PsqlConfig `mapstructure:"psql_conn"`
	Auth AuthConfig `mapstructure:"auth"`
	Cart CartConfig `mapstructure:"cart"`
}

// Load reads config.yaml (when present) and CART_* environment variables.
// A .env file in the working directory is loaded first if it exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %s\n", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Printf("Error reading config file, %s\n", err)
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Printf("Unable to decode into struct, %v\n", err)
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.env", EnvLocal)
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("psql_conn.user", "postgres")
	v.SetDefault("psql_conn.password", "postgres")
	v.SetDefault("psql_conn.host", "localhost")
	v.SetDefault("psql_conn.port", 5432)
	v.SetDefault("psql_conn.database", "cart")
	v.SetDefault("psql_conn.sslmode", "disable")

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("cart.tax_rate", "0.07")
	v.SetDefault("cart.max_import_bytes", 2<<20)
}

func (c *Config) Validate() error {
	switch c.HTTP.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("config: unknown env %q", c.HTTP.Env)
	}

	if c.HTTP.Port <= 0 {
		return fmt.Errorf("config: http.port must be positive, got %d", c.HTTP.Port)
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("config: auth.jwt_secret is required")
	}

	rate, err := c.TaxRate()
	if err != nil {
		return err
	}
	if rate.IsNegative() {
		return fmt.Errorf("config: cart.tax_rate must not be negative, got %s", rate)
	}

	if c.Cart.MaxImportBytes <= 0 {
		return fmt.Errorf("config: cart.max_import_bytes must be positive, got %d", c.Cart.MaxImportBytes)
	}

	return nil
}

func (c *Config) TaxRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.Cart.TaxRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("config: invalid cart.tax_rate %q: %w", c.Cart.TaxRate, err)
	}

	return rate, nil
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Psql.User, c.Psql.Password, c.Psql.Host, c.Psql.Port, c.Psql.Database, c.Psql.Sslmode)
}
