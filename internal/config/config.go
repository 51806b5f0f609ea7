package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr          string          `yaml:"addr"`
	JWTSecret     string          `yaml:"jwt_secret"`
	APITimeout    time.Duration   `yaml:"timeout"`
	DatabasePath  string          `yaml:"database_path"`
	TokenDuration time.Duration   `yaml:"token_duration"`
	BaseURL       string          `yaml:"base_url"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
	Mailer        MailerConfig    `yaml:"mailer"`
	Courier       CourierConfig   `yaml:"courier"`
	Identity      IdentityConfig  `yaml:"identity"`
	Insights      InsightsConfig  `yaml:"insights"`
}

// RateLimitConfig bounds campaign creation per caller identity.
type RateLimitConfig struct {
	CampaignQuota int           `yaml:"campaign_quota"`
	Window        time.Duration `yaml:"window"`
}

// MailerConfig tunes the batch dispatcher and the outbox worker pool.
type MailerConfig struct {
	MaxConcurrent       int           `yaml:"max_concurrent"`
	DelayBetweenBatches time.Duration `yaml:"delay_between_batches"`
	MaxRetries          int           `yaml:"max_retries"`
	Workers             int           `yaml:"workers"`
}

// CourierConfig configures the transactional email provider client.
type CourierConfig struct {
	BaseURL                 string        `yaml:"base_url"`
	APIKey                  string        `yaml:"api_key"`
	FromAddress             string        `yaml:"from_address"`
	Timeout                 time.Duration `yaml:"timeout"`
	Retries                 int           `yaml:"retries"`
	Backoff                 time.Duration `yaml:"backoff"`
	CircuitFailureThreshold int           `yaml:"circuit_failure_threshold"`
	CircuitReset            time.Duration `yaml:"circuit_reset"`
}

// IdentityConfig configures the identity provider admin API client.
type IdentityConfig struct {
	BaseURL                 string        `yaml:"base_url"`
	APIKey                  string        `yaml:"api_key"`
	Timeout                 time.Duration `yaml:"timeout"`
	Retries                 int           `yaml:"retries"`
	Backoff                 time.Duration `yaml:"backoff"`
	CircuitFailureThreshold int           `yaml:"circuit_failure_threshold"`
	CircuitReset            time.Duration `yaml:"circuit_reset"`
}

// InsightsConfig configures the local model used to generate assessment
// insights. An empty model disables insight generation.
type InsightsConfig struct {
	BaseURL                 string        `yaml:"base_url"`
	Model                   string        `yaml:"model"`
	Timeout                 time.Duration `yaml:"timeout"`
	Retries                 int           `yaml:"retries"`
	Backoff                 time.Duration `yaml:"backoff"`
	CircuitFailureThreshold int           `yaml:"circuit_failure_threshold"`
	CircuitReset            time.Duration `yaml:"circuit_reset"`
}

func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Addr:          getEnv("ASCENT_ADDR", ":8080"),
		JWTSecret:     getEnv("ASCENT_JWT_SECRET", "supersecretkey"),
		APITimeout:    15 * time.Second,
		DatabasePath:  getEnv("ASCENT_DATABASE_PATH", "ascent.db"),
		TokenDuration: 1 * time.Hour,
		BaseURL:       getEnv("ASCENT_BASE_URL", "http://localhost:8080"),
		Courier: CourierConfig{
			BaseURL: getEnv("ASCENT_COURIER_BASE_URL", "https://api.courier.example.com"),
			APIKey:  getEnv("ASCENT_COURIER_API_KEY", ""),
		},
		Identity: IdentityConfig{
			BaseURL: getEnv("ASCENT_IDP_BASE_URL", "https://api.idp.example.com"),
			APIKey:  getEnv("ASCENT_IDP_API_KEY", ""),
		},
		Insights: InsightsConfig{
			BaseURL: getEnv("ASCENT_INSIGHTS_BASE_URL", "http://localhost:11434"),
			Model:   getEnv("ASCENT_INSIGHTS_MODEL", ""),
		},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks the config for unsafe values and fills in defaults for
// tunables left unset.
func (c *Config) Validate() error {
	env := getEnv("ASCENT_ENV", "development")
	if c.JWTSecret == "" || c.JWTSecret == "supersecretkey" {
		if env != "development" {
			return fmt.Errorf("insecure jwt_secret is not allowed when ASCENT_ENV=%s", env)
		}
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}

	if c.RateLimit.CampaignQuota <= 0 {
		c.RateLimit.CampaignQuota = 5
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = time.Hour
	}

	if c.Mailer.MaxConcurrent <= 0 {
		c.Mailer.MaxConcurrent = 5
	}
	if c.Mailer.DelayBetweenBatches < 0 {
		c.Mailer.DelayBetweenBatches = 0
	}
	if c.Mailer.MaxRetries < 0 {
		c.Mailer.MaxRetries = 0
	}
	if c.Mailer.Workers <= 0 {
		c.Mailer.Workers = 2
	}

	fillClientDefaults(&c.Courier.Timeout, &c.Courier.Retries, &c.Courier.Backoff, &c.Courier.CircuitFailureThreshold, &c.Courier.CircuitReset)
	fillClientDefaults(&c.Identity.Timeout, &c.Identity.Retries, &c.Identity.Backoff, &c.Identity.CircuitFailureThreshold, &c.Identity.CircuitReset)
	fillClientDefaults(&c.Insights.Timeout, &c.Insights.Retries, &c.Insights.Backoff, &c.Insights.CircuitFailureThreshold, &c.Insights.CircuitReset)

	return nil
}

func fillClientDefaults(timeout *time.Duration, retries *int, backoff *time.Duration, threshold *int, reset *time.Duration) {
	if *timeout <= 0 {
		*timeout = 30 * time.Second
	}
	if *retries <= 0 {
		*retries = 2
	}
	if *backoff <= 0 {
		*backoff = 500 * time.Millisecond
	}
	if *threshold <= 0 {
		*threshold = 5
	}
	if *reset <= 0 {
		*reset = 30 * time.Second
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}
