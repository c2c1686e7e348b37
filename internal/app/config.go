package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/payment"
)

// Config holds the complete application configuration, loadable from
// environment variables (STORE_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL; enables the persistent order ledger (STORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL    string `usage:"Redis connection URL; enables shared payment locks (STORE_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	FrontendURL string `usage:"Storefront origin allowed by CORS (STORE_FRONTEND_URL or FRONTEND_URL)" flag:"frontend-url"`
	Catalog     CatalogConfig
	Stripe      StripeConfig
	Fees        FeeConfig
	Checkout    CheckoutConfig
	Lock        LockConfig
	AMQP        AMQPConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// CatalogConfig points at the product catalog file.
type CatalogConfig struct {
	Path string `default:"data/products.json" usage:"Product catalog JSON file" flag:"catalog"`
}

// StripeConfig holds payment processor credentials and client tuning.
type StripeConfig struct {
	SecretKey          string        `usage:"Stripe secret API key (STRIPE_SECRET_KEY)" flag:"stripe-secret-key"`
	WebhookSecret      string        `usage:"Stripe webhook signing secret (STRIPE_WEBHOOK_SECRET)" flag:"stripe-webhook-secret"`
	PublishableKey     string        `usage:"Stripe publishable key returned by /api/config (STRIPE_PUBLISHABLE_KEY)" flag:"stripe-publishable-key"`
	ConnectedAccountID string        `usage:"Connected seller account for marketplace charges (STRIPE_CONNECTED_ACCOUNT_ID)" flag:"stripe-connected-account"`
	SellerKey          string        `usage:"Bearer token of the seller dashboard routes (SELLER_API_KEY)" flag:"seller-key"`
	BaseURL            string        `usage:"Override the Stripe API endpoint" flag:"stripe-base-url"`
	Timeout            time.Duration `default:"15s" usage:"Timeout of a single Stripe API call"`
	MaxNetworkRetries  int64         `default:"2"   usage:"Network retries per Stripe API call"`
	WebhookTolerance   time.Duration `default:"5m"  usage:"Maximum age of a webhook signature"`
	Breaker            BreakerConfig
}

// BreakerConfig controls the circuit breaker around Stripe calls.
type BreakerConfig struct {
	Failures         uint32        `default:"5"   usage:"Consecutive failures that open the circuit"`
	OpenTimeout      time.Duration `default:"30s" usage:"How long the circuit stays open"`
	Interval         time.Duration `default:"1m"  usage:"Failure count reset interval while closed"`
	HalfOpenRequests uint32        `default:"1"   usage:"Probe requests while half-open"`
}

// FeeConfig is the platform fee taken from marketplace charges.
type FeeConfig struct {
	Percentage string `default:"10" usage:"Platform fee percentage, 0 to 100 (PLATFORM_FEE_PERCENTAGE)"`
	Fixed      int64  `default:"0"  usage:"Fixed platform fee in minor units (PLATFORM_FIXED_FEE)"`
}

// CheckoutConfig controls the payment routes.
type CheckoutConfig struct {
	RequireSession    bool          `default:"false" usage:"Reject payment requests without X-Session-ID" flag:"require-session"`
	IdempotencyWindow time.Duration `default:"10m"   usage:"Time bucket of processor idempotency keys"`
	RateLimit         int           `default:"10"    usage:"Payment requests per client per window"`
	RateWindow        time.Duration `default:"1m"    usage:"Payment rate limit window"`
	MaxBodyBytes      int64         `default:"65536" usage:"Maximum request body size"`
}

// LockConfig controls the per-client payment lock.
type LockConfig struct {
	TTL           time.Duration `default:"30s" usage:"Age after which a payment lock is abandoned" flag:"lock-ttl"`
	SweepInterval time.Duration `default:"1m"  usage:"Stale lock sweep interval"`
	RedisPrefix   string        `default:"storefront:paylock:" usage:"Redis key prefix of payment locks"`
}

// AMQPConfig enables order notifications on a message broker.
type AMQPConfig struct {
	URL      string `usage:"AMQP broker URL; empty logs notifications instead" flag:"amqp-url"`
	Exchange string `default:"checkout" usage:"Topic exchange for order notifications"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

func loaderConfig() aconfig.Config {
	return aconfig.Config{
		EnvPrefix: "STORE",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	}
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(loaderConfig())
}

func loadConfig(acfg aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, acfg).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) with standard names to the STORE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	for _, v := range []struct {
		dst *string
		env string
	}{
		{&c.DatabaseURL, "DATABASE_URL"},
		{&c.RedisURL, "REDIS_URL"},
		{&c.FrontendURL, "FRONTEND_URL"},
		{&c.Stripe.SecretKey, "STRIPE_SECRET_KEY"},
		{&c.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET"},
		{&c.Stripe.PublishableKey, "STRIPE_PUBLISHABLE_KEY"},
		{&c.Stripe.ConnectedAccountID, "STRIPE_CONNECTED_ACCOUNT_ID"},
		{&c.Stripe.SellerKey, "SELLER_API_KEY"},
	} {
		if *v.dst == "" {
			*v.dst = os.Getenv(v.env)
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
	if pct := os.Getenv("PLATFORM_FEE_PERCENTAGE"); pct != "" && c.Fees.Percentage == "10" {
		c.Fees.Percentage = pct
	}
	if fixed := os.Getenv("PLATFORM_FIXED_FEE"); fixed != "" && c.Fees.Fixed == 0 {
		// Validated together with the rest of the fee policy.
		if v, err := decimal.NewFromString(fixed); err == nil && v.IsInteger() {
			c.Fees.Fixed = v.IntPart()
		} else {
			c.Fees.Fixed = -1
		}
	}
	if c.FrontendURL != "" && len(c.CORS.Origins) == 1 && c.CORS.Origins[0] == "*" {
		c.CORS.Origins = []string{c.FrontendURL}
	}
}

func (c *Config) validate() error {
	if c.Stripe.SecretKey == "" {
		return errors.New("stripe secret key is required: set STORE_STRIPE_SECRET_KEY or STRIPE_SECRET_KEY")
	}
	if c.Stripe.WebhookSecret == "" {
		return errors.New("stripe webhook secret is required: set STORE_STRIPE_WEBHOOK_SECRET or STRIPE_WEBHOOK_SECRET")
	}
	if _, err := c.FeePolicy(); err != nil {
		return err
	}
	return nil
}

// FeePolicy parses and validates the platform fee settings.
func (c *Config) FeePolicy() (payment.FeePolicy, error) {
	pct, err := decimal.NewFromString(c.Fees.Percentage)
	if err != nil {
		return payment.FeePolicy{}, errors.Wrapf(err, "parse fee percentage %q", c.Fees.Percentage)
	}
	p := payment.FeePolicy{Percentage: pct, Fixed: c.Fees.Fixed}
	if err := p.Validate(); err != nil {
		return payment.FeePolicy{}, errors.Wrap(err, "fee policy")
	}
	return p, nil
}
