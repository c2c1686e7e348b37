package app

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var platformEnv = []string{
	"PORT", "DATABASE_URL", "REDIS_URL", "FRONTEND_URL",
	"STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET", "STRIPE_PUBLISHABLE_KEY", "STRIPE_CONNECTED_ACCOUNT_ID", "SELLER_API_KEY",
	"PLATFORM_FEE_PERCENTAGE", "PLATFORM_FIXED_FEE",
}

func testLoad(t *testing.T, env map[string]string) (*Config, error) {
	t.Helper()
	for _, k := range platformEnv {
		t.Setenv(k, "")
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
	acfg := loaderConfig()
	acfg.SkipFiles = true
	acfg.SkipFlags = true
	return loadConfig(acfg)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := testLoad(t, map[string]string{
		"STORE_STRIPE_SECRET_KEY":     "sk_test_1",
		"STORE_STRIPE_WEBHOOK_SECRET": "whsec_1",
	})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.Equal(t, "data/products.json", cfg.Catalog.Path)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.RedisURL)
	assert.Empty(t, cfg.AMQP.URL)
	assert.Equal(t, "checkout", cfg.AMQP.Exchange)
	assert.Equal(t, 30*time.Second, cfg.Lock.TTL)
	assert.Equal(t, time.Minute, cfg.Lock.SweepInterval)
	assert.Equal(t, 10*time.Minute, cfg.Checkout.IdempotencyWindow)
	assert.Equal(t, 10, cfg.Checkout.RateLimit)
	assert.Equal(t, 100, cfg.RateLimit.Max)
	assert.Equal(t, 15*time.Second, cfg.Stripe.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Stripe.WebhookTolerance)
	assert.Equal(t, uint32(5), cfg.Stripe.Breaker.Failures)
	assert.Equal(t, []string{"*"}, cfg.CORS.Origins)

	fees, err := cfg.FeePolicy()
	require.NoError(t, err)
	assert.True(t, fees.Percentage.Equal(decimal.NewFromInt(10)))
	assert.Zero(t, fees.Fixed)
}

func TestLoadConfig_PlatformEnv(t *testing.T) {
	cfg, err := testLoad(t, map[string]string{
		"PORT":                        "9090",
		"DATABASE_URL":                "postgres://localhost/store",
		"REDIS_URL":                   "redis://localhost:6379/0",
		"FRONTEND_URL":                "https://shop.example.com",
		"STRIPE_SECRET_KEY":           "sk_test_platform",
		"STRIPE_WEBHOOK_SECRET":       "whsec_platform",
		"STRIPE_PUBLISHABLE_KEY":      "pk_test_platform",
		"STRIPE_CONNECTED_ACCOUNT_ID": "acct_seller",
		"SELLER_API_KEY":              "seller-secret",
		"PLATFORM_FEE_PERCENTAGE":     "7.5",
		"PLATFORM_FIXED_FEE":          "30",
	})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
	assert.Equal(t, "postgres://localhost/store", cfg.DatabaseURL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, "sk_test_platform", cfg.Stripe.SecretKey)
	assert.Equal(t, "whsec_platform", cfg.Stripe.WebhookSecret)
	assert.Equal(t, "pk_test_platform", cfg.Stripe.PublishableKey)
	assert.Equal(t, "acct_seller", cfg.Stripe.ConnectedAccountID)
	assert.Equal(t, "seller-secret", cfg.Stripe.SellerKey)
	assert.Equal(t, []string{"https://shop.example.com"}, cfg.CORS.Origins)

	fees, err := cfg.FeePolicy()
	require.NoError(t, err)
	assert.True(t, fees.Percentage.Equal(decimal.RequireFromString("7.5")))
	assert.Equal(t, int64(30), fees.Fixed)
}

func TestLoadConfig_PrefixedWins(t *testing.T) {
	cfg, err := testLoad(t, map[string]string{
		"STORE_STRIPE_SECRET_KEY":     "sk_test_prefixed",
		"STRIPE_SECRET_KEY":           "sk_test_platform",
		"STORE_STRIPE_WEBHOOK_SECRET": "whsec_1",
		"STORE_ADDR":                  "127.0.0.1:7000",
		"PORT":                        "9090",
	})
	require.NoError(t, err)
	assert.Equal(t, "sk_test_prefixed", cfg.Stripe.SecretKey)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
}

func TestLoadConfig_Invalid(t *testing.T) {
	base := map[string]string{
		"STRIPE_SECRET_KEY":     "sk_test_1",
		"STRIPE_WEBHOOK_SECRET": "whsec_1",
	}
	with := func(k, v string) map[string]string {
		env := map[string]string{k: v}
		for bk, bv := range base {
			if bk != k {
				env[bk] = bv
			}
		}
		return env
	}
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "NoSecretKey", env: with("STRIPE_SECRET_KEY", ""), wantErr: "stripe secret key is required"},
		{name: "NoWebhookSecret", env: with("STRIPE_WEBHOOK_SECRET", ""), wantErr: "stripe webhook secret is required"},
		{name: "FeeAbove100", env: with("PLATFORM_FEE_PERCENTAGE", "150"), wantErr: "fee policy"},
		{name: "NegativeFee", env: with("PLATFORM_FEE_PERCENTAGE", "-1"), wantErr: "fee policy"},
		{name: "FeeNotNumber", env: with("PLATFORM_FEE_PERCENTAGE", "ten"), wantErr: "parse fee percentage"},
		{name: "NegativeFixedFee", env: with("PLATFORM_FIXED_FEE", "-5"), wantErr: "fee policy"},
		{name: "FractionalFixedFee", env: with("PLATFORM_FIXED_FEE", "1.5"), wantErr: "fee policy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testLoad(t, tt.env)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
