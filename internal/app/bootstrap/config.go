// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/tutorhub/tutorhub/internal/app/system/money"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for TutorHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: TUTORHUB_MONGO_URI, TUTORHUB_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "tutorhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "tutorhub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},

	// Payment gateway
	{Name: "stripe_secret_key", Default: "", Desc: "Stripe API secret key"},
	{Name: "stripe_webhook_secret", Default: "", Desc: "Stripe webhook signing secret"},

	// Billing policy
	{Name: "platform_fee_rate", Default: "0.10", Desc: "Platform cut of each paid invoice, in [0, 1)"},

	// Web client
	{Name: "client_base_url", Default: "http://localhost:3000", Desc: "Base URL of the web client for checkout redirects"},

	// Timeouts
	{Name: "gateway_timeout", Default: "30s", Desc: "Budget for outbound payment gateway calls (e.g., 30s, 1m)"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// It is called early in startup so that both WAFFLE and the app have
// access to configuration before any backends or handlers are built.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, TUTORHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "TUTORHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	feeRate, err := parseFeeRate(appValues.String("platform_fee_rate"))
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),

		StripeSecretKey:     appValues.String("stripe_secret_key"),
		StripeWebhookSecret: appValues.String("stripe_webhook_secret"),

		PlatformFeeRate: feeRate,

		ClientBaseURL: appValues.String("client_base_url"),

		GatewayTimeout: appValues.Duration("gateway_timeout", 30*time.Second),
	}

	return coreCfg, appCfg, nil
}

func parseFeeRate(s string) (float64, error) {
	var rate float64
	if _, err := fmt.Sscanf(s, "%f", &rate); err != nil {
		return 0, fmt.Errorf("platform_fee_rate %q is not a number: %w", s, err)
	}
	return rate, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// TutorHub validates the MongoDB URI and the fee rate early, and refuses
// to start in production without payment gateway credentials: a missing
// webhook secret would make every delivery fail signature verification.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if err := money.ValidateFeeRate(appCfg.PlatformFeeRate); err != nil {
		return err
	}

	if coreCfg.Env == "prod" {
		if appCfg.StripeSecretKey == "" {
			return fmt.Errorf("stripe_secret_key is required in production")
		}
		if appCfg.StripeWebhookSecret == "" {
			return fmt.Errorf("stripe_webhook_secret is required in production")
		}
	} else if appCfg.StripeSecretKey == "" {
		logger.Warn("stripe_secret_key is empty; gateway calls will fail until it is set")
	}

	return nil
}
