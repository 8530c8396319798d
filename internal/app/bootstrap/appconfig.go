// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig handles framework-level settings (HTTP ports, TLS,
// logging, CORS, body limits); AppConfig is everything specific to this
// application: database connection, session cookies, the payment gateway
// credentials, and the billing policy knobs.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connection pool size
	MongoMinPoolSize uint64 // Min connection pool size

	// Session management configuration
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionName   string // Cookie name for sessions (default: tutorhub-session)
	SessionDomain string // Cookie domain (blank means current host)

	// Payment gateway configuration
	StripeSecretKey     string // Stripe API secret key
	StripeWebhookSecret string // Stripe webhook signing secret

	// Billing policy
	PlatformFeeRate float64 // Platform cut of each paid invoice, e.g. 0.10

	// Base URL of the web client, used to build checkout redirect URLs.
	ClientBaseURL string // e.g., "https://tutorhub.com" or "http://localhost:3000"

	// Outbound call budget for the payment gateway. Zero keeps the default.
	GatewayTimeout time.Duration
}
