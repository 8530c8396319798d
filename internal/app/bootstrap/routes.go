// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	enrollmentsfeature "github.com/tutorhub/tutorhub/internal/app/features/enrollments"
	healthfeature "github.com/tutorhub/tutorhub/internal/app/features/health"
	webhooksfeature "github.com/tutorhub/tutorhub/internal/app/features/webhooks"
	enrollmentstore "github.com/tutorhub/tutorhub/internal/app/store/enrollments"
	groupstore "github.com/tutorhub/tutorhub/internal/app/store/groups"
	userstore "github.com/tutorhub/tutorhub/internal/app/store/users"
	"github.com/tutorhub/tutorhub/internal/app/system/auth"
	"github.com/tutorhub/tutorhub/internal/app/system/notify"
	"github.com/tutorhub/tutorhub/internal/app/system/payment"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. The payment gateway is built once here
// and injected into both the enrollment service and the webhook engine;
// nothing else in the app touches the provider SDK.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	gateway := payment.NewStripeGateway(appCfg.StripeSecretKey, appCfg.StripeWebhookSecret, logger)
	notifier := notify.NewLogSink(logger)

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if logged in.
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Enrollment purchase flow (checkout, list, cancel, renew)
	enrollmentsHandler := enrollmentsfeature.NewHandler(deps.MongoDatabase, gateway, appCfg.ClientBaseURL, logger)
	r.Mount("/enrollments", enrollmentsfeature.Routes(enrollmentsHandler))

	// Billing reconciliation: gateway webhook deliveries
	engine := webhooksfeature.NewEngine(
		gateway,
		userstore.New(deps.MongoDatabase),
		groupstore.New(deps.MongoDatabase),
		enrollmentstore.New(deps.MongoDatabase),
		appCfg.PlatformFeeRate,
		notifier,
		logger,
	)
	webhooksHandler := webhooksfeature.NewHandler(gateway, engine, logger)
	r.Mount("/webhooks", webhooksfeature.Routes(webhooksHandler))

	return r, nil
}
