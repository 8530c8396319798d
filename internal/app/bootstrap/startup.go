// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"github.com/tutorhub/tutorhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It is
// the place to apply config-driven runtime settings that handlers read
// later.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{Gateway: appCfg.GatewayTimeout})

	logger.Info("billing configuration",
		zap.Float64("platform_fee_rate", appCfg.PlatformFeeRate),
		zap.Duration("gateway_timeout", timeouts.Gateway()))
	return nil
}
