// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	errorsfeature "github.com/dalemusser/grouphub/internal/app/features/errors"
	groupsfeature "github.com/dalemusser/grouphub/internal/app/features/groups"
	healthfeature "github.com/dalemusser/grouphub/internal/app/features/health"
	"github.com/dalemusser/grouphub/internal/app/services/membership"
	"github.com/dalemusser/grouphub/internal/app/services/registry"
	"github.com/dalemusser/grouphub/internal/app/store/audit"
	"github.com/dalemusser/grouphub/internal/app/system/auditlog"
	"github.com/dalemusser/grouphub/internal/app/system/auth"
	"github.com/dalemusser/grouphub/internal/app/system/ratelimit"
	"github.com/dalemusser/grouphub/internal/app/system/requestid"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed. The services are built once here and
// shared by every request.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.GroupHubMongoDatabase

	authn := auth.New(auth.Config{
		JWTSecret:    appCfg.JWTSecret,
		TrustHeaders: appCfg.TrustIdentityHeaders,
	}, logger)

	al := auditlog.New(audit.New(db), logger, auditlog.Config{Mode: appCfg.AuditLog})
	reg := registry.New(db, al, logger, appCfg.PageSize)
	mem := membership.New(db, al, logger, appCfg.PageSize)

	var limiter *ratelimit.Limiter
	if appCfg.JoinRateLimit > 0 {
		limiter = ratelimit.New(appCfg.JoinRateLimit, appCfg.JoinRateWindow)
		track(limiter)
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)

	errorsHandler := errorsfeature.NewHandler()
	r.NotFound(errorsHandler.NotFound)
	r.MethodNotAllowed(errorsHandler.MethodNotAllowed)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.GroupHubMongoClient, "grouphub", logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	groupsHandler := groupsfeature.NewHandler(reg, mem, logger)
	r.Mount(appCfg.AppPath, groupsfeature.Routes(groupsHandler, authn, limiter))

	return r, nil
}
