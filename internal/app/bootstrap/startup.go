// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"sync"

	"github.com/dalemusser/grouphub/internal/app/services/membership"
	"github.com/dalemusser/grouphub/internal/app/store/audit"
	"github.com/dalemusser/grouphub/internal/app/system/auditlog"
	"github.com/dalemusser/grouphub/internal/app/system/timeouts"
	"github.com/dalemusser/grouphub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

type stopper interface{ Stop() }

// Background workers started during startup, stopped by Shutdown.
var (
	backgroundMu sync.Mutex
	background   []stopper
)

func track(s stopper) {
	backgroundMu.Lock()
	background = append(background, s)
	backgroundMu.Unlock()
}

func stopBackground() {
	backgroundMu.Lock()
	defer backgroundMu.Unlock()
	for _, s := range background {
		s.Stop()
	}
	background = nil
}

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Long:   appCfg.TimeoutLong,
	})

	if appCfg.OrphanSweepInterval > 0 && deps.GroupHubMongoDatabase != nil {
		db := deps.GroupHubMongoDatabase
		al := auditlog.New(audit.New(db), logger, auditlog.Config{Mode: appCfg.AuditLog})
		sweep := workers.NewOrphanSweep(membership.New(db, al, logger, appCfg.PageSize), logger, appCfg.OrphanSweepInterval)
		sweep.Start()
		track(sweep)
	}

	cur := timeouts.Current()
	logger.Info("grouphub ready",
		zap.String("app_path", appCfg.AppPath),
		zap.String("audit_log", appCfg.AuditLog),
		zap.Int("page_size", appCfg.PageSize),
		zap.Int("join_rate_limit", appCfg.JoinRateLimit),
		zap.Duration("join_rate_window", appCfg.JoinRateWindow),
		zap.Duration("orphan_sweep_interval", appCfg.OrphanSweepInterval),
		zap.Bool("jwt_verified", appCfg.JWTSecret != ""),
		zap.Bool("trust_identity_headers", appCfg.TrustIdentityHeaders),
		zap.Duration("timeout_short", cur.Short),
		zap.Duration("timeout_medium", cur.Medium),
		zap.Duration("timeout_long", cur.Long))
	return nil
}
