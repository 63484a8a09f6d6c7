// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/grouphub/internal/app/system/paging"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for grouphub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, app_path, etc.
//   - Environment variables: GROUPHUB_MONGO_URI, GROUPHUB_APP_PATH, etc.
//   - Command-line flags: --mongo_uri, --app_path, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "grouphub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	{Name: "app_path", Default: "/api/v1/groups", Desc: "Path the group API is mounted at"},

	// Identity
	{Name: "jwt_secret", Default: "", Desc: "HS256 secret for bearer tokens (blank: trust the gateway, parse unverified)"},
	{Name: "trust_identity_headers", Default: false, Desc: "Accept X-User-Id / X-User-Role headers from the gateway"},

	// Rate limiting
	{Name: "join_rate_limit", Default: 30, Desc: "Mutations allowed per caller per window (0 disables)"},
	{Name: "join_rate_window", Default: "1m", Desc: "Rate limit window (e.g., 1m, 30s)"},

	// Audit logging
	{Name: "audit_log", Default: "all", Desc: "Group event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	{Name: "page_size", Default: paging.PageSize, Desc: "Rows per listing page"},
	{Name: "orphan_sweep_interval", Default: "1h", Desc: "How often to purge memberships of deleted groups (0 disables)"},

	// Timeouts
	{Name: "timeout_short", Default: "", Desc: "Timeout for single-document operations (e.g., 5s)"},
	{Name: "timeout_medium", Default: "", Desc: "Timeout for listings and multi-step writes (e.g., 10s)"},
	{Name: "timeout_long", Default: "", Desc: "Timeout for cascading deletes (e.g., 30s)"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges .env files, config files,
// GROUPHUB_* environment variables and flags with precedence
// flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "GROUPHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		AppPath: normalizeAppPath(appValues.String("app_path")),

		JWTSecret:            appValues.String("jwt_secret"),
		TrustIdentityHeaders: appValues.Bool("trust_identity_headers"),

		JoinRateLimit:  appValues.Int("join_rate_limit"),
		JoinRateWindow: appValues.Duration("join_rate_window", time.Minute),

		AuditLog: strings.ToLower(strings.TrimSpace(appValues.String("audit_log"))),
		PageSize: appValues.Int("page_size"),

		OrphanSweepInterval: appValues.Duration("orphan_sweep_interval", time.Hour),

		TimeoutShort:  appValues.Duration("timeout_short", 0),
		TimeoutMedium: appValues.Duration("timeout_medium", 0),
		TimeoutLong:   appValues.Duration("timeout_long", 0),
	}

	return coreCfg, appCfg, nil
}

// normalizeAppPath returns p with a leading slash and no trailing slash.
func normalizeAppPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimRight(p, "/")
}

// ValidateConfig performs app-specific config validation.
//
// The MongoDB URI format is checked here to catch configuration errors
// before attempting to connect.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if strings.TrimSpace(appCfg.MongoDatabase) == "" {
		return fmt.Errorf("mongo_database is required")
	}
	if appCfg.MongoMinPoolSize > appCfg.MongoMaxPoolSize {
		return fmt.Errorf("mongo_min_pool_size (%d) exceeds mongo_max_pool_size (%d)",
			appCfg.MongoMinPoolSize, appCfg.MongoMaxPoolSize)
	}

	switch appCfg.AuditLog {
	case "all", "db", "log", "off":
	default:
		return fmt.Errorf("audit_log must be one of all, db, log, off (got %q)", appCfg.AuditLog)
	}

	if appCfg.PageSize < 1 || appCfg.PageSize > paging.MaxPageSize {
		return fmt.Errorf("page_size must be between 1 and %d (got %d)", paging.MaxPageSize, appCfg.PageSize)
	}
	if appCfg.JoinRateLimit > 0 && appCfg.JoinRateWindow <= 0 {
		return fmt.Errorf("join_rate_window must be positive when join_rate_limit is set")
	}
	if appCfg.OrphanSweepInterval < 0 {
		return fmt.Errorf("orphan_sweep_interval must not be negative")
	}
	if appCfg.JWTSecret == "" && !appCfg.TrustIdentityHeaders {
		env := ""
		if coreCfg != nil {
			env = coreCfg.Env
		}
		logger.Warn("bearer tokens will not be verified; jwt_secret is blank and trust_identity_headers is off",
			zap.String("env", env))
	}

	return nil
}
