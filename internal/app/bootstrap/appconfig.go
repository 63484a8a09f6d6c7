// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig covers ports, TLS, log level and the like. AppConfig
// carries what grouphub itself needs: where the data lives, how callers are
// identified, and how hard mutations may be driven.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// AppPath is where the group API is mounted (e.g., /api/v1/groups).
	AppPath string

	// Identity
	JWTSecret            string // HS256 secret; blank trusts the gateway and skips verification
	TrustIdentityHeaders bool   // accept X-User-Id / X-User-Role from the gateway

	// Mutation rate limit per caller. JoinRateLimit <= 0 disables it.
	JoinRateLimit  int
	JoinRateWindow time.Duration

	// AuditLog is "all", "db", "log" or "off".
	AuditLog string

	// PageSize is the number of rows per listing page.
	PageSize int

	// OrphanSweepInterval is how often membership rows of deleted groups are
	// purged. Zero disables the sweep.
	OrphanSweepInterval time.Duration

	// Database operation timeouts. Zero keeps the built-in default.
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration
}
