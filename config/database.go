package config

import "time"

// ArchiveConfig contains the PostgreSQL log archive configuration. The
// archive is optional: with Enabled=false the client keeps logs in memory
// only.
type ArchiveConfig struct {
	Enabled  bool   `env:"ENABLED"  envDefault:"false"`
	Host     string `env:"DB_HOST"  envDefault:"localhost"`
	Port     int    `env:"DB_PORT"  envDefault:"5432"`
	User     string `env:"DB_USER"  envDefault:"campaignsync"`
	Password string `env:"DB_PASSWORD" envDefault:"campaignsync"`
	Name     string `env:"DB_NAME"  envDefault:"campaignsync"`
	// SSLMode should be 'disable' for local dev and 'require' in production.
	SSLMode string `env:"DB_SSL_MODE" envDefault:"disable"`
}

// CacheConfig contains the Redis snapshot cache configuration. The cache is
// optional: with Enabled=false the client cold-starts with empty registries.
type CacheConfig struct {
	Enabled       bool   `env:"ENABLED"        envDefault:"false"`
	RedisAddr     string `env:"REDIS_ADDR"     envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB"       envDefault:"0"`

	// SnapshotTTL bounds how long a cached snapshot is considered worth
	// warm-starting from.
	SnapshotTTL time.Duration `env:"SNAPSHOT_TTL" envDefault:"24h"`
}
