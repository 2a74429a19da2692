package config

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 3000
	defaultEnv        = "development"
	productionEnv     = "production"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "dvinyl"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultRedisHost  = "localhost"
	defaultRedisPort  = 6379
	defaultRedisDB    = 0
	defaultS3Region   = "us-east-1"
	defaultS3Prefix   = "backups/"

	ThrottleBackendMemory = "memory"
	ThrottleBackendRedis  = "redis"
)

// Environment variables honored on top of the YAML file. Names follow the
// original deployment's .env file.
const (
	EnvJWTSecret     = "PASSJWT"
	EnvAdminID       = "ADMIN_ID"
	EnvProduction    = "PROD"
	EnvPort          = "VINYL_PORT"
	EnvDatabaseDSN   = "DATABASE_DSN"
	EnvRedisURL      = "REDIS_URL"
	EnvThrottle      = "THROTTLE_BACKEND"
	EnvDiscogsToken  = "DISCOGS_TOKEN"
	EnvGeoIPDB       = "GEOIP_DB"
	EnvS3Endpoint    = "S3_ENDPOINT"
	EnvS3Region      = "S3_REGION"
	EnvS3Bucket      = "S3_BUCKET"
	EnvS3AccessKey   = "S3_ACCESS_KEY_ID"
	EnvS3SecretKey   = "S3_SECRET_ACCESS_KEY"
	EnvLogDir        = "DVINYL_LOG_DIR"
	EnvAllowedOrigin = "ALLOWED_ORIGINS"
)
