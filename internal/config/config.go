package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig holds runtime startup configuration loaded from YAML and the environment.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	Env            string                `yaml:"env"` // "development" | "production"
	DSN            string                `yaml:"-"`   // resolved MySQL DSN
	RedisURL       string                `yaml:"-"`   // resolved Redis URL
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	Throttle       ThrottleConfig        `yaml:"throttle"`
	JWTSecret      string                `yaml:"jwt_secret"`
	AdminID        string                `yaml:"admin_id"`
	AllowedOrigins []string              `yaml:"allowed_origins"`
	Paths          RuntimePathsConfig    `yaml:"paths"`
	GeoIPDB        string                `yaml:"geoip_db"`
	Discogs        DiscogsConfig         `yaml:"discogs"`
	S3             S3Config              `yaml:"s3"`
}

type DatabaseRuntimeConfig struct {
	DSN       string            `yaml:"dsn"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	Charset   string            `yaml:"charset"`
	ParseTime bool              `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type RedisRuntimeConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
}

// ThrottleConfig selects where login attempt records live.
type ThrottleConfig struct {
	Backend string `yaml:"backend"` // "memory" | "redis"
}

type RuntimePathsConfig struct {
	Logs string `yaml:"logs"`
}

// DiscogsConfig carries the external catalog credentials. The core treats them as opaque.
type DiscogsConfig struct {
	Token string `yaml:"token"`
}

// S3Config is the destination for offloaded backups.
type S3Config struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyle       bool   `yaml:"path_style"`
	Prefix          string `yaml:"prefix"`
}

// Load reads the YAML file at configPath (a missing file is not an error),
// applies environment overrides and validates the result.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := defaultAppConfig()
	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	applyEnv(&cfg, os.LookupEnv)
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	cfg := AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Database: DatabaseRuntimeConfig{
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Password:  defaultDBPassword,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		Throttle: ThrottleConfig{Backend: ThrottleBackendMemory},
		S3:       S3Config{Region: defaultS3Region, Prefix: defaultS3Prefix},
	}
	cfg.normalize()
	return cfg
}

// applyEnv overlays environment variables. lookup is os.LookupEnv outside tests.
func applyEnv(cfg *AppConfig, lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str(EnvJWTSecret, &cfg.JWTSecret)
	str(EnvAdminID, &cfg.AdminID)
	str(EnvDatabaseDSN, &cfg.Database.DSN)
	str(EnvRedisURL, &cfg.Redis.URL)
	str(EnvThrottle, &cfg.Throttle.Backend)
	str(EnvDiscogsToken, &cfg.Discogs.Token)
	str(EnvGeoIPDB, &cfg.GeoIPDB)
	str(EnvLogDir, &cfg.Paths.Logs)
	str(EnvS3Endpoint, &cfg.S3.Endpoint)
	str(EnvS3Region, &cfg.S3.Region)
	str(EnvS3Bucket, &cfg.S3.Bucket)
	str(EnvS3AccessKey, &cfg.S3.AccessKeyID)
	str(EnvS3SecretKey, &cfg.S3.SecretAccessKey)

	if v, ok := lookup(EnvPort); ok {
		if port, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Port = port
		}
	}
	if v, ok := lookup(EnvProduction); ok {
		if prod, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			if prod {
				cfg.Env = productionEnv
			} else {
				cfg.Env = defaultEnv
			}
		}
	}
	if v, ok := lookup(EnvAllowedOrigin); ok && strings.TrimSpace(v) != "" {
		cfg.AllowedOrigins = strings.Split(v, ",")
	}
}

func (c *AppConfig) normalize() {
	c.Env = normalizeEnv(c.Env)
	c.JWTSecret = strings.TrimSpace(c.JWTSecret)
	c.AdminID = strings.TrimSpace(c.AdminID)
	c.GeoIPDB = strings.TrimSpace(c.GeoIPDB)
	c.Throttle.Backend = strings.ToLower(strings.TrimSpace(c.Throttle.Backend))
	if c.Throttle.Backend == "" {
		c.Throttle.Backend = ThrottleBackendMemory
	}
	c.AllowedOrigins = normalizeOrigins(c.AllowedOrigins)
	c.Database = normalizeDatabaseConfig(c.Database)
	c.Redis = normalizeRedisConfig(c.Redis)
	c.S3 = normalizeS3Config(c.S3)
	c.DSN = c.Database.DSNValue()
	c.RedisURL = c.Redis.URLValue()
}

func (c *AppConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", c.Port)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database.port %d, expected 1-65535", c.Database.Port)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("invalid redis.db %d, expected >= 0", c.Redis.DB)
	}
	switch c.Throttle.Backend {
	case ThrottleBackendMemory, ThrottleBackendRedis:
	default:
		return fmt.Errorf("invalid throttle.backend %q, expected memory or redis", c.Throttle.Backend)
	}
	if c.IsProduction() && c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret (%s) is required in production", EnvJWTSecret)
	}
	return nil
}

func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(c.Env, defaultEnv)
}

// IsProduction drives the Secure flag of the session cookie.
func (c *AppConfig) IsProduction() bool {
	return strings.EqualFold(c.Env, productionEnv)
}

func (c *AppConfig) LogDir() string {
	if c == nil {
		return ResolveRuntimePath("", "logs")
	}
	return ResolveRuntimePath(c.Paths.Logs, "logs")
}

// S3Enabled reports whether backup offload has enough configuration to run.
func (c *AppConfig) S3Enabled() bool {
	return c.S3.Bucket != "" && c.S3.AccessKeyID != "" && c.S3.SecretAccessKey != ""
}
