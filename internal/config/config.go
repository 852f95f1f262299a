package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Store     StoreConfig
	Storage   StorageConfig
	Queue     QueueConfig
	Download  DownloadConfig
	Platforms PlatformsConfig
	RateLimit RateLimitConfig
	Auth      AuthConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string // "text" or "json"
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StoreConfig struct {
	Driver string // "redis" or "memory"
}

// StorageConfig describes an S3-compatible bucket (Cloudflare R2, MinIO, AWS).
type StorageConfig struct {
	Endpoint        string
	AccountID       string // R2 account, used to build the endpoint when Endpoint is empty
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	UsePathStyle    bool
}

type QueueConfig struct {
	Driver      string // "asynq" or "local"
	Concurrency int
	QueueName   string
}

type DownloadConfig struct {
	NetworkTimeout  time.Duration // per call, and idle time between chunks of a transfer
	UploadTimeout   time.Duration
	SignedURLExpiry time.Duration
	ProcessingDelay time.Duration
	MaxBytes        int64
	RecordTTL       time.Duration
}

type PlatformsConfig struct {
	VimeoBaseURL       string
	DailymotionBaseURL string
	BreakerFailures    int
	BreakerCooldown    time.Duration
}

type RateLimitConfig struct {
	SubmitPerHour int
}

type AuthConfig struct {
	Enabled   bool
	JWTSecret string
	Issuer    string // OIDC issuer; enables JWKS verification when set
	Audience  string
}

func Load() (*Config, error) {
	// A local .env is optional; real environment variables win
	_ = godotenv.Load()

	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("STORAGE_ACCESS_KEY_ID")
	readSecret("STORAGE_SECRET_ACCESS_KEY")
	readSecret("AUTH_JWT_SECRET")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.log_format", "LOG_FORMAT")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("store.driver", "STORE_DRIVER")
	_ = viper.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	_ = viper.BindEnv("storage.account_id", "STORAGE_ACCOUNT_ID")
	_ = viper.BindEnv("storage.region", "STORAGE_REGION")
	_ = viper.BindEnv("storage.access_key_id", "STORAGE_ACCESS_KEY_ID")
	_ = viper.BindEnv("storage.secret_access_key", "STORAGE_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("storage.bucket_name", "STORAGE_BUCKET_NAME")
	_ = viper.BindEnv("storage.use_path_style", "STORAGE_USE_PATH_STYLE")
	_ = viper.BindEnv("queue.driver", "QUEUE_DRIVER")
	_ = viper.BindEnv("queue.concurrency", "QUEUE_CONCURRENCY")
	_ = viper.BindEnv("queue.name", "QUEUE_NAME")
	_ = viper.BindEnv("download.network_timeout", "DOWNLOAD_NETWORK_TIMEOUT")
	_ = viper.BindEnv("download.upload_timeout", "DOWNLOAD_UPLOAD_TIMEOUT")
	_ = viper.BindEnv("download.signed_url_expiry", "DOWNLOAD_SIGNED_URL_EXPIRY")
	_ = viper.BindEnv("download.processing_delay", "DOWNLOAD_PROCESSING_DELAY")
	_ = viper.BindEnv("download.max_bytes", "DOWNLOAD_MAX_BYTES")
	_ = viper.BindEnv("download.record_ttl", "DOWNLOAD_RECORD_TTL")
	_ = viper.BindEnv("platforms.vimeo_base_url", "VIMEO_BASE_URL")
	_ = viper.BindEnv("platforms.dailymotion_base_url", "DAILYMOTION_BASE_URL")
	_ = viper.BindEnv("platforms.breaker_failures", "PLATFORM_BREAKER_FAILURES")
	_ = viper.BindEnv("platforms.breaker_cooldown", "PLATFORM_BREAKER_COOLDOWN")
	_ = viper.BindEnv("ratelimit.submit_per_hour", "RATELIMIT_SUBMIT_PER_HOUR")
	_ = viper.BindEnv("auth.enabled", "AUTH_ENABLED")
	_ = viper.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET")
	_ = viper.BindEnv("auth.issuer", "AUTH_ISSUER")
	_ = viper.BindEnv("auth.audience", "AUTH_AUDIENCE")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("server.log_format", "text")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("store.driver", "redis")

	// Storage defaults
	viper.SetDefault("storage.region", "auto")
	viper.SetDefault("storage.bucket_name", "downloads")
	viper.SetDefault("storage.use_path_style", false)

	// Queue defaults
	viper.SetDefault("queue.driver", "asynq")
	viper.SetDefault("queue.concurrency", 4)
	viper.SetDefault("queue.name", "downloads")

	// Download defaults
	viper.SetDefault("download.network_timeout", "60s")
	viper.SetDefault("download.upload_timeout", "30m")
	viper.SetDefault("download.signed_url_expiry", "60s")
	viper.SetDefault("download.processing_delay", "0s")
	viper.SetDefault("download.max_bytes", 0)
	viper.SetDefault("download.record_ttl", "168h")

	// Platform defaults
	viper.SetDefault("platforms.vimeo_base_url", "https://player.vimeo.com")
	viper.SetDefault("platforms.dailymotion_base_url", "https://www.dailymotion.com")
	viper.SetDefault("platforms.breaker_failures", 5)
	viper.SetDefault("platforms.breaker_cooldown", "30s")

	viper.SetDefault("ratelimit.submit_per_hour", 30)
	viper.SetDefault("auth.enabled", false)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			LogFormat: viper.GetString("server.log_format"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Store: StoreConfig{
			Driver: viper.GetString("store.driver"),
		},
		Storage: StorageConfig{
			Endpoint:        viper.GetString("storage.endpoint"),
			AccountID:       viper.GetString("storage.account_id"),
			Region:          viper.GetString("storage.region"),
			AccessKeyID:     viper.GetString("storage.access_key_id"),
			SecretAccessKey: viper.GetString("storage.secret_access_key"),
			BucketName:      viper.GetString("storage.bucket_name"),
			UsePathStyle:    viper.GetBool("storage.use_path_style"),
		},
		Queue: QueueConfig{
			Driver:      viper.GetString("queue.driver"),
			Concurrency: viper.GetInt("queue.concurrency"),
			QueueName:   viper.GetString("queue.name"),
		},
		Download: DownloadConfig{
			NetworkTimeout:  viper.GetDuration("download.network_timeout"),
			UploadTimeout:   viper.GetDuration("download.upload_timeout"),
			SignedURLExpiry: viper.GetDuration("download.signed_url_expiry"),
			ProcessingDelay: viper.GetDuration("download.processing_delay"),
			MaxBytes:        viper.GetInt64("download.max_bytes"),
			RecordTTL:       viper.GetDuration("download.record_ttl"),
		},
		Platforms: PlatformsConfig{
			VimeoBaseURL:       viper.GetString("platforms.vimeo_base_url"),
			DailymotionBaseURL: viper.GetString("platforms.dailymotion_base_url"),
			BreakerFailures:    viper.GetInt("platforms.breaker_failures"),
			BreakerCooldown:    viper.GetDuration("platforms.breaker_cooldown"),
		},
		RateLimit: RateLimitConfig{
			SubmitPerHour: viper.GetInt("ratelimit.submit_per_hour"),
		},
		Auth: AuthConfig{
			Enabled:   viper.GetBool("auth.enabled"),
			JWTSecret: viper.GetString("auth.jwt_secret"),
			Issuer:    viper.GetString("auth.issuer"),
			Audience:  viper.GetString("auth.audience"),
		},
	}

	return cfg, nil
}
