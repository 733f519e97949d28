package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ytsprites/api/internal/model"
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

// uploadEnvelopeMB is added on top of the video limit for multipart overhead
const uploadEnvelopeMB = 5

type Config struct {
	Server    ServerConfig
	Queue     QueueConfig
	Workspace WorkspaceConfig
	Sprites   SpritesConfig
	FFmpeg    FFmpegConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Storage   StorageConfig
	Info      InfoConfig
}

type ServerConfig struct {
	Port        string
	LogLevel    string
	LogFormat   string
	BodyLimitMB int
}

type QueueConfig struct {
	MaxSize     int
	Workers     int
	IdleBackoff time.Duration
	Retention   time.Duration
}

type WorkspaceConfig struct {
	TmpDir string
}

type SpritesConfig struct {
	StepSec    float64
	Columns    int
	Rows       int
	Format     string
	Quality    int
	TileWidth  int
	TileHeight int
}

type FFmpegConfig struct {
	Binary  string
	Timeout time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	SubmitPerHour int
}

type StorageConfig struct {
	Endpoint        string
	Region          string
	BucketName      string
	AccessKeyID     string
	SecretAccessKey string
	PublicURL       string
	Prefix          string
}

// Enabled reports whether result archiving is configured
func (s StorageConfig) Enabled() bool {
	return s.BucketName != "" && s.AccessKeyID != "" && s.SecretAccessKey != ""
}

type InfoConfig struct {
	Labels map[string]string
}

// BodyLimitBytes is the maximum accepted request body size
func (c *Config) BodyLimitBytes() int {
	return (c.Server.BodyLimitMB + uploadEnvelopeMB) * 1024 * 1024
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("STORAGE_ACCESS_KEY_ID")
	readSecret("STORAGE_SECRET_ACCESS_KEY")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables
	v.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.log_format", "LOG_FORMAT")
	_ = v.BindEnv("server.body_limit_mb", "MAX_VIDEO_SIZE_MB")
	_ = v.BindEnv("queue.max_size", "MAX_QUEUE_SIZE")
	_ = v.BindEnv("queue.workers", "MAX_WORKERS")
	_ = v.BindEnv("queue.idle_backoff", "QUEUE_IDLE_BACKOFF")
	_ = v.BindEnv("queue.retention", "JOB_RETENTION")
	_ = v.BindEnv("workspace.tmp_dir", "TMP_DIR")
	_ = v.BindEnv("sprites.step_sec", "SPRITES_STEP_SEC")
	_ = v.BindEnv("sprites.columns", "SPRITES_COLUMNS")
	_ = v.BindEnv("sprites.rows", "SPRITES_ROWS")
	_ = v.BindEnv("sprites.format", "SPRITES_FORMAT")
	_ = v.BindEnv("sprites.quality", "SPRITES_QUALITY")
	_ = v.BindEnv("sprites.tile_width", "SPRITES_TILE_WIDTH")
	_ = v.BindEnv("sprites.tile_height", "SPRITES_TILE_HEIGHT")
	_ = v.BindEnv("ffmpeg.binary", "FFMPEG_BIN")
	_ = v.BindEnv("ffmpeg.timeout", "FFMPEG_TIMEOUT")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("ratelimit.submit_per_hour", "RATELIMIT_SUBMIT_PER_HOUR")
	_ = v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	_ = v.BindEnv("storage.region", "STORAGE_REGION")
	_ = v.BindEnv("storage.bucket_name", "STORAGE_BUCKET_NAME")
	_ = v.BindEnv("storage.access_key_id", "STORAGE_ACCESS_KEY_ID")
	_ = v.BindEnv("storage.secret_access_key", "STORAGE_SECRET_ACCESS_KEY")
	_ = v.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")
	_ = v.BindEnv("storage.prefix", "STORAGE_PREFIX")
	_ = v.BindEnv("info.labels", "INFO_LABELS")

	// Defaults
	v.SetDefault("server.port", "60051")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.body_limit_mb", 500)
	v.SetDefault("queue.max_size", 100)
	v.SetDefault("queue.workers", 2)
	v.SetDefault("queue.idle_backoff", time.Second)
	v.SetDefault("queue.retention", time.Hour)
	v.SetDefault("workspace.tmp_dir", "")

	// Sprite defaults
	v.SetDefault("sprites.step_sec", 2.0)
	v.SetDefault("sprites.columns", 10)
	v.SetDefault("sprites.rows", 10)
	v.SetDefault("sprites.format", "jpg")
	v.SetDefault("sprites.quality", 70)
	v.SetDefault("sprites.tile_width", 160)
	v.SetDefault("sprites.tile_height", 90)

	v.SetDefault("ffmpeg.binary", "ffmpeg")
	v.SetDefault("ffmpeg.timeout", time.Duration(0))

	// Redis is optional; an empty address disables rate limiting
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("ratelimit.submit_per_hour", 60)

	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.prefix", "sprites")
	v.SetDefault("info.labels", "env=production")

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:        v.GetString("server.port"),
			LogLevel:    v.GetString("server.log_level"),
			LogFormat:   v.GetString("server.log_format"),
			BodyLimitMB: v.GetInt("server.body_limit_mb"),
		},
		Queue: QueueConfig{
			MaxSize:     v.GetInt("queue.max_size"),
			Workers:     v.GetInt("queue.workers"),
			IdleBackoff: v.GetDuration("queue.idle_backoff"),
			Retention:   v.GetDuration("queue.retention"),
		},
		Workspace: WorkspaceConfig{
			TmpDir: v.GetString("workspace.tmp_dir"),
		},
		Sprites: SpritesConfig{
			StepSec:    v.GetFloat64("sprites.step_sec"),
			Columns:    v.GetInt("sprites.columns"),
			Rows:       v.GetInt("sprites.rows"),
			Format:     strings.ToLower(v.GetString("sprites.format")),
			Quality:    v.GetInt("sprites.quality"),
			TileWidth:  v.GetInt("sprites.tile_width"),
			TileHeight: v.GetInt("sprites.tile_height"),
		},
		FFmpeg: FFmpegConfig{
			Binary:  v.GetString("ffmpeg.binary"),
			Timeout: v.GetDuration("ffmpeg.timeout"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		RateLimit: RateLimitConfig{
			SubmitPerHour: v.GetInt("ratelimit.submit_per_hour"),
		},
		Storage: StorageConfig{
			Endpoint:        v.GetString("storage.endpoint"),
			Region:          v.GetString("storage.region"),
			BucketName:      v.GetString("storage.bucket_name"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			PublicURL:       v.GetString("storage.public_url"),
			Prefix:          v.GetString("storage.prefix"),
		},
		Info: InfoConfig{
			Labels: parseLabels(v.GetString("info.labels")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	if c.Queue.Workers <= 0 {
		return fmt.Errorf("queue.workers must be positive, got %d", c.Queue.Workers)
	}
	if c.Queue.MaxSize <= 0 {
		return fmt.Errorf("queue.max_size must be positive, got %d", c.Queue.MaxSize)
	}
	if c.Queue.IdleBackoff <= 0 {
		return fmt.Errorf("queue.idle_backoff must be positive, got %s", c.Queue.IdleBackoff)
	}
	if c.Server.BodyLimitMB <= 0 {
		return fmt.Errorf("server.body_limit_mb must be positive, got %d", c.Server.BodyLimitMB)
	}
	if c.Sprites.TileWidth <= 0 || c.Sprites.TileHeight <= 0 {
		return fmt.Errorf("sprite tile size must be positive, got %dx%d", c.Sprites.TileWidth, c.Sprites.TileHeight)
	}
	if c.Sprites.StepSec <= 0 {
		return fmt.Errorf("sprites.step_sec must be positive, got %v", c.Sprites.StepSec)
	}
	if c.Sprites.Columns <= 0 || c.Sprites.Rows <= 0 {
		return fmt.Errorf("sprite grid must be positive, got %dx%d", c.Sprites.Columns, c.Sprites.Rows)
	}
	if c.Sprites.Quality < 1 || c.Sprites.Quality > 100 {
		return fmt.Errorf("sprites.quality must be within 1..100, got %d", c.Sprites.Quality)
	}
	if !model.IsValidFormat(c.Sprites.Format) {
		return fmt.Errorf("unsupported sprites.format %q", c.Sprites.Format)
	}
	if c.FFmpeg.Timeout < 0 {
		return fmt.Errorf("ffmpeg.timeout must not be negative")
	}
	return nil
}

// parseLabels turns "k1=v1,k2=v2" into a map
func parseLabels(raw string) map[string]string {
	labels := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		labels[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return labels
}
