package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env  string
	Port int

	CORS    CORSConfig
	Log     LogConfig
	Storage StorageConfig
	Uploads UploadsConfig
	Image   ImageConfig
	Janitor JanitorConfig
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig locates the persisted photo index and both asset directories.
// The public dir is expected to be served by a reverse proxy in deployment;
// the originals dir must never be exposed directly.
type StorageConfig struct {
	PublicUploadDir string
	OriginalsDir    string
	PhotosFile      string
}

// UploadsConfig holds validation parameters for the upload pipeline.
type UploadsConfig struct {
	DailyLimit     int
	MaxUploadBytes int64
	MinDimension   int
}

// ImageConfig bounds the normalized rendition.
type ImageConfig struct {
	MaxWidth    int
	MaxHeight   int
	WebPQuality float64
}

// JanitorConfig controls the background orphan sweep.
type JanitorConfig struct {
	Enabled  bool
	Interval time.Duration
	MinAge   time.Duration
	Workers  int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Storage = StorageConfig{
		PublicUploadDir: v.GetString("PUBLIC_UPLOAD_DIR"),
		OriginalsDir:    v.GetString("ORIGINALS_DIR"),
		PhotosFile:      v.GetString("PHOTOS_FILE"),
	}

	maxUpload := v.GetInt64("MAX_UPLOAD_SIZE")
	if maxUpload <= 0 {
		maxUpload = 20 * 1024 * 1024
	}
	cfg.Uploads = UploadsConfig{
		DailyLimit:     v.GetInt("DAILY_UPLOAD_LIMIT"),
		MaxUploadBytes: maxUpload,
		MinDimension:   v.GetInt("MIN_IMAGE_DIMENSION"),
	}

	cfg.Image = ImageConfig{
		MaxWidth:    v.GetInt("IMAGE_MAX_WIDTH"),
		MaxHeight:   v.GetInt("IMAGE_MAX_HEIGHT"),
		WebPQuality: v.GetFloat64("WEBP_QUALITY"),
	}

	cfg.Janitor = JanitorConfig{
		Enabled:  v.GetBool("JANITOR_ENABLED"),
		Interval: parseDuration(v.GetString("JANITOR_INTERVAL"), time.Hour),
		MinAge:   parseDuration(v.GetString("JANITOR_MIN_AGE"), 30*time.Minute),
		Workers:  v.GetInt("JANITOR_WORKERS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PUBLIC_UPLOAD_DIR", "./static/uploads")
	v.SetDefault("ORIGINALS_DIR", "./storage/originals")
	v.SetDefault("PHOTOS_FILE", "./photos.json")

	v.SetDefault("DAILY_UPLOAD_LIMIT", 20)
	v.SetDefault("MAX_UPLOAD_SIZE", 20*1024*1024)
	v.SetDefault("MIN_IMAGE_DIMENSION", 100)

	v.SetDefault("IMAGE_MAX_WIDTH", 1280)
	v.SetDefault("IMAGE_MAX_HEIGHT", 720)
	v.SetDefault("WEBP_QUALITY", 75)

	v.SetDefault("JANITOR_ENABLED", false)
	v.SetDefault("JANITOR_INTERVAL", "1h")
	v.SetDefault("JANITOR_MIN_AGE", "30m")
	v.SetDefault("JANITOR_WORKERS", 1)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
