package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultBind                 = ":8080"
	DefaultStorageRoot          = "/srv/gallery/uploads"
	DefaultMaxUploadBytes int64 = 2 << 30 // 2GiB
	DefaultPageSize             = 25
	DefaultFFmpegPath           = "ffmpeg"
)

type Config struct {
	Bind               string
	DBDSN              string
	StorageRoot        string
	MaxUploadBytes     int64
	DefaultPageSize    int
	FFmpegPath         string
	CORSAllowedOrigins []string
	LogLevel           string

	// Feature flags, enabled unless configured off.
	AdventureEnabled bool
	VideoEditEnabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Bind:               getenv("GALLERY_BIND", DefaultBind),
		StorageRoot:        getenv("GALLERY_STORAGE_ROOT", DefaultStorageRoot),
		MaxUploadBytes:     getInt64("GALLERY_MAX_UPLOAD_BYTES", DefaultMaxUploadBytes),
		DefaultPageSize:    getInt("GALLERY_DEFAULT_PAGE_SIZE", DefaultPageSize),
		FFmpegPath:         getenv("GALLERY_FFMPEG_PATH", DefaultFFmpegPath),
		CORSAllowedOrigins: splitAndTrim(os.Getenv("GALLERY_CORS_ALLOWED_ORIGINS")),
		LogLevel:           os.Getenv("GALLERY_LOG_LEVEL"),
		AdventureEnabled:   getBool("GALLERY_FEATURE_ADVENTURE", true),
		VideoEditEnabled:   getBool("GALLERY_FEATURE_VIDEO_EDIT", true),
	}

	cfg.DBDSN = os.Getenv("GALLERY_DB_DSN")
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("GALLERY_DB_DSN is required")
	}

	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("GALLERY_MAX_UPLOAD_BYTES must be positive")
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = DefaultPageSize
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		return v == "1" || v == "true" || v == "yes" || v == "y"
	}
	return def
}

func splitAndTrim(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
