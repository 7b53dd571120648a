package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv   string
	Addr     string
	LogLevel string
	LogDir   string

	ImageDir       string
	ImagePublicURL string

	RemoteAddr       string
	RemoteTimeout    time.Duration
	ClientID         string
	ModelFile        string
	ClipNames        [3]string
	WorkflowPath     string
	PromptTextPath   string
	StepsPath        string
	BackoffInitial   time.Duration
	BackoffMax       time.Duration
	DatabaseURL      string
	CORSOrigins      []string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "production"),
		Addr:             getEnv("SERVER_ADDR", "127.0.0.1:8080"),
		LogLevel:         getEnv("LOG_LEVEL", "INFO"),
		LogDir:           os.Getenv("LOG_DIR"),
		ImageDir:         os.Getenv("IMG_TEMP_PATH"),
		ImagePublicURL:   strings.TrimRight(os.Getenv("IMG_TMP_POINT"), "/"),
		RemoteAddr:       os.Getenv("SD3_BASE_SERVER"),
		RemoteTimeout:    time.Second * time.Duration(getEnvInt("SD3_HTTP_TIMEOUT_SECONDS", 60)),
		ClientID:         getEnv("SD3_CLIENT_ID", uuid.NewString()),
		ModelFile:        os.Getenv("SD3_MODEL_FILE_NAME"),
		ClipNames:        [3]string{os.Getenv("SD3_CLIP_NAME1"), os.Getenv("SD3_CLIP_NAME2"), os.Getenv("SD3_CLIP_NAME3")},
		WorkflowPath:     os.Getenv("WF_JSON_PATH"),
		PromptTextPath:   os.Getenv("WF_PROMPT_NODE_PATH"),
		StepsPath:        os.Getenv("WF_STEPS_NODE_PATH"),
		BackoffInitial:   time.Millisecond * time.Duration(getEnvInt("INGEST_BACKOFF_INITIAL_MS", 500)),
		BackoffMax:       time.Second * time.Duration(getEnvInt("INGEST_BACKOFF_MAX_SECONDS", 30)),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		CORSOrigins:      splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	required := []struct {
		key   string
		value string
	}{
		{"IMG_TEMP_PATH", cfg.ImageDir},
		{"IMG_TMP_POINT", cfg.ImagePublicURL},
		{"SD3_BASE_SERVER", cfg.RemoteAddr},
		{"SD3_MODEL_FILE_NAME", cfg.ModelFile},
		{"SD3_CLIP_NAME1", cfg.ClipNames[0]},
		{"SD3_CLIP_NAME2", cfg.ClipNames[1]},
		{"SD3_CLIP_NAME3", cfg.ClipNames[2]},
		{"WF_JSON_PATH", cfg.WorkflowPath},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, fmt.Errorf("%s is required", r.key)
		}
	}

	if cfg.RemoteTimeout <= 0 {
		return nil, fmt.Errorf("SD3_HTTP_TIMEOUT_SECONDS must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
