package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP Configuration
	HTTPAddr         string
	AllowedPostHosts []string

	// Model Configuration
	ModelName   string
	ModelPath   string
	ModelURL    string
	ModelDevice string
	Threads     int
	BeamSize    int
	WhisperBin  string

	// Normalization Configuration
	FFmpegBin     string
	FFmpegTimeout time.Duration

	// Pipeline Limits
	MaxUploadBytes int64
	MaxConcurrent  int

	// Outcome Log Configuration
	LogStoreEnabled    bool
	DBPath             string
	MaxLogPayloadChars int

	// NATS Configuration (transport disabled when NatsURL is empty)
	NatsURL     string
	Stream      string
	Subject     string
	Durable     string
	MaxMsgs     int
	MaxAge      time.Duration
	Concurrency int

	// Data Directory Configuration
	DataDir string
}

func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			slog.Warn("Could not load env file", "file", envFile, "error", err)
		} else {
			slog.Info("Environment loaded", "file", envFile)
		}
	}

	return &Config{
		HTTPAddr:         getEnv("HTTP_ADDR", ":8081"),
		AllowedPostHosts: splitHosts(getEnv("ALLOWED_POST_HOSTS", "127.0.0.1,::1")),

		ModelName:   getEnv("MODEL_NAME", "small"),
		ModelPath:   getEnv("MODEL_PATH", "data/models/ggml-small.bin"),
		ModelURL:    getEnv("MODEL_URL", ""),
		ModelDevice: getEnv("MODEL_DEVICE", "cpu"),
		Threads:     getEnvInt("MODEL_THREADS", 4),
		BeamSize:    getEnvInt("BEAM_SIZE", 5),
		WhisperBin:  getEnv("WHISPER_BIN", "whisper-cli"),

		FFmpegBin:     getEnv("FFMPEG_BIN", "ffmpeg"),
		FFmpegTimeout: time.Duration(getEnvInt("FFMPEG_TIMEOUT_SECONDS", 45)) * time.Second,

		MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", 25*1024*1024),
		MaxConcurrent:  getEnvInt("MAX_CONCURRENT_TRANSCRIBES", 1),

		LogStoreEnabled:    getEnvBool("LOG_STORE_ENABLED", true),
		DBPath:             getEnv("DB_PATH", "data/requests.sqlite"),
		MaxLogPayloadChars: getEnvInt("MAX_LOG_PAYLOAD_CHARS", 20000),

		NatsURL:     getEnv("NATS_URL", ""),
		Stream:      getEnv("STREAM_NAME", "STT"),
		Subject:     getEnv("SUBJECT", "transcribe.request.*"),
		Durable:     getEnv("QUEUE_DURABLE", "stt-wq"),
		MaxMsgs:     getEnvInt("QUEUE_MAX_MSGS", 2000),
		MaxAge:      getEnvDuration("QUEUE_MAX_AGE", "30s"),
		Concurrency: getEnvInt("WORKER_CONCURRENCY", 2),

		DataDir: getEnv("DATA_DIR", "data"),
	}, nil
}

// OriginAllowed reports whether the given peer host may issue write requests.
// A single "*" entry disables the filter.
func (c *Config) OriginAllowed(host string) bool {
	for _, h := range c.AllowedPostHosts {
		if h == "*" || h == host {
			return true
		}
	}
	return false
}

func splitHosts(s string) []string {
	var hosts []string
	for _, part := range strings.Split(s, ",") {
		if h := strings.TrimSpace(part); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key, defaultVal string) time.Duration {
	val := getEnv(key, defaultVal)
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	d, _ := time.ParseDuration(defaultVal)
	return d
}
