// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Config はアプリケーション設定を表す。
type Config struct {
	Port               string
	DatabaseURL        string
	KMSKeyName         string
	SealSecret         string
	GoogleCloudProject string
	LogLevel           string

	// 呼び出し元の認可に使う参照UUID
	PrincipalA string
	PrincipalB string

	RSAKeyBits    int
	MaxBufferSize int

	OtelEnabled      bool
	OtelEndpoint     string
	OtelServiceName  string
	OtelSamplingRate float64
}

// Load は環境変数から設定を読み込む。
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        getEnv("DATABASE_URL", "sqlite:file:keymanager.db"),
		KMSKeyName:         os.Getenv("KMS_KEY_NAME"),
		SealSecret:         os.Getenv("SEAL_SECRET"),
		GoogleCloudProject: os.Getenv("GOOGLE_CLOUD_PROJECT"),
		LogLevel:           getEnv("LOG_LEVEL", "INFO"),
		PrincipalA:         os.Getenv("PRINCIPAL_A_UUID"),
		PrincipalB:         os.Getenv("PRINCIPAL_B_UUID"),
		RSAKeyBits:         getEnvInt("RSA_KEY_BITS", 2048),
		MaxBufferSize:      getEnvInt("MAX_BUFFER_SIZE", 1<<20),
		OtelEnabled:        getEnvBool("OTEL_ENABLED", false),
		OtelEndpoint:       getEnv("OTEL_ENDPOINT", "localhost:4317"),
		OtelServiceName:    getEnv("OTEL_SERVICE_NAME", "key-manager-service"),
		OtelSamplingRate:   getEnvFloat("OTEL_SAMPLING_RATE", 1.0),
	}
}

// Validate はサーバー起動に必要な設定を検証する。
func (c *Config) Validate() error {
	if c.KMSKeyName == "" && c.SealSecret == "" {
		return fmt.Errorf("either KMS_KEY_NAME or SEAL_SECRET is required")
	}
	if _, err := uuid.Parse(strings.TrimSpace(c.PrincipalA)); err != nil {
		return fmt.Errorf("PRINCIPAL_A_UUID: %w", err)
	}
	if _, err := uuid.Parse(strings.TrimSpace(c.PrincipalB)); err != nil {
		return fmt.Errorf("PRINCIPAL_B_UUID: %w", err)
	}
	if c.RSAKeyBits < 1024 || c.RSAKeyBits > 4096 {
		return fmt.Errorf("RSA_KEY_BITS must be between 1024 and 4096, got %d", c.RSAKeyBits)
	}
	if c.MaxBufferSize <= 0 {
		return fmt.Errorf("MAX_BUFFER_SIZE must be positive")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultVal
}
