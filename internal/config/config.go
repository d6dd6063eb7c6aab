package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// RegistryConfig holds all configuration for the registry service.
type RegistryConfig struct {
	Port            string
	DatabaseURL     string
	RedisURL        string
	AuthToken       string
	DeliveryTimeout time.Duration
}

// LoadRegistry reads registry configuration from the environment. A
// .env file in the working directory is loaded first if present.
func LoadRegistry() (*RegistryConfig, error) {
	godotenv.Load()

	port := getEnv("PORT", "8000")
	dbURL := getEnv("DATABASE_URL", "")
	redisURL := getEnv("REDIS_URL", "")
	authToken := getEnv("AUTH_TOKEN", "")
	timeoutSeconds := getEnvInt("DELIVERY_TIMEOUT_SECONDS", 10)

	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if authToken == "" {
		return nil, fmt.Errorf("AUTH_TOKEN is required")
	}

	return &RegistryConfig{
		Port:            port,
		DatabaseURL:     dbURL,
		RedisURL:        redisURL,
		AuthToken:       authToken,
		DeliveryTimeout: time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// ListenerConfig holds all configuration for the listener service.
type ListenerConfig struct {
	Port         string
	AdvertiseURL string
}

// LoadListener reads listener configuration from the environment.
func LoadListener() (*ListenerConfig, error) {
	godotenv.Load()

	port := getEnv("PORT", "8001")
	advertiseURL := getEnv("ADVERTISE_URL", "http://localhost:"+port)

	return &ListenerConfig{
		Port:         port,
		AdvertiseURL: advertiseURL,
	}, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
