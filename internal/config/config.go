package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env  string
	Port int

	// empty DBURL means the in-memory store
	DBURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// operator identity for chat commands and API login
	OperatorUserID   int64
	OperatorChatID   int64
	OperatorEmail    string
	OperatorPassword string
	JWTSecret        string
	AccessTTL        time.Duration

	SessionTTL time.Duration

	OTLPEndpoint string
}

func Load() Config {
	env := getEnv("APP_ENV", "dev")
	port := getEnvInt("PORT", 8080)

	return Config{
		Env:   env,
		Port:  port,
		DBURL: dbURL(),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		OperatorUserID:   getEnvInt64("OPERATOR_USER_ID", 0),
		OperatorChatID:   getEnvInt64("OPERATOR_CHAT_ID", 0),
		OperatorEmail:    getEnv("OPERATOR_EMAIL", "operator@arenadesk.local"),
		OperatorPassword: getEnv("OPERATOR_PASSWORD", ""),
		JWTSecret:        getEnv("JWT_SECRET", "dev-secret-change-me"),
		AccessTTL:        getEnvDuration("ACCESS_TTL", 15*time.Minute),

		SessionTTL: getEnvDuration("SESSION_TTL", 10*time.Minute),

		OTLPEndpoint: getEnv("OTLP_ENDPOINT", ""),
	}
}

func dbURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}

	host := getEnv("DB_HOST", "")
	if host == "" {
		return ""
	}

	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "arenadesk")
	pass := getEnv("DB_PASSWORD", "arenadesk")
	name := getEnv("DB_NAME", "arenadesk")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.ParseInt(v, 10, 64)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return d
	}
	return fallback
}
