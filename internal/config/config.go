package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr              string
	DatabaseDSN       string
	DBMaxConns        int
	RedisAddr         string
	JWTSecret         string
	JWTAudience       string
	AllowedOrigins    []string
	ReconcileInterval time.Duration

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found - using process environment")
	}

	return &Config{
		Addr:              getEnv("ADDR", ":8080"),
		DatabaseDSN:       getEnv("DB_DSN", ""),
		DBMaxConns:        getEnvInt("DB_MAX_CONNS", 25),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		JWTAudience:       getEnv("JWT_AUDIENCE", "authenticated"),
		AllowedOrigins:    getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", 30*time.Second),

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFrom:       getEnv("TWILIO_WHATSAPP_FROM", ""),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "sa-east-1"),
		BucketName:   getEnv("BUCKET_NAME", "pedidos-exports"),
	}
}

// TwilioEnabled reports whether outbound WhatsApp messaging can be configured.
func (c *Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFrom != ""
}

func (c *Config) StorageEnabled() bool {
	return c.AwsAccessKey != "" && c.AwsSecretKey != "" && c.BucketName != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("WARN: %s=%q not a positive duration, using default %s", key, v, def)
		return def
	}
	return d
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}
