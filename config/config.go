package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	AppPort     string
	AppMode     string
	ServiceName string
	StoreDriver string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBMaxConns int

	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	PresenceTTL   time.Duration

	RateLimitHandshakes int
	RateLimitAPI        int

	JWTSecret string

	WSAllowQueryIdentity bool
	WSSendBuffer         int
	WSAllowedOrigins     []string

	S3Region     string
	S3Bucket     string
	S3AccessKey  string
	S3SecretKey  string
	S3Endpoint   string
	S3PublicBase string
	S3PresignTTL time.Duration

	AMQPURL      string
	AMQPExchange string

	OTLPEndpoint     string
	OTLPInsecure     bool
	TraceSampleRatio float64
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:     getEnv("APP_PORT", "8080"),
		AppMode:     getEnv("APP_MODE", "debug"),
		ServiceName: getEnv("SERVICE_NAME", "chat-relay"),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "chat_relay"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBMaxConns: getEnvAsInt("DB_MAX_CONNS", 20),

		RedisEnabled:  getEnvAsBool("REDIS_ENABLED", false),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		PresenceTTL:   getEnvAsDuration("PRESENCE_TTL", 5*time.Minute),

		RateLimitHandshakes: getEnvAsInt("RATE_LIMIT_HANDSHAKES", 30),
		RateLimitAPI:        getEnvAsInt("RATE_LIMIT_API", 300),

		JWTSecret: getEnv("JWT_SECRET", "change-me"),

		WSAllowQueryIdentity: getEnvAsBool("WS_ALLOW_QUERY_IDENTITY", false),
		WSSendBuffer:         getEnvAsInt("WS_SEND_BUFFER", 256),
		WSAllowedOrigins:     getEnvAsList("WS_ALLOWED_ORIGINS"),

		S3Region:     getEnv("S3_REGION", ""),
		S3Bucket:     getEnv("S3_BUCKET", ""),
		S3AccessKey:  getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:  getEnv("S3_SECRET_KEY", ""),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""),
		S3PublicBase: getEnv("S3_PUBLIC_BASE", ""),
		S3PresignTTL: getEnvAsDuration("S3_PRESIGN_TTL", 15*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "chat.audit"),

		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:     getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		TraceSampleRatio: getEnvAsFloat("OTEL_TRACES_SAMPLE_RATIO", 1),
	}
}

// DatabaseURL builds the pgx connection string.
func (c *Config) DatabaseURL() string {
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName +
		"?sslmode=disable&pool_max_conns=" + strconv.Itoa(c.DBMaxConns)
}

func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

func (c *Config) S3Enabled() bool {
	return c.S3Region != "" && c.S3Bucket != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
