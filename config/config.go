package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported backend names.
const (
	DBBackendMongo    = "mongo"
	DBBackendPostgres = "postgres"
	DBBackendMemory   = "memory"

	StorageBackendLocal = "local"
	StorageBackendMinio = "minio"
	StorageBackendGCS   = "gcs"

	MQBackendNone     = "none"
	MQBackendRabbitMQ = "rabbitmq"
	MQBackendPubSub   = "pubsub"
)

type Config struct {
	Env           string
	ServerPort    int
	PublicBaseURL string
	ClientURL     string
	LogLevel      string
	LogFormat     string
	Database      DatabaseConfig
	Auth          AuthConfig
	Mail          MailConfig
	Storage       StorageConfig
	MQ            MQConfig
	Redis         RedisConfig
	RateLimit     RateLimitConfig
}

type DatabaseConfig struct {
	Backend       string
	MongoURI      string
	MongoDatabase string
	Host          string
	Port          int
	User          string
	Password      string
	DBName        string
	UseSSL        bool
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type MailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	From         string
}

type StorageConfig struct {
	Backend   string
	UploadDir string
	Minio     MinioConfig
	GCS       GCSConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

type MQConfig struct {
	Backend  string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

type RedisConfig struct {
	URL          string
	DashboardTTL time.Duration
}

type RateLimitConfig struct {
	AuthRPS   float64
	AuthBurst int
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Backend:       strings.ToLower(getEnv("DB_BACKEND", DBBackendMongo)),
		MongoURI:      getEnv("MONGO_URI", ""),
		MongoDatabase: getEnv("MONGO_DATABASE", "moneytrail"),
		Host:          getEnv("DB_HOST", "localhost"),
		Port:          getEnvInt("DB_PORT", 5432),
		User:          getEnv("DB_USER", "moneytrail"),
		Password:      getEnv("DB_PASSWORD", "password"),
		DBName:        getEnv("DB_NAME", "moneytrail_db"),
		UseSSL:        getEnvBool("DB_SSL", false),
	}

	port := getEnvInt("SERVER_PORT", 8000)

	return Config{
		Env:           getEnv("ENV", "production"),
		ServerPort:    port,
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", fmt.Sprintf("http://localhost:%d", port)), "/"),
		ClientURL:     getEnv("CLIENT_URL", "*"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		Database:      dbConfig,
		Auth: AuthConfig{
			JWTSecret: strings.TrimSpace(getEnv("JWT_SECRET", "")),
			TokenTTL:  getEnvDuration("JWT_TTL", 72*time.Hour),
		},
		Mail: MailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnvInt("SMTP_PORT", 587),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			From:         getEnv("MAIL_FROM", "no-reply@moneytrail.local"),
		},
		Storage: StorageConfig{
			Backend:   strings.ToLower(getEnv("STORAGE_BACKEND", StorageBackendLocal)),
			UploadDir: getEnv("UPLOAD_DIR", "./uploads"),
			Minio: MinioConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", "moneytrail"),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
			GCS: GCSConfig{
				Bucket:          getEnv("GCS_BUCKET", ""),
				ProjectID:       getEnv("GCS_PROJECT_ID", ""),
				CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
			},
		},
		MQ: MQConfig{
			Backend: strings.ToLower(getEnv("MQ_BACKEND", MQBackendNone)),
			RabbitMQ: RabbitMQConfig{
				URL:             getEnv("RABBITMQ_URL", ""),
				QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
				QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
				PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 10),
			},
			PubSub: PubSubConfig{
				ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
				CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
				SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
			},
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", ""),
			DashboardTTL: getEnvDuration("DASHBOARD_CACHE_TTL", 2*time.Minute),
		},
		RateLimit: RateLimitConfig{
			AuthRPS:   getEnvFloat("AUTH_RATE_LIMIT_RPS", 5),
			AuthBurst: getEnvInt("AUTH_RATE_LIMIT_BURST", 10),
		},
	}
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var problems []string

	if c.ServerPort < 1 || c.ServerPort > 65535 {
		problems = append(problems, fmt.Sprintf("invalid server port %d: must be between 1 and 65535", c.ServerPort))
	}

	switch c.Database.Backend {
	case DBBackendMongo:
		if strings.TrimSpace(c.Database.MongoURI) == "" {
			problems = append(problems, "MONGO_URI is required for the mongo backend")
		}
		if strings.TrimSpace(c.Database.MongoDatabase) == "" {
			problems = append(problems, "MONGO_DATABASE cannot be empty")
		}
	case DBBackendPostgres:
		if strings.TrimSpace(c.Database.Host) == "" || strings.TrimSpace(c.Database.DBName) == "" {
			problems = append(problems, "DB_HOST and DB_NAME are required for the postgres backend")
		}
	case DBBackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("invalid database backend '%s': must be one of %v",
			c.Database.Backend, []string{DBBackendMongo, DBBackendPostgres, DBBackendMemory}))
	}

	if c.Auth.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	}
	if c.Auth.TokenTTL <= 0 {
		problems = append(problems, fmt.Sprintf("invalid token ttl %v: must be positive", c.Auth.TokenTTL))
	}

	switch c.Storage.Backend {
	case StorageBackendLocal:
		if strings.TrimSpace(c.Storage.UploadDir) == "" {
			problems = append(problems, "UPLOAD_DIR cannot be empty for the local storage backend")
		}
	case StorageBackendMinio:
		if c.Storage.Minio.Endpoint == "" || c.Storage.Minio.AccessKey == "" || c.Storage.Minio.SecretKey == "" {
			problems = append(problems, "MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required for the minio backend")
		}
	case StorageBackendGCS:
		if c.Storage.GCS.Bucket == "" {
			problems = append(problems, "GCS_BUCKET is required for the gcs backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("invalid storage backend '%s'", c.Storage.Backend))
	}

	switch c.MQ.Backend {
	case MQBackendNone:
	case MQBackendRabbitMQ:
		if !strings.HasPrefix(c.MQ.RabbitMQ.URL, "amqp://") && !strings.HasPrefix(c.MQ.RabbitMQ.URL, "amqps://") {
			problems = append(problems, "RABBITMQ_URL must be an amqp:// or amqps:// url")
		}
	case MQBackendPubSub:
		if c.MQ.PubSub.ProjectID == "" {
			problems = append(problems, "PUBSUB_PROJECT_ID is required for the pubsub backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("invalid mq backend '%s'", c.MQ.Backend))
	}

	if c.RateLimit.AuthRPS <= 0 || c.RateLimit.AuthBurst < 1 {
		problems = append(problems, "auth rate limit rps and burst must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
