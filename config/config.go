package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Mongo       MongoConfig
	Auth        AuthConfig
	Storage     StorageConfig
	Email       EmailConfig
	RateLimit   RateLimitConfig
	Tasks       TasksConfig
	Logging     LoggingConfig
}

type ServerConfig struct {
	Port          string
	PublicBaseURL string
	CORSOrigins   []string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	MaxUploads    int
	MaxUploadSize int64
}

type MongoConfig struct {
	Driver   string // mongo, memory
	URI      string
	Database string
	Timeout  time.Duration
}

type AuthConfig struct {
	Provider          string // firebase, local
	FirebaseProjectID string
	FirebaseAPIKey    string
	JWTSecret         string
	TokenTTL          time.Duration
}

type StorageConfig struct {
	Provider            string // cloudinary, gcs
	Folder              string
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	GCSBucket           string
	GCSCredentialsFile  string
	GCSPublicRead       bool
}

type EmailConfig struct {
	Provider     string // smtp, zeptomail, resend, disabled
	From         string
	FromName     string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	ZeptoAPIURL  string
	ZeptoAPIKey  string
	ResendAPIKey string
}

type RateLimitConfig struct {
	Requests     int
	Window       time.Duration
	AuthRequests int
}

type TasksConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads the process environment, after merging an optional .env file,
// and validates the settings required by the selected providers.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment without touching .env files.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Environment: strings.ToLower(getEnv("APP_ENV", EnvDevelopment)),
		Server: ServerConfig{
			Port:          getEnv("PORT", "8080"),
			PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
			CORSOrigins: getEnvList("CORS_ORIGINS", []string{
				"http://localhost:5173",
				"http://localhost:3000",
				"http://10.0.2.2:3000",
			}),
			ReadTimeout:   15 * time.Second,
			WriteTimeout:  60 * time.Second,
			IdleTimeout:   60 * time.Second,
			MaxUploads:    getEnvInt("UPLOAD_MAX_FILES", 5),
			MaxUploadSize: int64(getEnvInt("UPLOAD_MAX_FILE_MB", 5)) << 20,
		},
		Mongo: MongoConfig{
			Driver:   strings.ToLower(getEnv("STORE_DRIVER", "mongo")),
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DB", "event_manager"),
			Timeout:  time.Duration(getEnvInt("MONGO_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Auth: AuthConfig{
			Provider:          strings.ToLower(getEnv("AUTH_PROVIDER", "local")),
			FirebaseProjectID: getEnv("FIREBASE_PROJECT_ID", ""),
			FirebaseAPIKey:    getEnv("FIREBASE_API_KEY", ""),
			JWTSecret:         getEnv("JWT_SECRET", ""),
			TokenTTL:          time.Duration(getEnvInt("JWT_TTL_MINUTES", 60)) * time.Minute,
		},
		Storage: StorageConfig{
			Provider:            strings.ToLower(getEnv("STORAGE_PROVIDER", "cloudinary")),
			Folder:              getEnv("STORAGE_FOLDER", "events"),
			CloudinaryCloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
			CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
			CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
			GCSBucket:           getEnv("GCS_BUCKET", ""),
			GCSCredentialsFile:  getEnv("GCP_KEY_FILE", ""),
			GCSPublicRead:       getEnvBool("GCS_PUBLIC_READ", true),
		},
		Email: EmailConfig{
			Provider:     strings.ToLower(getEnv("EMAIL_PROVIDER", "disabled")),
			From:         getEnv("EMAIL_FROM", ""),
			FromName:     getEnv("EMAIL_FROM_NAME", "Event Manager"),
			SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:     getEnvInt("SMTP_PORT", 587),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			ZeptoAPIURL:  getEnv("ZEPTO_API_URL", "https://api.zeptomail.com/v1.1/email"),
			ZeptoAPIKey:  getEnv("ZEPTO_API_KEY", ""),
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		},
		RateLimit: RateLimitConfig{
			Requests:     getEnvInt("RATE_LIMIT_REQUESTS", 100),
			Window:       time.Duration(getEnvInt("RATE_LIMIT_WINDOW_MINUTES", 15)) * time.Minute,
			AuthRequests: getEnvInt("RATE_LIMIT_AUTH_REQUESTS", 20),
		},
		Tasks: TasksConfig{
			Workers:   getEnvInt("TASK_WORKERS", 4),
			QueueSize: getEnvInt("TASK_QUEUE_SIZE", 256),
			Timeout:   time.Duration(getEnvInt("TASK_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func (c *Config) validate() error {
	switch c.Mongo.Driver {
	case "mongo":
		if c.Mongo.URI == "" {
			return fmt.Errorf("MONGO_URI is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Mongo.Driver)
	}

	switch c.Auth.Provider {
	case "firebase":
		if c.Auth.FirebaseProjectID == "" || c.Auth.FirebaseAPIKey == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID and FIREBASE_API_KEY are required for the firebase auth provider")
		}
	case "local":
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required for the local auth provider")
		}
	default:
		return fmt.Errorf("unsupported AUTH_PROVIDER %q", c.Auth.Provider)
	}

	switch c.Storage.Provider {
	case "cloudinary":
		if c.Storage.CloudinaryCloudName == "" || c.Storage.CloudinaryAPIKey == "" || c.Storage.CloudinaryAPISecret == "" {
			return fmt.Errorf("CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET are required")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required for the gcs storage provider")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_PROVIDER %q", c.Storage.Provider)
	}

	switch c.Email.Provider {
	case "disabled":
	case "smtp":
		if c.Email.SMTPUsername == "" || c.Email.SMTPPassword == "" {
			return fmt.Errorf("SMTP_USERNAME and SMTP_PASSWORD are required for the smtp email provider")
		}
		if c.Email.From == "" {
			c.Email.From = c.Email.SMTPUsername
		}
	case "zeptomail":
		if c.Email.ZeptoAPIKey == "" || c.Email.From == "" {
			return fmt.Errorf("ZEPTO_API_KEY and EMAIL_FROM are required for the zeptomail email provider")
		}
	case "resend":
		if c.Email.ResendAPIKey == "" || c.Email.From == "" {
			return fmt.Errorf("RESEND_API_KEY and EMAIL_FROM are required for the resend email provider")
		}
	default:
		return fmt.Errorf("unsupported EMAIL_PROVIDER %q", c.Email.Provider)
	}

	if c.Server.MaxUploads < 1 {
		return fmt.Errorf("UPLOAD_MAX_FILES must be at least 1")
	}
	if c.Tasks.Workers < 1 {
		c.Tasks.Workers = 1
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
