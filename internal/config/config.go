package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every runtime setting. Values come from the environment
// (optionally seeded from a .env file) with the defaults below.
type Config struct {
	AppEnv   string
	Port     string
	LogLevel string

	DBDriver    string // sqlite, postgres or mongo
	DatabaseDSN string
	MongoURI    string
	DBName      string

	JWTSecret      string
	JWTAlgorithm   string
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	ResetTTL       time.Duration
	AdminLoginOnly bool
	SiteAdminEmail string

	// ExposeResetToken echoes reset tokens in API responses; development only.
	ExposeResetToken bool

	FrontendBaseURL  string
	FrontendResetURL string

	SMTPHost          string
	SMTPPort          int
	SMTPUser          string
	SMTPPass          string
	SMTPFrom          string
	EmailFromName     string
	SendGridAPIKey    string
	SendGridFromEmail string

	RazorpayKeyID     string
	RazorpayKeySecret string
	RazorpayCurrency  string

	StorageDriver       string // local or cloudinary
	UploadDir           string
	SiteURL             string
	MaxImageSize        int64
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string

	CORSOrigins   string
	RabbitMQURL   string
	NotifyWorkers int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("APP_PORT", "8000")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "jlrp.db")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("DB_NAME", "jlrp")

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ALGORITHM", "HS256")
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 60)
	v.SetDefault("REFRESH_TOKEN_EXPIRE_DAYS", 7)
	v.SetDefault("RESET_TOKEN_EXPIRE_MINUTES", 60)
	v.SetDefault("ADMIN_LOGIN_ONLY", true)
	v.SetDefault("EXPOSE_RESET_TOKEN", false)
	v.SetDefault("SITE_ADMIN_EMAIL", "")

	v.SetDefault("FRONTEND_BASE_URL", "http://localhost:3000")
	v.SetDefault("FRONTEND_RESET_URL", "")

	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASS", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("EMAIL_FROM_NAME", "JLRP")
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("SENDGRID_FROM_EMAIL", "")

	v.SetDefault("RAZORPAY_KEY_ID", "")
	v.SetDefault("RAZORPAY_KEY_SECRET", "")
	v.SetDefault("RAZORPAY_CURRENCY", "INR")

	v.SetDefault("STORAGE_DRIVER", "local")
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("SITE_URL", "")
	v.SetDefault("MAX_IMAGE_SIZE_BYTES", 5*1024*1024)
	v.SetDefault("CLOUDINARY_CLOUD_NAME", "")
	v.SetDefault("CLOUDINARY_API_KEY", "")
	v.SetDefault("CLOUDINARY_API_SECRET", "")
	v.SetDefault("CLOUDINARY_FOLDER", "jlrp")

	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("NOTIFY_WORKERS", 4)

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
}

// Load reads the configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		AppEnv:   v.GetString("APP_ENV"),
		Port:     v.GetString("APP_PORT"),
		LogLevel: v.GetString("LOG_LEVEL"),

		DBDriver:    strings.ToLower(v.GetString("DB_DRIVER")),
		DatabaseDSN: v.GetString("DATABASE_DSN"),
		MongoURI:    v.GetString("MONGO_URI"),
		DBName:      v.GetString("DB_NAME"),

		JWTSecret:      v.GetString("JWT_SECRET"),
		JWTAlgorithm:   strings.ToUpper(v.GetString("JWT_ALGORITHM")),
		AccessTTL:      time.Duration(v.GetInt("ACCESS_TOKEN_EXPIRE_MINUTES")) * time.Minute,
		RefreshTTL:     time.Duration(v.GetInt("REFRESH_TOKEN_EXPIRE_DAYS")) * 24 * time.Hour,
		ResetTTL:       time.Duration(v.GetInt("RESET_TOKEN_EXPIRE_MINUTES")) * time.Minute,
		AdminLoginOnly: v.GetBool("ADMIN_LOGIN_ONLY"),
		SiteAdminEmail: strings.ToLower(strings.TrimSpace(v.GetString("SITE_ADMIN_EMAIL"))),

		ExposeResetToken: v.GetBool("EXPOSE_RESET_TOKEN"),

		FrontendBaseURL:  strings.TrimRight(v.GetString("FRONTEND_BASE_URL"), "/"),
		FrontendResetURL: v.GetString("FRONTEND_RESET_URL"),

		SMTPHost:          v.GetString("SMTP_HOST"),
		SMTPPort:          v.GetInt("SMTP_PORT"),
		SMTPUser:          v.GetString("SMTP_USER"),
		SMTPPass:          v.GetString("SMTP_PASS"),
		SMTPFrom:          v.GetString("SMTP_FROM"),
		EmailFromName:     v.GetString("EMAIL_FROM_NAME"),
		SendGridAPIKey:    v.GetString("SENDGRID_API_KEY"),
		SendGridFromEmail: v.GetString("SENDGRID_FROM_EMAIL"),

		RazorpayKeyID:     v.GetString("RAZORPAY_KEY_ID"),
		RazorpayKeySecret: v.GetString("RAZORPAY_KEY_SECRET"),
		RazorpayCurrency:  v.GetString("RAZORPAY_CURRENCY"),

		StorageDriver:       strings.ToLower(v.GetString("STORAGE_DRIVER")),
		UploadDir:           v.GetString("UPLOAD_DIR"),
		SiteURL:             strings.TrimRight(v.GetString("SITE_URL"), "/"),
		MaxImageSize:        v.GetInt64("MAX_IMAGE_SIZE_BYTES"),
		CloudinaryCloudName: v.GetString("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:    v.GetString("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret: v.GetString("CLOUDINARY_API_SECRET"),
		CloudinaryFolder:    v.GetString("CLOUDINARY_FOLDER"),

		CORSOrigins:   v.GetString("CORS_ORIGINS"),
		RabbitMQURL:   v.GetString("RABBITMQ_URL"),
		NotifyWorkers: v.GetInt("NOTIFY_WORKERS"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),
	}

	if cfg.JWTSecret == "" && cfg.IsDevelopment() {
		cfg.JWTSecret = "dev-secret-change-me"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that have no safe default.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("unsupported JWT_ALGORITHM %q", c.JWTAlgorithm))
	}
	switch c.DBDriver {
	case "sqlite", "postgres", "mongo":
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}
	switch c.StorageDriver {
	case "local", "cloudinary":
	default:
		errs = append(errs, fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver))
	}
	if c.ExposeResetToken && !c.IsDevelopment() {
		errs = append(errs, errors.New("EXPOSE_RESET_TOKEN is only allowed when APP_ENV is development"))
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 || c.ResetTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	if c.NotifyWorkers < 1 {
		c.NotifyWorkers = 1
	}
	return errors.Join(errs...)
}

// IsDevelopment reports whether the app runs in a development environment.
func (c *Config) IsDevelopment() bool {
	switch strings.ToLower(c.AppEnv) {
	case "development", "dev", "local":
		return true
	}
	return false
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// ResetURL is the frontend page that consumes password reset tokens.
func (c *Config) ResetURL() string {
	if c.FrontendResetURL != "" {
		return c.FrontendResetURL
	}
	return c.FrontendBaseURL + "/reset-password"
}

// PublicBaseURL is the absolute prefix for locally stored uploads.
func (c *Config) PublicBaseURL() string {
	if c.SiteURL != "" {
		return c.SiteURL
	}
	return "http://localhost" + c.Addr()
}
