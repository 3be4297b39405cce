package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Worker   WorkerConfig
	Gateways GatewaysConfig
}

type ServerConfig struct {
	Port int
	Env  string // "development", "production"
}

type DatabaseConfig struct {
	Host            string
	Port            string
	Name            string
	User            string
	Pass            string
	Charset         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Pass     string
	DB       int
	DedupTTL time.Duration // how long a delivered notification stays remembered
}

type WorkerConfig struct {
	CaptureSchedule string // cron spec with seconds field
	CaptureBatch    int
}

type GatewaysConfig struct {
	Worldpay WorldpayConfig
	Stripe   StripeConfig
	Smartpay SmartpayConfig
}

// OperationTimeouts holds the per-operation read timeouts for one gateway.
type OperationTimeouts struct {
	Authorise time.Duration
	Capture   time.Duration
	Refund    time.Duration
	Cancel    time.Duration
	Query     time.Duration
}

// For returns the timeout configured for an operation name.
func (t OperationTimeouts) For(op string) time.Duration {
	switch op {
	case "capture":
		return t.Capture
	case "refund":
		return t.Refund
	case "cancel":
		return t.Cancel
	case "query":
		return t.Query
	default:
		return t.Authorise
	}
}

type WorldpayConfig struct {
	TestURL string
	LiveURL string
	// NotificationCIDRs restricts the unsigned notification endpoint to the
	// source ranges Worldpay publishes. Empty allows everything.
	NotificationCIDRs []string
	Timeouts          OperationTimeouts
}

type StripeConfig struct {
	BaseURL            string
	WebhookSecrets     []string // newest first; older secrets stay valid during rotation
	SignatureTolerance time.Duration
	Timeouts           OperationTimeouts
}

type SmartpayConfig struct {
	TestURL              string
	LiveURL              string
	NotificationUser     string
	NotificationPassword string
	Timeouts             OperationTimeouts
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 50)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 10)
	viper.SetDefault("DB_CONN_MAX_LIFETIME", "1h")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CAPTURE_SCHEDULE", "0 * * * * *")
	viper.SetDefault("CAPTURE_BATCH", 20)
	viper.SetDefault("NOTIFICATION_DEDUP_TTL", "10m")

	viper.SetDefault("WORLDPAY_TEST_URL", "https://secure-test.worldpay.com/jsp/merchant/xml/paymentService.jsp")
	viper.SetDefault("WORLDPAY_LIVE_URL", "https://secure.worldpay.com/jsp/merchant/xml/paymentService.jsp")
	viper.SetDefault("STRIPE_BASE_URL", "https://api.stripe.com")
	viper.SetDefault("STRIPE_SIGNATURE_TOLERANCE", "5m")
	viper.SetDefault("SMARTPAY_TEST_URL", "https://pal-test.barclaycardsmartpay.com/pal/servlet/Payment/v18")
	viper.SetDefault("SMARTPAY_LIVE_URL", "https://pal-live.barclaycardsmartpay.com/pal/servlet/Payment/v18")

	// Interactive authorisations get a tighter budget than worker-driven
	// operations; query is used by reconciliation sweeps and can wait longer.
	for _, g := range []string{"WORLDPAY", "STRIPE", "SMARTPAY"} {
		viper.SetDefault(g+"_AUTH_TIMEOUT", "10s")
		viper.SetDefault(g+"_CAPTURE_TIMEOUT", "20s")
		viper.SetDefault(g+"_REFUND_TIMEOUT", "20s")
		viper.SetDefault(g+"_CANCEL_TIMEOUT", "10s")
		viper.SetDefault(g+"_QUERY_TIMEOUT", "30s")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetInt("APP_PORT"),
			Env:  viper.GetString("APP_ENV"),
		},
		Database: databaseConfig(),
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Pass:     viper.GetString("REDIS_PASS"),
			DB:       viper.GetInt("REDIS_DB"),
			DedupTTL: duration("NOTIFICATION_DEDUP_TTL", 10*time.Minute),
		},
		Worker: WorkerConfig{
			CaptureSchedule: viper.GetString("CAPTURE_SCHEDULE"),
			CaptureBatch:    viper.GetInt("CAPTURE_BATCH"),
		},
		Gateways: GatewaysConfig{
			Worldpay: WorldpayConfig{
				TestURL:           viper.GetString("WORLDPAY_TEST_URL"),
				LiveURL:           viper.GetString("WORLDPAY_LIVE_URL"),
				NotificationCIDRs: splitSecrets(viper.GetString("WORLDPAY_NOTIFICATION_CIDRS")),
				Timeouts:          timeouts("WORLDPAY"),
			},
			Stripe: StripeConfig{
				BaseURL:            viper.GetString("STRIPE_BASE_URL"),
				WebhookSecrets:     splitSecrets(viper.GetString("STRIPE_WEBHOOK_SECRETS")),
				SignatureTolerance: duration("STRIPE_SIGNATURE_TOLERANCE", 5*time.Minute),
				Timeouts:           timeouts("STRIPE"),
			},
			Smartpay: SmartpayConfig{
				TestURL:              viper.GetString("SMARTPAY_TEST_URL"),
				LiveURL:              viper.GetString("SMARTPAY_LIVE_URL"),
				NotificationUser:     viper.GetString("SMARTPAY_NOTIFICATION_USER"),
				NotificationPassword: viper.GetString("SMARTPAY_NOTIFICATION_PASSWORD"),
				Timeouts:             timeouts("SMARTPAY"),
			},
		},
	}

	if cfg.Database.Name == "" {
		log.Println("WARNING: DB_NAME is not set")
	}
	if len(cfg.Gateways.Stripe.WebhookSecrets) == 0 {
		log.Println("WARNING: STRIPE_WEBHOOK_SECRETS is not set, stripe notifications will be rejected")
	}

	return cfg, nil
}

// LoadDatabaseOnly reads just the database settings, used by the bootstrap
// command before the rest of the configuration matters.
func LoadDatabaseOnly() (*DatabaseConfig, error) {
	_ = godotenv.Load()
	viper.AutomaticEnv()
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 50)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 10)
	viper.SetDefault("DB_CONN_MAX_LIFETIME", "1h")
	cfg := databaseConfig()
	return &cfg, nil
}

func databaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:            viper.GetString("DB_HOST"),
		Port:            viper.GetString("DB_PORT"),
		Name:            viper.GetString("DB_NAME"),
		User:            viper.GetString("DB_USER"),
		Pass:            viper.GetString("DB_PASS"),
		Charset:         viper.GetString("DB_CHARSET"),
		MaxOpenConns:    viper.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:    viper.GetInt("DB_MAX_IDLE_CONNS"),
		ConnMaxLifetime: duration("DB_CONN_MAX_LIFETIME", time.Hour),
	}
}

func timeouts(prefix string) OperationTimeouts {
	return OperationTimeouts{
		Authorise: duration(prefix+"_AUTH_TIMEOUT", 10*time.Second),
		Capture:   duration(prefix+"_CAPTURE_TIMEOUT", 20*time.Second),
		Refund:    duration(prefix+"_REFUND_TIMEOUT", 20*time.Second),
		Cancel:    duration(prefix+"_CANCEL_TIMEOUT", 10*time.Second),
		Query:     duration(prefix+"_QUERY_TIMEOUT", 30*time.Second),
	}
}

func duration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(viper.GetString(key))
	if err != nil {
		return fallback
	}
	return d
}

func splitSecrets(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// DSN returns the MySQL DSN string for GORM.
func (d *DatabaseConfig) DSN() string {
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=Local"
}
