package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Ananth-NQI/segurobot-backend/internal/utils"
)

// Config holds all runtime settings. Values come from the environment,
// optionally seeded from a .env file by main.
type Config struct {
	Port        string
	Environment string
	AdminToken  string

	Twilio   TwilioConfig
	Database DatabaseConfig
	State    StateConfig
	Engine   EngineConfig

	ExportCSVPath string
	CatalogPath   string // optional YAML overriding the embedded catalog
}

// TwilioConfig contains the WhatsApp transport credentials
type TwilioConfig struct {
	AccountSID        string
	AuthToken         string
	WhatsAppFrom      string // Format: "whatsapp:+14155238886"
	ValidateSignature bool
	WebhookURL        string // public URL Twilio signs; derived from the request when empty
}

// Configured reports whether outbound sends can reach Twilio
func (t TwilioConfig) Configured() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.WhatsAppFrom != ""
}

// DatabaseConfig selects the GORM driver and connection settings
type DatabaseConfig struct {
	Driver                 string // "postgres", "sqlite" or "" for the in-memory store
	DSN                    string
	User                   string
	Pass                   string
	Name                   string
	Host                   string
	Port                   string
	InstanceConnectionName string
}

// StateConfig controls where the session document is persisted
type StateConfig struct {
	Backend          string // "file" or "database"
	Path             string
	BackupDir        string
	SnapshotInterval time.Duration
}

// EngineConfig holds conversation engine timings
type EngineConfig struct {
	OperatorAddress    string
	DedupTTL           time.Duration
	DedupSweepInterval time.Duration
	SessionMaxIdle     time.Duration
	SessionSweepEvery  time.Duration
	HandoffWindow      time.Duration
	SendDelay          time.Duration
}

// Load reads the configuration from environment variables
func Load() *Config {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		AdminToken:  os.Getenv("ADMIN_TOKEN"),
		Twilio: TwilioConfig{
			AccountSID:        os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:         os.Getenv("TWILIO_AUTH_TOKEN"),
			WhatsAppFrom:      os.Getenv("TWILIO_WHATSAPP_FROM"),
			ValidateSignature: !getBool("DISABLE_WEBHOOK_VALIDATION", false),
			WebhookURL:        os.Getenv("PUBLIC_WEBHOOK_URL"),
		},
		Database: DatabaseConfig{
			Driver:                 strings.ToLower(os.Getenv("DB_DRIVER")),
			DSN:                    os.Getenv("DB_DSN"),
			User:                   getEnv("DB_USER", "postgres"),
			Pass:                   os.Getenv("DB_PASS"),
			Name:                   getEnv("DB_NAME", "segurobot"),
			Host:                   getEnv("DB_HOST", "localhost"),
			Port:                   getEnv("DB_PORT", "5432"),
			InstanceConnectionName: os.Getenv("INSTANCE_CONNECTION_NAME"),
		},
		State: StateConfig{
			Backend:          strings.ToLower(getEnv("STATE_BACKEND", "file")),
			Path:             getEnv("STATE_PATH", "data/state.json"),
			BackupDir:        getEnv("STATE_BACKUP_DIR", "data/backups"),
			SnapshotInterval: getDuration("STATE_SNAPSHOT_INTERVAL", 30*time.Second),
		},
		Engine: EngineConfig{
			OperatorAddress:    utils.CanonicalAddress(os.Getenv("OPERATOR_ADDRESS")),
			DedupTTL:           getDuration("DEDUP_TTL", 60*time.Second),
			DedupSweepInterval: getDuration("DEDUP_SWEEP_INTERVAL", 5*time.Minute),
			SessionMaxIdle:     time.Duration(getInt("SESSION_MAX_IDLE_HOURS", 24)) * time.Hour,
			SessionSweepEvery:  getDuration("SESSION_SWEEP_INTERVAL", time.Hour),
			HandoffWindow:      time.Duration(getInt("HANDOFF_WINDOW_MINUTES", 30)) * time.Minute,
			SendDelay:          getDuration("SEND_DELAY", time.Second),
		},
		ExportCSVPath: os.Getenv("EXPORT_CSV_PATH"),
		CatalogPath:   os.Getenv("CATALOG_PATH"),
	}

	if cfg.Database.Driver == "" && cfg.State.Backend == "database" {
		log.Println("⚠️  STATE_BACKEND=database without DB_DRIVER - falling back to file state")
		cfg.State.Backend = "file"
	}

	return cfg
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Database.InstanceConnectionName != ""
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed < 0 {
		log.Printf("⚠️  Invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return parsed
}

func getBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("⚠️  Invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return parsed
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil || parsed < 0 {
		log.Printf("⚠️  Invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return parsed
}
