package config

import (
	"os"
	"strconv"
	"time"

	commoncfg "wisefido-risk/owl-common/config"

	"github.com/joho/godotenv"
)

// Config wisefido-risk (risk assessment + alerting engine) configuration.
type Config struct {
	HTTP struct {
		Addr              string
		ReadHeaderTimeout time.Duration
	}

	// DBEnabled=false runs on in-memory repositories and an in-process
	// subject locker (local dev only).
	DBEnabled bool
	Database  commoncfg.DatabaseConfig
	Redis     commoncfg.RedisConfig
	MQTT      commoncfg.MQTTConfig
	Kafka     commoncfg.KafkaConfig

	Profile struct {
		BaseURL string
		Timeout time.Duration
	}

	Notify struct {
		RedisStream     bool
		StreamName      string
		StreamMaxLen    int64
		MQTT            bool
		MQTTTopicPrefix string
		Kafka           bool
	}

	Risk struct {
		// AlertCoolDown is the suppression lookback (7 days by default).
		AlertCoolDown       time.Duration
		EmergencyWindowDays int
		AdherenceWindowDays int
		// DefaultPeriodDays applies when a burnout caller passes 0.
		DefaultPeriodDays int
		MaxPeriodDays     int
		SweepWorkers      int
		RepositoryTimeout time.Duration
		LockTTL           time.Duration
		NameCacheTTL      time.Duration
		Timezone          string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load(getEnv("ENV_FILE", ".env"))

	cfg := &Config{}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8090")
	cfg.HTTP.ReadHeaderTimeout = parseDuration(getEnv("HTTP_READ_HEADER_TIMEOUT", "5s"), 5*time.Second)

	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "owlrd"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 20
	cfg.Database.MaxIdle = 5
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "wisefido-risk"
	cfg.MQTT.QoS = 1
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Kafka.Topic = "risk-alerts"
	cfg.Kafka.ClientID = "wisefido-risk"
	cfg.Kafka.LoadFromEnv("KAFKA")

	cfg.Profile.BaseURL = getEnv("PROFILE_BASE_URL", "http://localhost:8080")
	cfg.Profile.Timeout = parseDuration(getEnv("PROFILE_TIMEOUT", "3s"), 3*time.Second)

	cfg.Notify.RedisStream = getEnv("NOTIFY_REDIS_STREAM", "true") == "true"
	cfg.Notify.StreamName = getEnv("NOTIFY_STREAM_NAME", "risk:alerts")
	cfg.Notify.StreamMaxLen = int64(parseInt(getEnv("NOTIFY_STREAM_MAXLEN", "10000"), 10000))
	cfg.Notify.MQTT = getEnv("NOTIFY_MQTT", "false") == "true"
	cfg.Notify.MQTTTopicPrefix = getEnv("NOTIFY_MQTT_TOPIC_PREFIX", "risk/alerts/")
	cfg.Notify.Kafka = getEnv("NOTIFY_KAFKA", "false") == "true"

	cfg.Risk.AlertCoolDown = parseDuration(getEnv("RISK_ALERT_COOLDOWN", "168h"), 7*24*time.Hour)
	cfg.Risk.EmergencyWindowDays = parseInt(getEnv("RISK_EMERGENCY_WINDOW_DAYS", "7"), 7)
	cfg.Risk.AdherenceWindowDays = parseInt(getEnv("RISK_ADHERENCE_WINDOW_DAYS", "30"), 30)
	cfg.Risk.DefaultPeriodDays = parseInt(getEnv("RISK_BURNOUT_PERIOD_DAYS", "14"), 14)
	cfg.Risk.MaxPeriodDays = parseInt(getEnv("RISK_BURNOUT_MAX_PERIOD_DAYS", "90"), 90)
	cfg.Risk.SweepWorkers = parseInt(getEnv("RISK_SWEEP_WORKERS", "8"), 8)
	cfg.Risk.RepositoryTimeout = parseDuration(getEnv("RISK_REPOSITORY_TIMEOUT", "10s"), 10*time.Second)
	cfg.Risk.LockTTL = parseDuration(getEnv("RISK_LOCK_TTL", "30s"), 30*time.Second)
	cfg.Risk.NameCacheTTL = parseDuration(getEnv("RISK_NAME_CACHE_TTL", "10m"), 10*time.Minute)
	cfg.Risk.Timezone = getEnv("RISK_TIMEZONE", "UTC")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

// Location resolves Risk.Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Risk.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
