package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/valpere/geopogoda/internal/version"
)

// Storage backends accepted in storage.backend.
const (
	StorageFile     = "file"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Weather   WeatherConfig   `mapstructure:"weather"`
	Geocoding GeocodingConfig `mapstructure:"geocoding"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type BotConfig struct {
	Token       string `mapstructure:"token"`
	Debug       bool   `mapstructure:"debug"`
	WebhookURL  string `mapstructure:"webhook_url"`
	WebhookPort int    `mapstructure:"webhook_port"`
	// RateLimit is the number of commands a single user may send per minute.
	RateLimit int `mapstructure:"rate_limit"`
}

// StorageConfig selects where the location cache is persisted.
type StorageConfig struct {
	Backend      string        `mapstructure:"backend"`
	DataDir      string        `mapstructure:"data_dir"`
	FileName     string        `mapstructure:"file_name"`
	RedisKey     string        `mapstructure:"redis_key"`
	SyncInterval time.Duration `mapstructure:"sync_interval"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type WeatherConfig struct {
	OpenWeatherAPIKey string        `mapstructure:"openweather_api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

type GeocodingConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	UserAgent         string        `mapstructure:"user_agent"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	// Configure YAML config file search
	viper.SetConfigName("geopogoda")
	viper.SetConfigType("yaml")

	// Add search paths in order of precedence (first found wins)
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath("$HOME/.config")
	viper.AddConfigPath("/etc")

	// Environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Map specific environment variables to config keys
	viper.BindEnv("bot.token", "TELEGRAM_BOT_TOKEN")
	viper.BindEnv("bot.debug", "BOT_DEBUG")
	viper.BindEnv("bot.webhook_url", "BOT_WEBHOOK_URL")
	viper.BindEnv("bot.webhook_port", "BOT_WEBHOOK_PORT")
	viper.BindEnv("bot.rate_limit", "BOT_RATE_LIMIT")

	viper.BindEnv("storage.backend", "STORAGE_BACKEND")
	viper.BindEnv("storage.data_dir", "DATA_DIR")
	viper.BindEnv("storage.file_name", "STORAGE_FILE")
	viper.BindEnv("storage.redis_key", "STORAGE_REDIS_KEY")
	viper.BindEnv("storage.sync_interval", "SYNC_INTERVAL")

	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.name", "DB_NAME")
	viper.BindEnv("database.ssl_mode", "DB_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("weather.openweather_api_key", "OPENWEATHER_API_KEY")
	viper.BindEnv("weather.base_url", "OPENWEATHER_URL")
	viper.BindEnv("weather.timeout", "WEATHER_TIMEOUT")

	viper.BindEnv("geocoding.base_url", "GEOCODER_URL")
	viper.BindEnv("geocoding.user_agent", "GEOCODER_USER_AGENT")
	viper.BindEnv("geocoding.requests_per_second", "GEOCODER_RPS")
	viper.BindEnv("geocoding.timeout", "GEOCODER_TIMEOUT")

	viper.BindEnv("logging.level", "LOG_LEVEL")
	viper.BindEnv("logging.format", "LOG_FORMAT")

	// Set defaults
	setDefaults()

	// Read config file if exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Bot defaults
	viper.SetDefault("bot.debug", false)
	viper.SetDefault("bot.webhook_port", 8080)
	viper.SetDefault("bot.rate_limit", 20)

	// Storage defaults
	viper.SetDefault("storage.backend", StorageFile)
	viper.SetDefault("storage.data_dir", "data")
	viper.SetDefault("storage.file_name", "locations.json")
	viper.SetDefault("storage.redis_key", "geopogoda:locations")
	viper.SetDefault("storage.sync_interval", "5m")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	// Weather defaults
	viper.SetDefault("weather.base_url", "https://api.openweathermap.org")
	viper.SetDefault("weather.timeout", "10s")

	// Geocoding defaults (Nominatim allows one request per second)
	viper.SetDefault("geocoding.base_url", "https://nominatim.openstreetmap.org")
	viper.SetDefault("geocoding.user_agent", version.UserAgent())
	viper.SetDefault("geocoding.requests_per_second", 1.0)
	viper.SetDefault("geocoding.timeout", "10s")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// Validate reports configuration that would prevent the bot from starting.
func (c *Config) Validate() error {
	var errs []error

	if c.Bot.Token == "" {
		errs = append(errs, errors.New("bot.token is required"))
	}
	if c.Weather.OpenWeatherAPIKey == "" {
		errs = append(errs, errors.New("weather.openweather_api_key is required"))
	}

	switch c.Storage.Backend {
	case StorageFile:
		if c.Storage.DataDir == "" {
			errs = append(errs, errors.New("storage.data_dir is required for the file backend"))
		}
	case StorageRedis, StoragePostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown storage.backend %q", c.Storage.Backend))
	}

	if c.Storage.SyncInterval <= 0 {
		errs = append(errs, errors.New("storage.sync_interval must be positive"))
	}
	if c.Geocoding.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("geocoding.requests_per_second must be positive"))
	}

	return errors.Join(errs...)
}
