package helpers

import (
	"os"
	"time"

	"github.com/valpere/geopogoda/internal/config"
)

// GetTestConfig returns a configuration suitable for testing
func GetTestConfig() *config.Config {
	return &config.Config{
		Bot: config.BotConfig{
			Token:       "test_bot_token",
			Debug:       true,
			WebhookPort: 18080,
			RateLimit:   20,
		},
		Storage: config.StorageConfig{
			Backend:      config.StorageFile,
			DataDir:      os.TempDir(),
			FileName:     "locations_test.json",
			RedisKey:     "geopogoda:test:locations",
			SyncInterval: time.Minute,
		},
		Database: config.DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "test_user",
			Password: "test_password",
			Name:     "test_db",
			SSLMode:  "disable",
		},
		Redis: config.RedisConfig{
			Host: "localhost",
			Port: 6379,
			DB:   1, // Use different DB for tests
		},
		Weather: config.WeatherConfig{
			OpenWeatherAPIKey: "test_weather_api_key",
			BaseURL:           "http://localhost:0",
			Timeout:           2 * time.Second,
		},
		Geocoding: config.GeocodingConfig{
			BaseURL:           "http://localhost:0",
			UserAgent:         "GeoPogoda-Weather-Bot/1.0 (test@geopogoda.bot)",
			RequestsPerSecond: 100,
			Timeout:           2 * time.Second,
		},
		Logging: config.LoggingConfig{
			Level:  "debug",
			Format: "console",
		},
	}
}

// GetMinimalTestConfig returns bare minimum config for unit tests
func GetMinimalTestConfig() *config.Config {
	return &config.Config{
		Bot: config.BotConfig{
			Token: "test_token",
			Debug: true,
		},
		Storage: config.StorageConfig{
			Backend:      config.StorageFile,
			DataDir:      os.TempDir(),
			SyncInterval: time.Minute,
		},
		Weather: config.WeatherConfig{
			OpenWeatherAPIKey: "test_key",
		},
		Geocoding: config.GeocodingConfig{
			UserAgent:         "Test-Bot/1.0",
			RequestsPerSecond: 1,
		},
		Logging: config.LoggingConfig{
			Level:  "debug",
			Format: "console",
		},
	}
}
