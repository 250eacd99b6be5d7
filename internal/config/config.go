package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	DatabaseURL string
	RedisURL    string
	NATSURL     string
	ChannelBase string
	JWTSecret   string

	RateBurstMax        int
	RateBurstWindow     time.Duration
	RateSustainedMax    int
	RateSustainedWindow time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SAHAYATA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Sahayata API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("channel.base", "sahayata")
	v.SetDefault("rate.burst_max", 1)
	v.SetDefault("rate.burst_window", "1s")
	v.SetDefault("rate.sustained_max", 30)
	v.SetDefault("rate.sustained_window", "1m")

	burstWindow, err := time.ParseDuration(v.GetString("rate.burst_window"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid burst window: %w", err)
	}
	sustainedWindow, err := time.ParseDuration(v.GetString("rate.sustained_window"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid sustained window: %w", err)
	}

	cfg := Config{
		AppName:             v.GetString("app.name"),
		AppEnv:              v.GetString("app.env"),
		AppPort:             v.GetString("app.port"),
		DatabaseURL:         v.GetString("database.url"),
		RedisURL:            v.GetString("redis.url"),
		NATSURL:             v.GetString("nats.url"),
		ChannelBase:         v.GetString("channel.base"),
		JWTSecret:           v.GetString("jwt.secret"),
		RateBurstMax:        v.GetInt("rate.burst_max"),
		RateBurstWindow:     burstWindow,
		RateSustainedMax:    v.GetInt("rate.sustained_max"),
		RateSustainedWindow: sustainedWindow,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.RateBurstMax <= 0 {
		cfg.RateBurstMax = 1
	}
	if cfg.RateSustainedMax <= 0 {
		cfg.RateSustainedMax = 30
	}

	return cfg, nil
}
