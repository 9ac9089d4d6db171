// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads the daemon configuration from an optional YAML file
// and ADBRIDGE_ environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "ADBRIDGE"

type Config struct {
	ListenAddr  string
	AdminAddr   string
	Environment string
	LogLevel    string

	SDK       SDKConfig
	Events    EventsConfig
	API       APIConfig
	Simulated SimulatedConfig
}

type SDKConfig struct {
	AppKey      string
	Environment string
}

type EventsConfig struct {
	Buffer           int
	SubscriberBuffer int
}

type APIConfig struct {
	CORSOrigins []string
	RateLimit   float64
	RateBurst   int
}

type SimulatedConfig struct {
	Latency  time.Duration
	FillRate float64
}

// Load reads path when it is not empty, then applies environment
// overrides such as ADBRIDGE_LISTEN_ADDR or ADBRIDGE_SIMULATED_FILL_RATE.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("admin_addr", ":9090")
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("app_key", "")
	v.SetDefault("sdk_environment", "production")
	v.SetDefault("event_buffer", 1024)
	v.SetDefault("subscriber_buffer", 256)
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("rate_limit", 50.0)
	v.SetDefault("rate_burst", 100)
	v.SetDefault("simulated.latency", "0s")
	v.SetDefault("simulated.fill_rate", 0.9)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	fillRate := v.GetFloat64("simulated.fill_rate")
	if fillRate < 0 {
		fillRate = 0
	}
	if fillRate > 1 {
		fillRate = 1
	}

	eventBuffer := v.GetInt("event_buffer")
	if eventBuffer <= 0 {
		eventBuffer = 1024
	}
	subscriberBuffer := v.GetInt("subscriber_buffer")
	if subscriberBuffer <= 0 {
		subscriberBuffer = 256
	}

	rateBurst := v.GetInt("rate_burst")
	if rateBurst <= 0 {
		rateBurst = 1
	}

	cfg := Config{
		ListenAddr:  strings.TrimSpace(v.GetString("listen_addr")),
		AdminAddr:   strings.TrimSpace(v.GetString("admin_addr")),
		Environment: strings.ToLower(strings.TrimSpace(v.GetString("environment"))),
		LogLevel:    strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		SDK: SDKConfig{
			AppKey:      strings.TrimSpace(v.GetString("app_key")),
			Environment: strings.TrimSpace(v.GetString("sdk_environment")),
		},
		Events: EventsConfig{
			Buffer:           eventBuffer,
			SubscriberBuffer: subscriberBuffer,
		},
		API: APIConfig{
			CORSOrigins: parseList(v.GetStringSlice("cors_origins")),
			RateLimit:   v.GetFloat64("rate_limit"),
			RateBurst:   rateBurst,
		},
		Simulated: SimulatedConfig{
			Latency:  v.GetDuration("simulated.latency"),
			FillRate: fillRate,
		},
	}

	if cfg.ListenAddr == "" {
		return Config{}, fmt.Errorf("listen_addr must not be empty")
	}
	return cfg, nil
}

// parseList accepts both YAML lists and comma separated env values
func parseList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c Config) IsLocalDevelopment() bool {
	switch c.Environment {
	case "", "local", "dev", "development", "test":
		return true
	default:
		return false
	}
}
