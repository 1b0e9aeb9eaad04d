package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// FromEnv builds a Config from TERMINAL_* environment variables, loading a
// .env file from the working directory first when one exists:
//
//	TERMINAL_DEBUG               bool
//	TERMINAL_TOKEN_FETCH_TIMEOUT duration, e.g. "15s"
//	TERMINAL_CONNECT_TIMEOUT     duration
//	TERMINAL_REQUEST_TIMEOUT     duration
//	TERMINAL_CONFIRM_TIMEOUT     duration
//	TERMINAL_COLLECT_TIMEOUT     duration
//
// Unset variables keep their zero values; Timeouts.WithDefaults fills them
// at Terminal construction.
func FromEnv() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	if v := os.Getenv("TERMINAL_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid TERMINAL_DEBUG %q: %w", v, err)
		}
		cfg.Debug = debug
	}

	for _, entry := range []struct {
		key string
		dst *time.Duration
	}{
		{"TERMINAL_TOKEN_FETCH_TIMEOUT", &cfg.Timeouts.TokenFetch},
		{"TERMINAL_CONNECT_TIMEOUT", &cfg.Timeouts.Connect},
		{"TERMINAL_REQUEST_TIMEOUT", &cfg.Timeouts.Request},
		{"TERMINAL_CONFIRM_TIMEOUT", &cfg.Timeouts.Confirm},
		{"TERMINAL_COLLECT_TIMEOUT", &cfg.Timeouts.Collect},
	} {
		v := os.Getenv(entry.key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", entry.key, v, err)
		}
		*entry.dst = d
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
