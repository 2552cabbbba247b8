package config

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	once sync.Once
	v    *viper.Viper
)

// source returns the process-wide viper instance. Environment variables always win;
// CONFIG_FILE may point at a yaml/json/env file with the same keys.
func source() *viper.Viper {
	once.Do(func() {
		v = viper.New()
		v.AutomaticEnv()
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		if file := strings.TrimSpace(v.GetString("CONFIG_FILE")); file != "" {
			v.SetConfigFile(file)
			if err := v.ReadInConfig(); err != nil {
				panic(fmt.Errorf("read config file %s: %w", file, err))
			}
		}
	})
	return v
}

func String(key, fallback string) string {
	s := strings.TrimSpace(source().GetString(key))
	if s == "" {
		return fallback
	}
	return s
}

func RequiredString(key string) (string, error) {
	s := strings.TrimSpace(source().GetString(key))
	if s == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return s, nil
}

func Port(key, fallback string) (string, error) {
	s := String(key, fallback)
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		return "", fmt.Errorf("%s must be a valid TCP port (got %q)", key, s)
	}
	return s, nil
}

// Int returns fallback when the key is unset, malformed or not positive.
func Int(key string, fallback int) int {
	n, err := strconv.Atoi(String(key, ""))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// Float returns fallback when the key is unset or malformed.
func Float(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(String(key, ""), 64)
	if err != nil {
		return fallback
	}
	return f
}

func Bool(key string, fallback bool) bool {
	switch strings.ToLower(String(key, "")) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

// Duration accepts Go duration strings ("1500ms", "2m") or a bare number of seconds.
func Duration(key string, fallback time.Duration) time.Duration {
	s := String(key, "")
	if s == "" {
		return fallback
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func List(key, fallback string) []string {
	var out []string
	for _, item := range strings.Split(String(key, fallback), ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
