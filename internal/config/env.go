// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/sersery88/flight-ibe/internal/log"
)

// isSensitiveEnv reports whether the value of key must never be logged.
func isSensitiveEnv(key string) bool {
	return isSensitiveKey(key) || strings.Contains(strings.ToLower(key), "redis_url")
}

// parseEnv reads key, converts it with parse and logs which layer won. An
// unset or empty variable, or one that fails to parse, yields def.
func parseEnv[T any](logger zerolog.Logger, key string, def T, kind string, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		ev := logger.Debug().Str("key", key).Str("source", "default")
		if !isSensitiveEnv(key) {
			ev = ev.Interface("default", def)
		}
		ev.Msg("using default value")
		return def
	}
	v, err := parse(raw)
	if err != nil {
		ev := logger.Warn().Str("key", key)
		if !isSensitiveEnv(key) {
			ev = ev.Str("value", raw)
		}
		ev.Interface("default", def).Msgf("invalid %s in environment variable, using default", kind)
		return def
	}
	ev := logger.Debug().Str("key", key).Str("source", "environment")
	if isSensitiveEnv(key) {
		ev = ev.Bool("sensitive", true)
	} else {
		ev = ev.Interface("value", v)
	}
	ev.Msg("using environment variable")
	return v
}

func envLogger() zerolog.Logger { return xglog.WithComponent("config") }

// ParseString reads a string from the environment or returns defaultValue.
// Values of secret-looking keys are never logged.
func ParseString(key, defaultValue string) string {
	return parseEnv(envLogger(), key, defaultValue, "string", func(s string) (string, error) {
		return s, nil
	})
}

// ParseInt reads an integer from the environment or returns defaultValue.
func ParseInt(key string, defaultValue int) int {
	return parseEnv(envLogger(), key, defaultValue, "integer", strconv.Atoi)
}

// ParseFloat reads a float64 from the environment or returns defaultValue.
func ParseFloat(key string, defaultValue float64) float64 {
	return parseEnv(envLogger(), key, defaultValue, "float", func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// ParseDuration reads a Go duration ("5s", "2m") from the environment or
// returns defaultValue.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	return parseEnv(envLogger(), key, defaultValue, "duration", time.ParseDuration)
}

// ParseBool reads a boolean from the environment or returns defaultValue.
// It accepts true/false, 1/0 and yes/no, case-insensitive.
func ParseBool(key string, defaultValue bool) bool {
	return parseEnv(envLogger(), key, defaultValue, "boolean", func(s string) (bool, error) {
		switch strings.ToLower(s) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
		return false, fmt.Errorf("not a boolean: %q", s)
	})
}
