package env

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// ErrEmpty is returned when a variable is unset or blank.
var ErrEmpty = errors.New("environment variable has an empty value")

// =============================================================================
// Required Environment Variables (will panic if not set)
// =============================================================================

// MustGetEnvString panics if the env var is not set
func MustGetEnvString(envName string) string {
	v, err := GetEnvString(envName)
	if err != nil {
		panic(fmt.Sprintf("REQUIRED environment variable missing or empty: %s", envName))
	}
	return v
}

// =============================================================================
// Environment Variables with Defaults
// =============================================================================

func GetEnvStringOrDefault(envName, defaultValue string) string {
	v, err := GetEnvString(envName)
	if err != nil {
		return defaultValue
	}
	return v
}

func GetEnvBoolOrDefault(envName string, defaultValue bool) bool {
	v, err := GetEnvBool(envName)
	if err != nil {
		return defaultValue
	}
	return v
}

func GetEnvIntOrDefault(envName string, defaultValue int) int {
	v, err := GetEnvInt(envName)
	if err != nil {
		return defaultValue
	}
	return v
}

func GetEnvFloat64OrDefault(envName string, defaultValue float64) float64 {
	v, err := GetEnvFloat64(envName)
	if err != nil {
		return defaultValue
	}
	return v
}

// GetEnvDurationOrDefault accepts Go durations ("2s", "1m30s") and bare
// integers, which are read as seconds.
func GetEnvDurationOrDefault(envName string, defaultValue time.Duration) time.Duration {
	v, err := GetEnvDuration(envName)
	if err != nil {
		return defaultValue
	}
	return v
}

// =============================================================================
// Core Environment Variable Getters
// =============================================================================

func SanitizeEnv(envName string) (string, error) {
	value := strings.TrimSpace(os.Getenv(envName))
	if value == "" {
		return "", fmt.Errorf("%w: %s", ErrEmpty, envName)
	}
	return value, nil
}

func GetEnvString(envName string) (string, error) {
	return SanitizeEnv(envName)
}

func GetEnvBool(envName string) (bool, error) {
	value, err := SanitizeEnv(envName)
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(value)
}

func GetEnvInt(envName string) (int, error) {
	value, err := SanitizeEnv(envName)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(value, 0, 0)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func GetEnvFloat64(envName string) (float64, error) {
	value, err := SanitizeEnv(envName)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(value, 64)
}

func GetEnvDuration(envName string) (time.Duration, error) {
	value, err := SanitizeEnv(envName)
	if err != nil {
		return 0, err
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(value)
}
