package util

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/OFFIS-RIT/stencil/pkg/logger"
)

// LoadEnv loads files, or .env in the working directory when none are
// given. Variables already set in the environment are kept.
func LoadEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		logger.Debug("No env file loaded, using system environment variables", "files", files)
	}
}

func GetEnv(key string) string {
	return GetEnvString(key, "")
}

// GetEnvString returns the trimmed value of key, or defaultValue when the
// variable is unset or blank.
func GetEnvString(key string, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	value = strings.TrimSpace(value)
	if !exists || value == "" {
		return defaultValue
	}
	return value
}

func GetEnvInt(key string, defaultValue int) int {
	return getEnvParsed(key, defaultValue, strconv.Atoi)
}

func GetEnvFloat(key string, defaultValue float64) float64 {
	return getEnvParsed(key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

func GetEnvBool(key string, defaultValue bool) bool {
	return getEnvParsed(key, defaultValue, strconv.ParseBool)
}

// GetEnvDuration accepts Go durations like "90s" as well as bare seconds.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	return getEnvParsed(key, defaultValue, func(s string) (time.Duration, error) {
		if secs, err := strconv.Atoi(s); err == nil {
			return time.Duration(secs) * time.Second, nil
		}
		return time.ParseDuration(s)
	})
}

// GetEnvList splits a comma separated value. Blank items are dropped.
func GetEnvList(key string, defaultValue []string) []string {
	value := GetEnv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for item := range strings.SplitSeq(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvParsed[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	value := GetEnv(key)
	if value == "" {
		return defaultValue
	}
	v, err := parse(value)
	if err != nil {
		logger.Warn("Ignoring invalid environment variable", "key", key, "value", value, "err", err)
		return defaultValue
	}
	return v
}
