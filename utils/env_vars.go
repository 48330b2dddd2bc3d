package utils

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

type envValue interface {
	string | int | bool | float64 | time.Duration
}

// GetEnv reads an environment variable and converts it to the type of the default value. An unset or
// empty variable yields the default; a value that cannot be parsed is a configuration error and panics.
func GetEnv[T envValue](name string, defaultValue T) T {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return defaultValue
	}
	value, err := parseEnv[T](raw)
	if err != nil {
		panic(fmt.Sprintf("environment variable %s is not valid: %s", name, err))
	}
	return value
}

func GetRequiredEnv[T envValue](name string) T {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		log.Fatalf("%s environment variable is required", name)
	}
	value, err := parseEnv[T](raw)
	if err != nil {
		log.Fatalf("environment variable %s is not valid: %s", name, err)
	}
	return value
}

func parseEnv[T envValue](raw string) (T, error) {
	var value T
	var out any

	switch any(value).(type) {
	case time.Duration:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return value, err
		}
		out = d
	case bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return value, err
		}
		out = b
	case int:
		i, err := strconv.Atoi(raw)
		if err != nil {
			return value, err
		}
		out = i
	case float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return value, err
		}
		out = f
	default:
		out = raw
	}

	return out.(T), nil
}
