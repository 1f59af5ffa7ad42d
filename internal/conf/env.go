// env.go - environment variable configuration and validation
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by majorvocal.
const EnvPrefix = "MAJORVOCAL"

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns the environment variables with explicit validation.
// Every other key is still reachable through AutomaticEnv as
// MAJORVOCAL_<KEY_WITH_UNDERSCORES>.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"paths.project", "MAJORVOCAL_PROJECT", nil},
		{"species.target", "MAJORVOCAL_SPECIES", validateEnvNonEmpty},
		{"analysis.latitude", "MAJORVOCAL_LATITUDE", validateEnvLatitude},
		{"analysis.longitude", "MAJORVOCAL_LONGITUDE", validateEnvLongitude},
		{"analysis.minconfidence", "MAJORVOCAL_MINCONFIDENCE", validateEnvConfidence},
		{"analysis.threads", "MAJORVOCAL_THREADS", validateEnvThreads},
		{"output.mysql.password", "MAJORVOCAL_MYSQL_PASSWORD", nil},
		{"sentry.dsn", "MAJORVOCAL_SENTRY_DSN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var warnings []string
	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvNonEmpty(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("must not be blank")
	}
	return nil
}

func validateEnvFloatRange(value string, lo, hi float64) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if f < lo || f > hi {
		return fmt.Errorf("must be between %v and %v", lo, hi)
	}
	return nil
}

func validateEnvLatitude(value string) error {
	return validateEnvFloatRange(value, -90, 90)
}

func validateEnvLongitude(value string) error {
	return validateEnvFloatRange(value, -180, 180)
}

func validateEnvConfidence(value string) error {
	return validateEnvFloatRange(value, 0, 1)
}

func validateEnvThreads(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("must be an integer")
	}
	if n < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}
