// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default values shared with the embedded config.yaml.
const (
	DefaultSpecies       = "Parus major"
	DefaultLatitude      = 51.775036
	DefaultLongitude     = -1.336488
	DefaultMinConfidence = 0.8
	DefaultThreads       = 4
	DefaultWindowStart   = "033000"
	DefaultWindowEnd     = "063000"

	WindowModeFixed   = "fixed"
	WindowModeSunrise = "sunrise"
)

// setDefaultConfig sets default values for each configuration parameter.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("paths.project", ".")
	v.SetDefault("paths.data", "data")
	v.SetDefault("paths.metadata", "data/metadata")
	v.SetDefault("paths.derived", "data/derived")
	v.SetDefault("paths.logs", "logs")

	v.SetDefault("species.target", DefaultSpecies)

	v.SetDefault("breeding.file", "main.csv")
	v.SetDefault("breeding.window.minfirst", -10)
	v.SetDefault("breeding.window.maxfirst", -3)
	v.SetDefault("breeding.window.minlast", 1)
	v.SetDefault("breeding.window.maxlast", 10)

	v.SetDefault("analysis.latitude", DefaultLatitude)
	v.SetDefault("analysis.longitude", DefaultLongitude)
	v.SetDefault("analysis.minconfidence", DefaultMinConfidence)
	v.SetDefault("analysis.threads", DefaultThreads)
	v.SetDefault("analysis.window.mode", WindowModeFixed)
	v.SetDefault("analysis.window.start", DefaultWindowStart)
	v.SetDefault("analysis.window.end", DefaultWindowEnd)
	v.SetDefault("analysis.window.before", 60*time.Minute)
	v.SetDefault("analysis.window.after", 120*time.Minute)
	v.SetDefault("analysis.window.timezone", "UTC")
	v.SetDefault("analysis.extensions", []string{".wav", ".flac"})
	v.SetDefault("analysis.limit", 0)
	v.SetDefault("analysis.resume", true)
	v.SetDefault("analysis.ratelimit", 0.0)
	v.SetDefault("analysis.classifier.command", "birdnet-go")
	v.SetDefault("analysis.classifier.args", []string{
		"file", "{{.Path}}",
		"--latitude", "{{.Latitude}}",
		"--longitude", "{{.Longitude}}",
		"--threshold", "{{.MinConfidence}}",
		"--output", "{{.OutputDir}}",
		"--format", "csv",
	})
	v.SetDefault("analysis.classifier.timeout", 10*time.Minute)

	v.SetDefault("output.sqlite.enabled", false)
	v.SetDefault("output.sqlite.path", "majorvocal.db")
	v.SetDefault("output.mysql.enabled", false)
	v.SetDefault("output.mysql.username", "")
	v.SetDefault("output.mysql.password", "")
	v.SetDefault("output.mysql.database", "majorvocal")
	v.SetDefault("output.mysql.host", "localhost")
	v.SetDefault("output.mysql.port", "3306")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("metrics.listen", "")

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", true)
	v.SetDefault("logging.file_output.path", "")
	v.SetDefault("logging.file_output.level", "debug")
}
