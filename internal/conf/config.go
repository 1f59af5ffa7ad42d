// config.go: settings struct for the majorvocal pipeline and the functions to load and save it.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/nilomr/majorvocal/internal/errors"
	"github.com/nilomr/majorvocal/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// PathSettings locates the project tree. Relative paths resolve against Project.
type PathSettings struct {
	Project  string // project root
	Data     string // raw recordings, laid out as <site>/<pnum>/<stem>.WAV
	Metadata string // breeding metadata directory
	Derived  string // pipeline outputs
	Logs     string // per-run log directory
}

// SpeciesSettings selects the species extracted from classifier output.
type SpeciesSettings struct {
	Target string // scientific name, matched exactly
}

// LayWindow bounds the days_from_lay coverage a nest needs to enter the
// lay-window subset.
type LayWindow struct {
	MinFirst int // earliest allowed first recording day relative to lay date
	MaxFirst int // latest allowed first recording day
	MinLast  int // earliest allowed last recording day
	MaxLast  int // latest allowed last recording day
}

// BreedingSettings describes the breeding metadata table.
type BreedingSettings struct {
	File   string    // file name inside Paths.Metadata
	Window LayWindow // lay-window subset bounds
}

// WindowSettings selects which recordings of a day are classified.
type WindowSettings struct {
	Mode     string        // "fixed" or "sunrise"
	Start    string        // HHMMSS, exclusive lower bound in fixed mode
	End      string        // HHMMSS, exclusive upper bound in fixed mode
	Before   time.Duration // sunrise mode: accepted time before sunrise
	After    time.Duration // sunrise mode: accepted time after sunrise
	Timezone string        // sunrise mode: zone of the recording clock, IANA name
}

// ClassifierSettings configures the external classifier command.
type ClassifierSettings struct {
	Command string        // executable name or path
	Args    []string      // text/template arguments, see analysis.ClassifierRequest
	Timeout time.Duration // per-file timeout, 0 disables
}

// AnalysisSettings configures the inference stage.
type AnalysisSettings struct {
	Latitude      float64            // recording site latitude
	Longitude     float64            // recording site longitude
	MinConfidence float64            // segments below this confidence are discarded
	Threads       int                // number of classifier workers
	Window        WindowSettings     // dawn window filter
	Extensions    []string           // audio file extensions, case-insensitive
	Limit         int                // cap on files per run, 0 for no cap
	Resume        bool               // reuse per-file JSON from earlier runs
	RateLimit     float64            // max classifier starts per second, 0 for no limit
	Classifier    ClassifierSettings // external classifier
}

// SQLiteSettings configures SQLite output.
type SQLiteSettings struct {
	Enabled bool   // true to write results to SQLite
	Path    string // database file, relative to Paths.Derived
}

// MySQLSettings configures MySQL output.
type MySQLSettings struct {
	Enabled  bool   // true to write results to MySQL
	Username string // MySQL database username
	Password string // MySQL database user password
	Database string // MySQL database name
	Host     string // MySQL database host
	Port     string // MySQL database port
}

// OutputSettings selects database outputs in addition to the CSV tables.
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// MetricsSettings configures Prometheus metrics export.
type MetricsSettings struct {
	Enabled  bool   // true to collect pipeline metrics
	Textfile string // node_exporter textfile path written at the end of a run
	Listen   string // optional address for a /metrics endpoint while running
}

// SentrySettings configures error telemetry.
type SentrySettings struct {
	Enabled bool
	DSN     string
}

// Settings is the full pipeline configuration. It is built once at start-up
// and passed to every stage.
type Settings struct {
	Debug    bool
	Paths    PathSettings
	Species  SpeciesSettings
	Breeding BreedingSettings
	Analysis AnalysisSettings
	Output   OutputSettings
	Metrics  MetricsSettings
	Sentry   SentrySettings
	Logging  logger.LoggingConfig
}

// NewViper returns a viper instance with defaults and environment bindings.
// Command-line flags are bound onto it before Load.
func NewViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaultConfig(v)
	if err := bindEnvVars(v); err != nil {
		return v, err
	}
	return v, nil
}

// Load reads configFile (or config.yaml from the default search paths when
// empty) into v and returns validated settings. A missing config file in the
// search paths is not an error; defaults apply.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		for _, path := range GetDefaultConfigPaths() {
			v.AddConfigPath(path)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.New(fmt.Errorf("error reading config file: %w", err)).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Context("operation", "read_config").
				Build()
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal_config").
			Build()
	}

	settings.normalize()

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error validating settings: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "validate_config").
			Build()
	}

	return settings, nil
}

// DefaultConfig returns the embedded default config.yaml.
func DefaultConfig() ([]byte, error) {
	return fs.ReadFile(configFiles, "config.yaml")
}

// WriteDefaultConfig writes the embedded default configuration to path unless
// a file already exists there. It reports whether a file was written.
func WriteDefaultConfig(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	data, err := DefaultConfig()
	if err != nil {
		return false, err
	}

	if err := WriteFileAtomic(path, data); err != nil {
		return false, errors.New(err).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("operation", "write_default_config").
			Build()
	}
	return true, nil
}

// SaveYAMLConfig writes the effective settings to configPath.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}
	return WriteFileAtomic(configPath, yamlData)
}

// WriteFileAtomic writes data through a temporary file in the target
// directory and renames it into place, so readers never see a partial file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directory %s: %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, path); err != nil {
		return fmt.Errorf("error replacing %s: %w", path, err)
	}
	return nil
}
