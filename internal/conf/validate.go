// conf/validate.go

package conf

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	ve.Errors = append(ve.Errors, validateSpeciesSettings(&settings.Species)...)
	ve.Errors = append(ve.Errors, validateBreedingSettings(&settings.Breeding)...)
	ve.Errors = append(ve.Errors, validateAnalysisSettings(&settings.Analysis)...)
	ve.Errors = append(ve.Errors, validateOutputSettings(&settings.Output)...)

	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		ve.Errors = append(ve.Errors, "sentry is enabled but no DSN is set")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateSpeciesSettings(s *SpeciesSettings) []string {
	if strings.TrimSpace(s.Target) == "" {
		return []string{"species target must not be empty"}
	}
	return nil
}

func validateBreedingSettings(s *BreedingSettings) []string {
	var errs []string
	if s.File == "" {
		errs = append(errs, "breeding file must be set")
	}
	w := s.Window
	if w.MinFirst > w.MaxFirst {
		errs = append(errs, fmt.Sprintf("breeding window minfirst (%d) is after maxfirst (%d)", w.MinFirst, w.MaxFirst))
	}
	if w.MinLast > w.MaxLast {
		errs = append(errs, fmt.Sprintf("breeding window minlast (%d) is after maxlast (%d)", w.MinLast, w.MaxLast))
	}
	return errs
}

func validateAnalysisSettings(s *AnalysisSettings) []string {
	var errs []string

	if s.Latitude < -90 || s.Latitude > 90 {
		errs = append(errs, "latitude must be between -90 and 90")
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		errs = append(errs, "longitude must be between -180 and 180")
	}
	if s.MinConfidence < 0 || s.MinConfidence > 1 {
		errs = append(errs, "minconfidence must be between 0 and 1")
	}
	if s.Threads < 0 {
		errs = append(errs, "threads must not be negative")
	}
	if s.Limit < 0 {
		errs = append(errs, "limit must not be negative")
	}
	if s.RateLimit < 0 {
		errs = append(errs, "ratelimit must not be negative")
	}
	if len(s.Extensions) == 0 {
		errs = append(errs, "at least one audio extension is required")
	}
	if s.Classifier.Command == "" {
		errs = append(errs, "classifier command must be set")
	}

	switch s.Window.Mode {
	case WindowModeFixed:
		for _, bound := range []string{s.Window.Start, s.Window.End} {
			if _, err := time.Parse("150405", bound); err != nil {
				errs = append(errs, fmt.Sprintf("window bound %q is not HHMMSS", bound))
			}
		}
		if s.Window.Start >= s.Window.End {
			errs = append(errs, fmt.Sprintf("window start %s must be before end %s", s.Window.Start, s.Window.End))
		}
	case WindowModeSunrise:
		if s.Window.Before < 0 || s.Window.After < 0 {
			errs = append(errs, "sunrise window offsets must not be negative")
		}
		if _, err := time.LoadLocation(s.Window.Timezone); err != nil {
			errs = append(errs, fmt.Sprintf("invalid window timezone %q", s.Window.Timezone))
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown window mode %q, want %q or %q", s.Window.Mode, WindowModeFixed, WindowModeSunrise))
	}

	return errs
}

func validateOutputSettings(s *OutputSettings) []string {
	var errs []string
	if s.SQLite.Enabled && s.SQLite.Path == "" {
		errs = append(errs, "sqlite output is enabled but no path is set")
	}
	if s.MySQL.Enabled {
		if s.MySQL.Host == "" || s.MySQL.Database == "" || s.MySQL.Username == "" {
			errs = append(errs, "mysql output requires host, database and username")
		}
	}
	return errs
}
