package conf

import (
	"fmt"
	"path/filepath"
	"strings"
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

	if err := validateStorageSettings(&settings.Storage); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if settings.History.Limit <= 0 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("history.limit must be positive, got %d", settings.History.Limit))
	}

	if err := validateLogLevel(settings.Logging.DefaultLevel); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateStorageSettings checks that data and attachment roots are usable and distinct
func validateStorageSettings(s *StorageSettings) error {
	if strings.TrimSpace(s.DataDir) == "" {
		return fmt.Errorf("storage.datadir must not be empty")
	}
	if strings.TrimSpace(s.AppendixDir) == "" {
		return fmt.Errorf("storage.appendixdir must not be empty")
	}
	if filepath.Clean(s.DataDir) == filepath.Clean(s.AppendixDir) {
		return fmt.Errorf("storage.datadir and storage.appendixdir must differ")
	}
	if s.SlowQuery < 0 {
		return fmt.Errorf("storage.slowquery must not be negative")
	}
	return nil
}

func validateLogLevel(level string) error {
	switch level {
	case "", "trace", "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("unknown log level %q", level)
	}
}
