// Package conf loads, validates and persists application settings.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/AlanZ-Git/HealthDatabase/internal/errors"
	"github.com/AlanZ-Git/HealthDatabase/internal/logger"
)

// ConfigFileName is the base name of the configuration file
const ConfigFileName = "config.yaml"

// envPrefix namespaces environment overrides, e.g. HEALTHDB_STORAGE_DATADIR
const envPrefix = "HEALTHDB"

// StorageSettings locates per-entity database files and attachment copies
type StorageSettings struct {
	DataDir     string `mapstructure:"datadir" yaml:"datadir"`         // directory holding one <entity>.sqlite per entity
	AppendixDir string `mapstructure:"appendixdir" yaml:"appendixdir"` // root of per-entity attachment directories
	SlowQuery   int    `mapstructure:"slowquery" yaml:"slowquery"`     // slow statement warning threshold in ms, 0 disables
}

// HistorySettings controls autocomplete suggestions
type HistorySettings struct {
	Limit int `mapstructure:"limit" yaml:"limit"` // default number of suggestions per field
}

// MetricsSettings controls the Prometheus textfile export
type MetricsSettings struct {
	TextFile string `mapstructure:"textfile" yaml:"textfile"` // empty disables export
}

// Settings contains all configuration options
type Settings struct {
	Debug   bool                 `mapstructure:"debug" yaml:"debug"`
	Storage StorageSettings      `mapstructure:"storage" yaml:"storage"`
	History HistorySettings      `mapstructure:"history" yaml:"history"`
	Metrics MetricsSettings      `mapstructure:"metrics" yaml:"metrics"`
	Logging logger.LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// settingsMutex serializes loads through the global viper instance
var settingsMutex sync.Mutex

// Load reads settings through the global viper instance, so flags bound by
// the CLI take precedence over the file. An explicit configFile skips the
// default search paths.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	var paths []string
	if configFile == "" {
		var err error
		paths, err = GetDefaultConfigPaths()
		if err != nil {
			return nil, err
		}
	}

	settings, err := load(viper.GetViper(), configFile, paths)
	if err != nil {
		return nil, err
	}

	return settings, nil
}

// load initializes v with defaults, reads the configuration and validates it
func load(v *viper.Viper, configFile string, configPaths []string) (*Settings, error) {
	if err := initViper(v, configFile, configPaths); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.Newf("error unmarshaling config into struct: %w", err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

// initViper sets defaults and reads the configuration file, creating a
// default one when none exists
func initViper(v *viper.Viper, configFile string, configPaths []string) error {
	setDefaultConfig(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return createDefaultConfig(v, configFile)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, path := range configPaths {
			v.AddConfigPath(path)
		}
	}

	err := v.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) && len(configPaths) > 0 {
			return createDefaultConfig(v, filepath.Join(configPaths[0], ConfigFileName))
		}
		return errors.Newf("fatal error reading config file: %w", err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	return nil
}

// createDefaultConfig writes the current defaults to configPath and reads it back
func createDefaultConfig(v *viper.Viper, configPath string) error {
	defaults := &Settings{}
	if err := v.Unmarshal(defaults); err != nil {
		return fmt.Errorf("error building default settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return errors.New(fmt.Errorf("error creating directories for config file: %w", err)).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("operation", "create-default-config").
			Build()
	}

	if err := SaveYAMLConfig(configPath, defaults); err != nil {
		return err
	}

	logger.Global().Module("conf").Info("created default config file",
		logger.String("path", configPath))

	v.SetConfigFile(configPath)
	return v.ReadInConfig()
}

// SaveYAMLConfig writes settings to configPath atomically via a temporary file.
// Existing comments and layout are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return errors.New(fmt.Errorf("error replacing config file: %w", err)).
			Component("conf").
			Category(errors.CategoryFileIO).
			FileContext(configPath, int64(len(yamlData))).
			Build()
	}

	return nil
}
