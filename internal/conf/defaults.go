package conf

import (
	"github.com/spf13/viper"

	"github.com/AlanZ-Git/HealthDatabase/internal/logger"
)

// Default storage locations, relative to the working directory
const (
	DefaultDataDir      = "data"
	DefaultAppendixDir  = "Appendix"
	DefaultHistoryLimit = 5
	DefaultSlowQueryMs  = 200
)

// setDefaultConfig sets the default value of every configuration parameter
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("storage.datadir", DefaultDataDir)
	v.SetDefault("storage.appendixdir", DefaultAppendixDir)
	v.SetDefault("storage.slowquery", DefaultSlowQueryMs)

	v.SetDefault("history.limit", DefaultHistoryLimit)

	v.SetDefault("metrics.textfile", "")

	v.SetDefault("logging.default_level", logger.DefaultLogLevel)
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	v.SetDefault("logging.console.level", logger.DefaultLogLevel)
	v.SetDefault("logging.file_output.enabled", logger.DefaultFileEnabled)
	v.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	v.SetDefault("logging.file_output.level", logger.DefaultLogLevel)
	v.SetDefault("logging.file_output.max_size", logger.DefaultMaxSize)
	v.SetDefault("logging.file_output.max_age", logger.DefaultMaxAge)
	v.SetDefault("logging.file_output.max_rotated_files", logger.DefaultMaxRotatedFiles)
	v.SetDefault("logging.file_output.compress", false)
}
