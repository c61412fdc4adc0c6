package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AlanZ-Git/HealthDatabase/cmd/attachment"
	"github.com/AlanZ-Git/HealthDatabase/cmd/entity"
	"github.com/AlanZ-Git/HealthDatabase/cmd/history"
	"github.com/AlanZ-Git/HealthDatabase/cmd/record"
	"github.com/AlanZ-Git/HealthDatabase/cmd/version"
	"github.com/AlanZ-Git/HealthDatabase/internal/buildinfo"
	"github.com/AlanZ-Git/HealthDatabase/internal/conf"
	"github.com/AlanZ-Git/HealthDatabase/internal/config"
)

// RootCommand creates and returns the root command. Sub-commands receive
// app, which is populated before any of them runs. The caller closes app
// once the command has finished.
func RootCommand(app *config.Context, info *buildinfo.Context) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:          "healthdb",
		Short:        "Personal health records manager",
		SilenceUsage: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, &configFile); err != nil {
		panic(err)
	}

	versionCmd := version.Command(info)

	rootCmd.AddCommand(
		entity.Command(app),
		record.Command(app),
		attachment.Command(app),
		history.Command(app),
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Skip setup for the version command
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return initialize(app, configFile)
	}

	return rootCmd
}

// initialize loads the settings, with command line flags taking precedence,
// and sets up logging, metrics and the entity registry
func initialize(app *config.Context, configFile string) error {
	settings, err := conf.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, err := config.NewContext(settings)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	*app = *ctx

	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, configFile *string) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(configFile, "config", "c", "", "Path to the configuration file")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("datadir", conf.DefaultDataDir, "Directory holding one database file per entity")
	flags.String("appendixdir", conf.DefaultAppendixDir, "Root directory of attachment copies")
	flags.String("metrics-textfile", "", "Write Prometheus metrics to this file on exit")

	bindings := map[string]string{
		"debug":               "debug",
		"storage.datadir":     "datadir",
		"storage.appendixdir": "appendixdir",
		"metrics.textfile":    "metrics-textfile",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}

	return nil
}
