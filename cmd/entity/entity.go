// Package entity provides the entity commands
package entity

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AlanZ-Git/HealthDatabase/cmd/render"
	"github.com/AlanZ-Git/HealthDatabase/internal/config"
)

// Command creates and returns the entity command
func Command(app *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "entity",
		Aliases: []string{"user"},
		Short:   "Manage the people whose records are kept",
	}

	cmd.AddCommand(listCommand(app), createCommand(app), destroyCommand(app))
	return cmd
}

func listCommand(app *config.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all entities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := app.Registry.List()
			if err != nil {
				return err
			}
			return render.List(cmd.OutOrStdout(), names, "no entities")
		},
	}
}

func createCommand(app *config.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME",
		Short: "Create an entity with empty storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Registry.Create(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Entity %q created\n", args[0])
			return nil
		},
	}
}

func destroyCommand(app *config.Context) *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "destroy NAME",
		Short: "Delete an entity's storage",
		Long: `Destroy deletes the entity's database file. Attachment copies are kept
unless --purge-attachments is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDestroy(cmd, app, args[0], purge)
		},
	}

	cmd.Flags().BoolVar(&purge, "purge-attachments", false, "Also delete the entity's attachment directory")
	return cmd
}

func runDestroy(cmd *cobra.Command, app *config.Context, name string, purge bool) error {
	if err := app.Registry.Destroy(name); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Entity %q destroyed\n", name)

	if !purge {
		return nil
	}
	removed, err := app.Registry.PurgeAttachments(name)
	if err != nil {
		return fmt.Errorf("entity destroyed but attachments were not purged: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d attachment files removed\n", removed)
	return nil
}
