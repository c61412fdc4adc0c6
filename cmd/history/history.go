// Package history provides the autocomplete suggestion command
package history

import (
	"github.com/spf13/cobra"

	"github.com/AlanZ-Git/HealthDatabase/cmd/render"
	"github.com/AlanZ-Git/HealthDatabase/internal/config"
	"github.com/AlanZ-Git/HealthDatabase/internal/datastore"
)

// Command creates and returns the history command
func Command(app *config.Context) *cobra.Command {
	var (
		location string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "history ENTITY FIELD",
		Short: "Suggest previously entered values, most recent first",
		Long: `History prints distinct earlier values of FIELD, which is one of
location, sub_unit or responsible_party. The sub_unit and responsible_party
suggestions are limited to one location with --location.`,
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(datastore.HistoryLocation), string(datastore.HistorySubUnit), string(datastore.HistoryResponsibleParty)},
		RunE: func(cmd *cobra.Command, args []string) error {
			var scope *string
			if cmd.Flags().Changed("location") {
				scope = &location
			}

			values, err := app.Store(args[0]).DistinctValues(cmd.Context(), datastore.HistoryField(args[1]), scope, limit)
			if err != nil {
				return err
			}
			return render.List(cmd.OutOrStdout(), values, "no suggestions")
		},
	}

	cmd.Flags().StringVarP(&location, "location", "l", "", "Only suggest values recorded at this location")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Number of suggestions, 0 uses the configured default")
	return cmd
}
