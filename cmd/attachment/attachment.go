// Package attachment provides the attachment commands
package attachment

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AlanZ-Git/HealthDatabase/cmd/record"
	"github.com/AlanZ-Git/HealthDatabase/cmd/render"
	"github.com/AlanZ-Git/HealthDatabase/internal/config"
	"github.com/AlanZ-Git/HealthDatabase/internal/datastore"
)

// Command creates and returns the attachment command
func Command(app *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "attachment",
		Aliases: []string{"att"},
		Short:   "Manage files attached to visit records",
	}

	cmd.AddCommand(
		addCommand(app),
		listCommand(app),
		deleteCommand(app),
		replaceCommand(app),
		verifyCommand(app),
		orphansCommand(app),
		pruneCommand(app),
	)
	return cmd
}

func addCommand(app *config.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "add ENTITY RECORD_ID FILE...",
		Short: "Copy files into storage and attach them to a record",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordID, err := record.ParseID(args[1])
			if err != nil {
				return err
			}

			added, err := app.Store(args[0]).AddAttachments(cmd.Context(), recordID, args[2:])
			for _, a := range added {
				fmt.Fprintf(cmd.OutOrStdout(), "Attachment %d stored as %s\n", a.ID, a.Path)
			}
			if skipped := len(args[2:]) - len(added); skipped > 0 && err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%d missing files skipped\n", skipped)
			}
			return err
		},
	}
}

func listCommand(app *config.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "list ENTITY RECORD_ID",
		Short: "List the attachments of a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordID, err := record.ParseID(args[1])
			if err != nil {
				return err
			}

			infos, err := app.Store(args[0]).ListAttachments(cmd.Context(), recordID)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(infos))
			for _, a := range infos {
				rows = append(rows, []string{strconv.FormatInt(a.ID, 10), a.DisplayName, a.Path})
			}
			return render.Table(cmd.OutOrStdout(), []string{"id", "name", "path"}, rows, "no attachments")
		},
	}
}

func deleteCommand(app *config.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ENTITY ATTACHMENT_ID",
		Short: "Remove an attachment and its stored copy",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := record.ParseID(args[1])
			if err != nil {
				return err
			}
			if err := app.Store(args[0]).DeleteAttachment(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Attachment %d deleted\n", id)
			return nil
		},
	}
}

func replaceCommand(app *config.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "replace ENTITY ATTACHMENT_ID FILE",
		Short: "Replace the stored copy of an attachment with another file",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := record.ParseID(args[1])
			if err != nil {
				return err
			}
			att, err := app.Store(args[0]).ReplaceAttachment(cmd.Context(), id, args[2])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Attachment %d stored as %s\n", att.ID, att.Path)
			return nil
		},
	}
}

func verifyCommand(app *config.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "verify ENTITY RECORD_ID",
		Short: "Check that every attachment of a record still has its file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordID, err := record.ParseID(args[1])
			if err != nil {
				return err
			}

			statuses, err := app.Store(args[0]).VerifyAttachments(cmd.Context(), recordID)
			if err != nil {
				return err
			}
			return renderStatuses(cmd, statuses)
		},
	}
}

func renderStatuses(cmd *cobra.Command, statuses []datastore.AttachmentStatus) error {
	rows := make([][]string, 0, len(statuses))
	missing := 0
	for _, s := range statuses {
		state := "ok"
		if s.Missing {
			state = "missing"
			missing++
		}
		rows = append(rows, []string{strconv.FormatInt(s.Attachment.ID, 10), s.Attachment.DisplayName, state})
	}
	if err := render.Table(cmd.OutOrStdout(), []string{"id", "name", "file"}, rows, "no attachments"); err != nil {
		return err
	}
	if missing > 0 {
		return fmt.Errorf("%d of %d attachment files are missing", missing, len(statuses))
	}
	return nil
}

func orphansCommand(app *config.Context) *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   "orphans ENTITY",
		Short: "List stored files that no attachment refers to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := app.Store(args[0])
			if remove {
				removed, err := store.RemoveOrphanedFiles(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d orphaned files removed\n", removed)
				return nil
			}

			orphans, err := store.OrphanedFiles(cmd.Context())
			if err != nil {
				return err
			}
			return render.List(cmd.OutOrStdout(), orphans, "no orphaned files")
		},
	}

	cmd.Flags().BoolVar(&remove, "remove", false, "Delete the orphaned files")
	return cmd
}

func pruneCommand(app *config.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "prune ENTITY",
		Short: "Drop attachments whose file or record no longer exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pruned, err := app.Store(args[0]).PruneMissingAttachments(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d dangling attachments pruned\n", pruned)
			return nil
		},
	}
}
