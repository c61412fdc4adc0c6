// Package record provides the visit record commands
package record

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/AlanZ-Git/HealthDatabase/cmd/render"
	"github.com/AlanZ-Git/HealthDatabase/internal/config"
	"github.com/AlanZ-Git/HealthDatabase/internal/datastore"
)

// listColumns are the record fields shown by list and search, in order
var listColumns = []string{
	datastore.FieldID,
	datastore.FieldDate,
	datastore.FieldLocation,
	datastore.FieldSubUnit,
	datastore.FieldResponsibleParty,
	datastore.FieldCategory,
	datastore.FieldReason,
	datastore.FieldOutcome,
	datastore.FieldTreatment,
	datastore.FieldRemark,
}

// Command creates and returns the record command
func Command(app *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Manage an entity's visit records",
	}

	cmd.AddCommand(
		addCommand(app),
		getCommand(app),
		listCommand(app),
		updateCommand(app),
		deleteCommand(app),
	)
	return cmd
}

// bindInputFlags registers one flag per record field
func bindInputFlags(flags *pflag.FlagSet, in *datastore.RecordInput) {
	flags.StringVar(&in.Date, "date", "", "Visit date, YYYY-MM-DD")
	flags.StringVar(&in.Location, "location", "", "Hospital or other location")
	flags.StringVar(&in.SubUnit, "sub-unit", "", "Department within the location")
	flags.StringVar(&in.ResponsibleParty, "doctor", "", "Responsible doctor")
	flags.StringVar(&in.Category, "category", "", "Organ system or other category")
	flags.StringVar(&in.Reason, "reason", "", "Reason for the visit")
	flags.StringVar(&in.Outcome, "outcome", "", "Diagnosis or other outcome")
	flags.StringVar(&in.Treatment, "treatment", "", "Medication or other treatment")
	flags.StringVar(&in.Remark, "remark", "", "Free-form remark")
}

func addCommand(app *config.Context) *cobra.Command {
	var in datastore.RecordInput

	cmd := &cobra.Command{
		Use:   "add ENTITY",
		Short: "Add a visit record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := app.Store(args[0])
			id, err := store.CreateRecord(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Record %d added\n", id)

			if len(in.AttachmentPaths) == 0 {
				return nil
			}
			atts, err := store.ListAttachments(cmd.Context(), id)
			if err != nil {
				return err
			}
			if skipped := len(in.AttachmentPaths) - len(atts); skipped > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d missing files skipped\n", skipped)
			}
			return nil
		},
	}

	bindInputFlags(cmd.Flags(), &in)
	// StringArray keeps commas, which are common in scanned file names
	cmd.Flags().StringArrayVarP(&in.AttachmentPaths, "attach", "a", nil, "File to attach, may be repeated")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func getCommand(app *config.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "get ENTITY ID",
		Short: "Show one visit record with its attachments",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ParseID(args[1])
			if err != nil {
				return err
			}
			return runGet(cmd, app.Store(args[0]), id)
		},
	}
}

func runGet(cmd *cobra.Command, store *datastore.RecordStore, id int64) error {
	ctx := cmd.Context()
	rec, err := store.GetRecord(ctx, id)
	if err != nil {
		return err
	}

	fields := rec.Fields()
	keys := append(append([]string{}, listColumns...), datastore.FieldCreatedAt, datastore.FieldUpdatedAt)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, fields[k]})
	}
	if err := render.Table(cmd.OutOrStdout(), []string{"field", "value"}, rows, ""); err != nil {
		return err
	}

	atts, err := store.ListAttachments(ctx, id)
	if err != nil {
		return err
	}
	attRows := make([][]string, 0, len(atts))
	for _, a := range atts {
		attRows = append(attRows, []string{strconv.FormatInt(a.ID, 10), a.DisplayName, a.Path})
	}
	return render.Table(cmd.OutOrStdout(), []string{"attachment", "name", "path"}, attRows, "no attachments")
}

func listCommand(app *config.Context) *cobra.Command {
	var (
		sortField string
		sortOrder string
		search    string
	)

	cmd := &cobra.Command{
		Use:   "list ENTITY",
		Short: "List visit records, optionally filtered by keywords",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, app.Store(args[0]), search,
				datastore.SortField(sortField), datastore.SortOrder(sortOrder))
		},
	}

	cmd.Flags().StringVar(&sortField, "sort", string(datastore.SortByDate), "Sort by id or date")
	cmd.Flags().StringVar(&sortOrder, "order", string(datastore.SortDescending), "Sort order, asc or desc")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Space-separated keywords that must all match")
	return cmd
}

func runList(cmd *cobra.Command, store *datastore.RecordStore, search string, sortField datastore.SortField, sortOrder datastore.SortOrder) error {
	ctx := cmd.Context()
	var (
		records []datastore.VisitRecord
		err     error
	)
	if search != "" {
		records, err = store.SearchRecords(ctx, search, sortField, sortOrder)
	} else {
		records, err = store.ListRecords(ctx, sortField, sortOrder)
	}
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(records))
	for i := range records {
		fields := records[i].Fields()
		row := make([]string, len(listColumns))
		for j, col := range listColumns {
			row[j] = fields[col]
		}
		rows = append(rows, row)
	}
	return render.Table(cmd.OutOrStdout(), listColumns, rows, "no records")
}

func updateCommand(app *config.Context) *cobra.Command {
	var in datastore.RecordInput

	cmd := &cobra.Command{
		Use:   "update ENTITY ID",
		Short: "Change fields of a visit record",
		Long: `Update rewrites a visit record. Fields without a flag keep their
current value; pass an empty value to clear a field.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ParseID(args[1])
			if err != nil {
				return err
			}
			store := app.Store(args[0])
			current, err := store.GetRecord(cmd.Context(), id)
			if err != nil {
				return err
			}
			merged := mergeInput(cmd.Flags(), &current, in)
			if err := store.UpdateRecord(cmd.Context(), id, merged); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Record %d updated\n", id)
			return nil
		},
	}

	bindInputFlags(cmd.Flags(), &in)
	return cmd
}

// mergeInput starts from the stored record and applies only the flags the
// user set
func mergeInput(flags *pflag.FlagSet, current *datastore.VisitRecord, in datastore.RecordInput) datastore.RecordInput {
	out := datastore.RecordInput{
		Date:             current.Date,
		Location:         current.Location,
		SubUnit:          current.SubUnit,
		ResponsibleParty: current.ResponsibleParty,
		Category:         current.Category,
		Reason:           current.Reason,
		Outcome:          current.Outcome,
		Treatment:        current.Treatment,
		Remark:           current.Remark,
	}

	set := map[string]struct {
		dst *string
		src string
	}{
		"date":      {&out.Date, in.Date},
		"location":  {&out.Location, in.Location},
		"sub-unit":  {&out.SubUnit, in.SubUnit},
		"doctor":    {&out.ResponsibleParty, in.ResponsibleParty},
		"category":  {&out.Category, in.Category},
		"reason":    {&out.Reason, in.Reason},
		"outcome":   {&out.Outcome, in.Outcome},
		"treatment": {&out.Treatment, in.Treatment},
		"remark":    {&out.Remark, in.Remark},
	}
	for name, f := range set {
		if flags.Changed(name) {
			*f.dst = f.src
		}
	}
	return out
}

func deleteCommand(app *config.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ENTITY ID...",
		Short: "Delete visit records and their attachments",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args)-1)
			for _, arg := range args[1:] {
				id, err := ParseID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			store := app.Store(args[0])
			if len(ids) == 1 {
				if err := store.DeleteRecord(cmd.Context(), ids[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Record %d deleted\n", ids[0])
				return nil
			}

			deleted := store.DeleteRecords(cmd.Context(), ids)
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d records deleted\n", deleted, len(ids))
			return nil
		},
	}
}

// ParseID parses a record or attachment identity argument
func ParseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", arg)
	}
	return id, nil
}
