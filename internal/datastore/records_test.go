package datastore

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlanZ-Git/HealthDatabase/internal/errors"
)

func TestCreateAndGetRecordRoundTrip(t *testing.T) {
	t.Parallel()

	_, store := newTestStore(t, "Alice")
	ctx := context.Background()

	id, err := store.CreateRecord(ctx, RecordInput{
		Date:             " 2024-01-15 ",
		Location:         "  ClinicA ",
		SubUnit:          "Cardiology",
		ResponsibleParty: "Dr. Who",
		Category:         "circulatory",
		Reason:           "checkup",
		Outcome:          "healthy",
		Treatment:        "none",
		Remark:           "Cafe\u0301 visit",
	})
	require.NoError(t, err)
	assert.Positive(t, id)

	record, err := store.GetRecord(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, id, record.ID)
	assert.Equal(t, "2024-01-15", record.Date)
	assert.Equal(t, "ClinicA", record.Location)
	assert.Equal(t, "Cardiology", record.SubUnit)
	assert.Equal(t, "Dr. Who", record.ResponsibleParty)
	assert.Equal(t, "circulatory", record.Category)
	assert.Equal(t, "checkup", record.Reason)
	assert.Equal(t, "healthy", record.Outcome)
	assert.Equal(t, "none", record.Treatment)
	assert.Equal(t, "Caf\u00e9 visit", record.Remark, "text fields are NFC-normalized")
	assert.False(t, record.CreatedAt.IsZero())
	assert.False(t, record.UpdatedAt.Before(record.CreatedAt))
}

func TestCreateRecordValidatesDate(t *testing.T) {
	t.Parallel()

	_, store := newTestStore(t, "Alice")
	ctx := context.Background()

	tests := []struct {
		name    string
		date    string
		wantErr error
	}{
		{"missing", "", ErrDateRequired},
		{"blank", "   ", ErrDateRequired},
		{"wrong layout", "15/01/2024", ErrInvalidDate},
		{"impossible day", "2024-02-30", ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.CreateRecord(ctx, RecordInput{Date: tt.date, Location: "ClinicA"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, errors.IsValidation(err))
		})
	}

	records, err := store.ListRecords(ctx, SortByID, SortAscending)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestUpdateRecordRestampsUpdatedAtOnly(t *testing.T) {
	t.Parallel()

	_, store := newTestStore(t, "Alice")
	ctx := context.Background()

	id, err := store.CreateRecord(ctx, RecordInput{Date: "2024-01-15", Location: "ClinicA", Remark: "first"})
	require.NoError(t, err)
	before, err := store.GetRecord(ctx, id)
	require.NoError(t, err)

	require.NoError(t, store.UpdateRecord(ctx, id, RecordInput{Date: "2024-01-16", Location: "ClinicB"}))

	after, err := store.GetRecord(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-16", after.Date)
	assert.Equal(t, "ClinicB", after.Location)
	assert.Empty(t, after.Remark, "update replaces every field")
	assert.True(t, after.CreatedAt.Equal(before.CreatedAt), "created_at never changes")
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt), "updated_at is restamped")
}

func TestRecordNotFound(t *testing.T) {
	t.Parallel()

	_, store := newTestStore(t, "Alice")
	ctx := context.Background()

	_, err := store.GetRecord(ctx, 42)
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.True(t, errors.IsNotFound(err))

	err = store.UpdateRecord(ctx, 42, RecordInput{Date: "2024-01-15"})
	assert.ErrorIs(t, err, ErrRecordNotFound)

	err = store.DeleteRecord(ctx, 42)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestUnknownEntityPolicy(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	store := reg.Store("Nobody")
	ctx := context.Background()

	records, err := store.ListRecords(ctx, SortByID, SortAscending)
	require.NoError(t, err)
	assert.Empty(t, records)

	found, err := store.SearchRecords(ctx, "x", SortByID, SortAscending)
	require.NoError(t, err)
	assert.Empty(t, found)

	attachments, err := store.ListAttachments(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, attachments)

	values, err := store.DistinctValues(ctx, HistoryLocation, nil, 5)
	require.NoError(t, err)
	assert.Empty(t, values)

	_, err = store.CreateRecord(ctx, RecordInput{Date: "2024-01-15"})
	assert.ErrorIs(t, err, ErrEntityNotFound)

	_, err = store.GetRecord(ctx, 1)
	assert.ErrorIs(t, err, ErrEntityNotFound)

	err = store.DeleteRecord(ctx, 1)
	assert.ErrorIs(t, err, ErrEntityNotFound)

	_, err = store.AddAttachment(ctx, 1, writeSource(t, "a.txt", "a"))
	assert.ErrorIs(t, err, ErrEntityNotFound)

	assert.NoFileExists(t, reg.Path("Nobody"), "operations never create storage")
}

func TestListRecordsOrdering(t *testing.T) {
	t.Parallel()

	_, store := newTestStore(t, "Alice")
	ctx := context.Background()

	dates := []string{"2024-03-01", "2024-01-15", "2024-03-01", "2023-12-31", "2024-01-15"}
	ids := make([]int64, len(dates))
	for i, d := range dates {
		id, err := store.CreateRecord(ctx, RecordInput{Date: d})
		require.NoError(t, err)
		ids[i] = id
	}

	t.Run("date descending", func(t *testing.T) {
		records, err := store.ListRecords(ctx, SortByDate, SortDescending)
		require.NoError(t, err)
		require.Len(t, records, len(dates))
		for i := 1; i < len(records); i++ {
			prev, cur := records[i-1], records[i]
			assert.GreaterOrEqual(t, prev.Date, cur.Date)
			if prev.Date == cur.Date {
				assert.Greater(t, prev.ID, cur.ID, "date ties follow identity in the same direction")
			}
		}
	})

	t.Run("date ascending", func(t *testing.T) {
		records, err := store.ListRecords(ctx, SortByDate, SortAscending)
		require.NoError(t, err)
		got := make([]int64, 0, len(records))
		for _, r := range records {
			got = append(got, r.ID)
		}
		assert.Equal(t, []int64{ids[3], ids[1], ids[4], ids[0], ids[2]}, got)
	})

	t.Run("id descending", func(t *testing.T) {
		records, err := store.ListRecords(ctx, SortByID, SortDescending)
		require.NoError(t, err)
		assert.Equal(t, ids[len(ids)-1], records[0].ID)
	})

	t.Run("unrecognized parameters fall back", func(t *testing.T) {
		records, err := store.ListRecords(ctx, "hospital; DROP TABLE visit_records", "sideways")
		require.NoError(t, err)
		got := make([]int64, 0, len(records))
		for _, r := range records {
			got = append(got, r.ID)
		}
		assert.Equal(t, ids, got)
	})

	t.Run("case insensitive parameters", func(t *testing.T) {
		records, err := store.ListRecords(ctx, "DATE", "DESC")
		require.NoError(t, err)
		assert.Equal(t, "2024-03-01", records[0].Date)
	})
}

func TestIdentitiesAreNeverReused(t *testing.T) {
	t.Parallel()

	_, store := newTestStore(t, "Alice")
	ctx := context.Background()

	var last int64
	for range 3 {
		id, err := store.CreateRecord(ctx, RecordInput{Date: "2024-01-15"})
		require.NoError(t, err)
		last = id
	}
	require.NoError(t, store.DeleteRecord(ctx, last))

	id, err := store.CreateRecord(ctx, RecordInput{Date: "2024-01-15"})
	require.NoError(t, err)
	assert.Greater(t, id, last)
}

func TestDeleteRecordsCountsSuccesses(t *testing.T) {
	t.Parallel()

	_, store := newTestStore(t, "Alice")
	ctx := context.Background()

	var ids []int64
	for range 3 {
		id, err := store.CreateRecord(ctx, RecordInput{Date: "2024-01-15"})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	deleted := store.DeleteRecords(ctx, []int64{ids[0], 999, ids[2], ids[0]})
	assert.Equal(t, 2, deleted)

	records, err := store.ListRecords(ctx, SortByID, SortAscending)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, ids[1], records[0].ID)
}

func TestSearchRecords(t *testing.T) {
	t.Parallel()

	_, store := newTestStore(t, "Alice")
	ctx := context.Background()

	inputs := []RecordInput{
		{Date: "2024-01-15", Location: "City Hospital", Reason: "Headache", Outcome: "Migraine"},
		{Date: "2024-02-01", Location: "City Hospital", Reason: "Cough"},
		{Date: "2024-02-10", Location: "Clinic Süd", Remark: "follow-up headache"},
	}
	for _, in := range inputs {
		_, err := store.CreateRecord(ctx, in)
		require.NoError(t, err)
	}

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"blank returns all", "  ", []string{"2024-01-15", "2024-02-01", "2024-02-10"}},
		{"case insensitive", "HEADACHE", []string{"2024-01-15", "2024-02-10"}},
		{"all keywords must match", "city headache", []string{"2024-01-15"}},
		{"matches date", "2024-02", []string{"2024-02-01", "2024-02-10"}},
		{"non ascii", "SÜD", []string{"2024-02-10"}},
		{"no match", "fracture", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := store.SearchRecords(ctx, tt.query, SortByDate, SortAscending)
			require.NoError(t, err)
			got := make([]string, 0, len(records))
			for _, r := range records {
				got = append(got, r.Date)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecordFields(t *testing.T) {
	t.Parallel()

	_, store := newTestStore(t, "Alice")
	ctx := context.Background()

	id, err := store.CreateRecord(ctx, RecordInput{Date: "2024-01-15", Location: "ClinicA", Treatment: "rest"})
	require.NoError(t, err)
	record, err := store.GetRecord(ctx, id)
	require.NoError(t, err)

	fields := record.Fields()
	assert.Equal(t, strconv.FormatInt(id, 10), fields[FieldID])
	assert.Equal(t, "2024-01-15", fields[FieldDate])
	assert.Equal(t, "ClinicA", fields[FieldLocation])
	assert.Equal(t, "rest", fields[FieldTreatment])
	assert.Empty(t, fields[FieldRemark])
	assert.NotEmpty(t, fields[FieldCreatedAt])
	assert.Len(t, fields, 12)
}
