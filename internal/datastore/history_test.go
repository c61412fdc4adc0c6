package datastore

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlanZ-Git/HealthDatabase/internal/errors"
)

func ptr(s string) *string { return &s }

// seedHistory creates records in order, so later entries are more recent
func seedHistory(t *testing.T, store *RecordStore, inputs []RecordInput) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(inputs))
	for _, in := range inputs {
		if in.Date == "" {
			in.Date = "2024-01-15"
		}
		id, err := store.CreateRecord(context.Background(), in)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestDistinctValuesMostRecentFirst(t *testing.T) {
	t.Parallel()

	_, store := newTestStore(t, "Alice")
	ctx := context.Background()

	ids := seedHistory(t, store, []RecordInput{
		{Location: "ClinicA"},
		{Location: "ClinicB"},
		{Location: "ClinicA"},
		{Location: "   "},
		{Location: "ClinicC"},
	})

	values, err := store.DistinctValues(ctx, HistoryLocation, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"ClinicC", "ClinicA", "ClinicB"}, values, "blank values never appear")

	// Updating a record makes its value the most recent occurrence.
	require.NoError(t, store.UpdateRecord(ctx, ids[1], RecordInput{Date: "2024-01-15", Location: "ClinicB"}))
	values, err = store.DistinctValues(ctx, HistoryLocation, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"ClinicB", "ClinicC", "ClinicA"}, values)

	values, err = store.DistinctValues(ctx, HistoryLocation, nil, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"ClinicB", "ClinicC"}, values)
}

func TestDistinctValuesDependentFieldPolicy(t *testing.T) {
	t.Parallel()

	_, store := newTestStore(t, "Alice")
	ctx := context.Background()

	seedHistory(t, store, []RecordInput{
		{Location: "ClinicA", SubUnit: "Cardiology", ResponsibleParty: "Dr. Heart"},
		{Location: "ClinicB", SubUnit: "Dermatology", ResponsibleParty: "Dr. Skin"},
		{Location: "ClinicA", SubUnit: "Radiology", ResponsibleParty: "Dr. Ray"},
		{SubUnit: "Triage"},
	})

	tests := []struct {
		name  string
		field HistoryField
		scope *string
		want  []string
	}{
		{"empty scope yields nothing", HistorySubUnit, ptr(""), []string{}},
		{"whitespace scope yields nothing", HistorySubUnit, ptr("  "), []string{}},
		{"scoped sub-unit", HistorySubUnit, ptr("ClinicA"), []string{"Radiology", "Cardiology"}},
		{"scope is trimmed", HistorySubUnit, ptr(" ClinicB "), []string{"Dermatology"}},
		{"unscoped sub-unit", HistorySubUnit, nil, []string{"Triage", "Radiology", "Dermatology", "Cardiology"}},
		{"scoped responsible party", HistoryResponsibleParty, ptr("ClinicA"), []string{"Dr. Ray", "Dr. Heart"}},
		{"blank scope on responsible party", HistoryResponsibleParty, ptr(""), []string{}},
		{"unknown scope", HistoryResponsibleParty, ptr("ClinicZ"), []string{}},
		{"location ignores scope", HistoryLocation, ptr(""), []string{"ClinicA", "ClinicB"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := store.DistinctValues(ctx, tt.field, tt.scope, 10)
			require.NoError(t, err)
			assert.Equal(t, tt.want, values)
		})
	}
}

func TestDistinctValuesDefaultLimit(t *testing.T) {
	t.Parallel()

	_, store := newTestStore(t, "Alice", WithHistoryLimit(3))
	ctx := context.Background()

	inputs := make([]RecordInput, 0, 6)
	for i := range 6 {
		inputs = append(inputs, RecordInput{Location: fmt.Sprintf("Clinic%d", i)})
	}
	seedHistory(t, store, inputs)

	values, err := store.DistinctValues(ctx, HistoryLocation, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Clinic5", "Clinic4", "Clinic3"}, values)
}

func TestDistinctValuesRejectsUnknownField(t *testing.T) {
	t.Parallel()

	_, store := newTestStore(t, "Alice")

	_, err := store.DistinctValues(context.Background(), HistoryField("remark"), nil, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidField)
	assert.True(t, errors.IsValidation(err))
}
