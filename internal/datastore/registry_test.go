package datastore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlanZ-Git/HealthDatabase/internal/errors"
)

func TestRegistryCreateAndList(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)

	names, err := reg.List()
	require.NoError(t, err)
	assert.Empty(t, names, "missing data directory lists no entities")

	require.NoError(t, reg.Create("Bob"))
	require.NoError(t, reg.Create("Alice"))

	names, err = reg.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob"}, names)
	assert.True(t, reg.Exists("Alice"))
	assert.FileExists(t, reg.Path("Alice"))
}

func TestRegistryCreateDuplicateKeepsExistingStorage(t *testing.T) {
	t.Parallel()

	reg, store := newTestStore(t, "Alice")
	ctx := context.Background()

	id, err := store.CreateRecord(ctx, RecordInput{Date: "2024-01-15", Location: "ClinicA"})
	require.NoError(t, err)

	err = reg.Create("Alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEntityExists)
	assert.True(t, errors.IsCategory(err, errors.CategoryConflict))

	names, err := reg.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice"}, names)

	record, err := store.GetRecord(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ClinicA", record.Location)
}

func TestRegistryCreateIsCaseSensitive(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	require.NoError(t, reg.Create("alice"))

	err := reg.Create("Alice")
	if err != nil {
		// Case-insensitive filesystems report the collision.
		assert.ErrorIs(t, err, ErrEntityExists)
		return
	}
	names, err := reg.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "alice"}, names)
}

func TestRegistryCreateRejectsInvalidNames(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)

	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"dot", "."},
		{"dot dot", ".."},
		{"slash", "a/b"},
		{"backslash", `a\b`},
		{"colon", "a:b"},
		{"question mark", "who?"},
		{"nul", "a\x00b"},
		{"too long", strings.Repeat("x", MaxEntityNameLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Create(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidEntityName)
			assert.True(t, errors.IsValidation(err))
		})
	}

	names, err := reg.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestRegistryCreateNormalizesName(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	require.NoError(t, reg.Create("  Zoe\u0308  "))

	names, err := reg.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"Zo\u00eb"}, names)
}

func TestRegistryLookupsUseCanonicalName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		canonical string
	}{
		{"surrounding spaces", " Bob ", "Bob"},
		{"decomposed accent", "Jose\u0301", "Jos\u00e9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reg := newTestRegistry(t)
			ctx := context.Background()
			require.NoError(t, reg.Create(tt.input))

			assert.True(t, reg.Exists(tt.input))
			assert.Equal(t, reg.Path(tt.canonical), reg.Path(tt.input))

			store := reg.Store(tt.input)
			assert.Equal(t, tt.canonical, store.Entity())
			id, err := store.CreateRecord(ctx, RecordInput{Date: "2024-01-15"})
			require.NoError(t, err)

			src := writeSource(t, "scan.pdf", "pdf")
			att, err := store.AddAttachment(ctx, id, src)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(reg.AttachmentDir(tt.canonical), "1_1_scan.pdf"), att.Path)

			recs, err := reg.Store(tt.canonical).ListRecords(ctx, SortByID, SortAscending)
			require.NoError(t, err)
			assert.Len(t, recs, 1)

			require.NoError(t, reg.Destroy(tt.input))
			assert.False(t, reg.Exists(tt.canonical))

			removed, err := reg.PurgeAttachments(tt.input)
			require.NoError(t, err)
			assert.Equal(t, 1, removed)
		})
	}
}

func TestRegistryListIgnoresForeignFiles(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	require.NoError(t, reg.Create("Alice"))

	dataDir := filepath.Dir(reg.Path("Alice"))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "notes.txt"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, ".sqlite"), nil, 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dataDir, "dir.sqlite"), 0o750))

	names, err := reg.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice"}, names)
}

func TestRegistryDestroyLeavesAttachmentFiles(t *testing.T) {
	t.Parallel()

	reg, store := newTestStore(t, "Alice")
	ctx := context.Background()

	id, err := store.CreateRecord(ctx, RecordInput{Date: "2024-01-15"})
	require.NoError(t, err)
	att, err := store.AddAttachment(ctx, id, writeSource(t, "report.pdf", "pdf"))
	require.NoError(t, err)

	sidecar := reg.Path("Alice") + "-journal"
	require.NoError(t, os.WriteFile(sidecar, nil, 0o600))

	require.NoError(t, reg.Destroy("Alice"))

	assert.False(t, reg.Exists("Alice"))
	assert.NoFileExists(t, reg.Path("Alice"))
	assert.NoFileExists(t, sidecar)
	assert.FileExists(t, att.Path, "attachment files survive entity destruction")

	err = reg.Destroy("Alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEntityNotFound)
	assert.True(t, errors.IsNotFound(err))
}

func TestRegistryPurgeAttachments(t *testing.T) {
	t.Parallel()

	reg, store := newTestStore(t, "Alice")
	ctx := context.Background()

	id, err := store.CreateRecord(ctx, RecordInput{Date: "2024-01-15"})
	require.NoError(t, err)
	_, err = store.AddAttachments(ctx, id, []string{
		writeSource(t, "a.txt", "a"),
		writeSource(t, "b.txt", "b"),
	})
	require.NoError(t, err)

	require.NoError(t, reg.Destroy("Alice"))

	removed, err := reg.PurgeAttachments("Alice")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.NoDirExists(t, reg.AttachmentDir("Alice"))

	removed, err = reg.PurgeAttachments("Alice")
	require.NoError(t, err)
	assert.Zero(t, removed)

	_, err = reg.PurgeAttachments("..")
	assert.ErrorIs(t, err, ErrInvalidEntityName)
}
