package datastore

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestComputeAttachmentFilename(t *testing.T) {
	t.Parallel()

	longStem := strings.Repeat("a", 150)
	longExt := "." + strings.Repeat("x", 120)

	tests := []struct {
		name         string
		recordID     int64
		attachmentID int64
		original     string
		want         string
	}{
		{"simple", 3, 1, "/tmp/report.pdf", "3_1_report.pdf"},
		{"directories are dropped", 12, 7, "/home/alice/scans/xray.png", "12_7_xray.png"},
		{"no extension", 1, 2, "notes", "1_2_notes"},
		{"multiple dots keep last extension", 1, 2, "archive.tar.gz", "1_2_archive.tar.gz"},
		{"dotfile", 1, 2, ".profile", "1_2_.profile"},
		{"stem truncated to fit", 5, 9, longStem + ".pdf", "5_9_" + strings.Repeat("a", 92) + ".pdf"},
		{"stem dropped when nothing fits", 5, 9, "a" + longExt, truncateRunes("5_9"+longExt, MaxAttachmentNameLength)},
		{"exactly at limit", 1, 1, strings.Repeat("b", 96), "1_1_" + strings.Repeat("b", 96)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ComputeAttachmentFilename(tt.recordID, tt.attachmentID, tt.original)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, utf8.RuneCountInString(got), MaxAttachmentNameLength)
		})
	}
}

func TestComputeAttachmentFilenameSkeletonFits(t *testing.T) {
	t.Parallel()

	// The extension leaves no room for the stem but the skeleton still fits.
	ext := "." + strings.Repeat("e", 94)
	got := ComputeAttachmentFilename(10, 20, "stem"+ext)
	assert.Equal(t, "10_20"+ext, got)
	assert.Equal(t, MaxAttachmentNameLength, utf8.RuneCountInString(got))
}

func TestComputeAttachmentFilenameCountsCharacters(t *testing.T) {
	t.Parallel()

	// Multi-byte characters count once each.
	stem := strings.Repeat("病", 120)
	got := ComputeAttachmentFilename(1, 2, stem+".jpg")
	assert.Equal(t, MaxAttachmentNameLength, utf8.RuneCountInString(got))
	assert.True(t, strings.HasPrefix(got, "1_2_病"))
	assert.True(t, strings.HasSuffix(got, "病.jpg"))
	assert.True(t, utf8.ValidString(got))

	// Decomposed input is stored composed.
	assert.Equal(t, "1_2_caf\u00e9.txt", ComputeAttachmentFilename(1, 2, "cafe\u0301.txt"))
}

func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 3, "hel"},
		{"hello", 5, "hello"},
		{"hello", 10, "hello"},
		{"hello", 0, ""},
		{"hello", -1, ""},
		{"日本語テキスト", 3, "日本語"},
		{"", 4, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, truncateRunes(tt.in, tt.n), "truncateRunes(%q, %d)", tt.in, tt.n)
	}
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "report.pdf", displayName("Appendix/Alice/3_1_report.pdf", 3, 1))
	assert.Equal(t, "3_1_x.pdf", displayName("Appendix/Alice/3_1_3_1_x.pdf", 3, 1))
	assert.Equal(t, "moved.pdf", displayName("Appendix/Alice/8_4_moved.pdf", 3, 1), "stale prefixes are still stripped")
	assert.Equal(t, "3_1.pdf", displayName("Appendix/Alice/3_1.pdf", 3, 1))
	assert.Equal(t, "plain.pdf", displayName("/elsewhere/plain.pdf", 3, 1))
}
