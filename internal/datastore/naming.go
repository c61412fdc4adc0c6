package datastore

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxAttachmentNameLength is the longest stored attachment file name, in characters
const MaxAttachmentNameLength = 100

// storedPrefixPattern matches the "{record}_{attachment}_" prefix of a stored name
var storedPrefixPattern = regexp.MustCompile(`^\d+_\d+_`)

// ComputeAttachmentFilename returns the stored file name of an attachment:
// "{recordID}_{attachmentID}_{stem}{ext}" where stem and ext come from the
// base name of originalName. Names longer than MaxAttachmentNameLength are
// shortened by truncating the stem; when no stem character fits the stem and
// its separator are dropped, and when even "{recordID}_{attachmentID}{ext}"
// is too long the result is cut to the limit.
func ComputeAttachmentFilename(recordID, attachmentID int64, originalName string) string {
	base := norm.NFC.String(filepath.Base(originalName))
	if base == "." || base == string(filepath.Separator) {
		base = ""
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	prefix := strconv.FormatInt(recordID, 10) + "_" + strconv.FormatInt(attachmentID, 10)

	name := prefix + "_" + stem + ext
	if utf8.RuneCountInString(name) <= MaxAttachmentNameLength {
		return name
	}

	avail := MaxAttachmentNameLength - utf8.RuneCountInString(prefix) - 1 - utf8.RuneCountInString(ext)
	if avail > 0 {
		return prefix + "_" + truncateRunes(stem, avail) + ext
	}

	return truncateRunes(prefix+ext, MaxAttachmentNameLength)
}

// truncateRunes returns the first n characters of s
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// displayName returns the user-facing name of a stored attachment file,
// which is the stored base name without its identity prefix.
func displayName(path string, recordID, attachmentID int64) string {
	base := filepath.Base(path)
	prefix := strconv.FormatInt(recordID, 10) + "_" + strconv.FormatInt(attachmentID, 10) + "_"
	if name, ok := strings.CutPrefix(base, prefix); ok {
		return name
	}
	if loc := storedPrefixPattern.FindStringIndex(base); loc != nil {
		return base[loc[1]:]
	}
	return base
}
