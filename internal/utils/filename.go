package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// Characters invalid in filenames on most filesystems, plus control characters
	invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	// Whitespace runs collapse to a single separator
	whitespaceRuns = regexp.MustCompile(`\s+`)
)

// maxSegmentLength leaves room for a storage prefix within common 255 byte limits.
const maxSegmentLength = 200

// SanitizeFilename turns an arbitrary string into a single safe path segment
// for the media store. Separators and characters invalid on common
// filesystems are removed and whitespace becomes underscores. Dot-only names
// are replaced so a segment can never walk out of its directory.
func SanitizeFilename(filename string) string {
	filename = invalidFilenameChars.ReplaceAllString(filename, "")
	filename = strings.TrimSpace(filename)
	filename = whitespaceRuns.ReplaceAllString(filename, "_")

	if len(filename) > maxSegmentLength {
		cut := maxSegmentLength
		for cut > 0 && !utf8.RuneStart(filename[cut]) {
			cut--
		}
		filename = strings.TrimRight(filename[:cut], "_")
	}

	if strings.Trim(filename, ".") == "" {
		filename = "untitled"
	}

	return filename
}

// SplitExtension returns the base name and the extension (with its dot) of
// a filename. Leading dots do not start an extension.
func SplitExtension(filename string) (string, string) {
	idx := strings.LastIndex(filename, ".")
	if idx <= 0 {
		return filename, ""
	}
	return filename[:idx], filename[idx:]
}
