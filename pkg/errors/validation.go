package errors

import (
	"strings"
	"unicode"
)

// maxStemLength bounds generated file name stems.
const maxStemLength = 200

// ValidateFilenameStem checks that stem can be used as the base name of an
// output file inside the output directory.
//
// The rules are conservative:
//   - No empty stems
//   - No control characters or null bytes
//   - No path separators or traversal sequences
//   - Maximum length of 200 characters
func ValidateFilenameStem(stem string) error {
	if stem == "" {
		return Validation("file name cannot be empty")
	}
	if len(stem) > maxStemLength {
		return Validation("file name too long (max %d characters)", maxStemLength)
	}
	for _, r := range stem {
		if unicode.IsControl(r) {
			return Validation("file name contains invalid control characters")
		}
	}
	if strings.ContainsAny(stem, `/\`) {
		return Validation("file name cannot contain path separators")
	}
	if strings.Contains(stem, "..") {
		return Validation("file name cannot contain %q", "..")
	}
	return nil
}

// SanitizeTitle turns a free-form title into a file name stem: only letters,
// digits, spaces and underscores survive, trailing space is trimmed and the
// remaining spaces become underscores.
func SanitizeTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimRight(b.String(), " "), " ", "_")
}
