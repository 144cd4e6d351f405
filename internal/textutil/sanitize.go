package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// componentReplacer removes characters that would split or corrupt a single
// path component.
var componentReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "_",
	"<", "",
	">", "",
)

// descriptionReplacer drops the punctuation stripped from series descriptions.
// It runs after colons and spaces are gone, so "d. v." matches as "d.v.".
var descriptionReplacer = strings.NewReplacer(
	"d.v.", "",
	".", "",
	"/", "",
	"\\", "",
)

// Normalize composes text to NFC and removes control characters such as the
// unit separator some scanners leave in person names.
func Normalize(value string) string {
	t := transform.Chain(norm.NFC, runes.Remove(runes.In(unicode.Cc)))
	out, _, err := transform.String(t, value)
	if err != nil {
		return strings.Map(func(r rune) rune {
			if unicode.IsControl(r) {
				return -1
			}
			return r
		}, value)
	}
	return out
}

// SanitizeComponent makes value safe to use as one path component.
func SanitizeComponent(value string) string {
	return strings.TrimSpace(componentReplacer.Replace(Normalize(value)))
}

// CleanPersonName converts a DICOM person name into a directory token. The
// empty-component marker "^^^" is dropped and remaining component separators
// become underscores. Returns "" when nothing usable remains.
func CleanPersonName(value string) string {
	value = Normalize(value)
	value = strings.ReplaceAll(value, "^^^", "")
	value = strings.ReplaceAll(value, "^", "_")
	return SanitizeComponent(value)
}

// CleanIdentifier replaces colons in an identifier with underscores.
func CleanIdentifier(value string) string {
	return SanitizeComponent(strings.ReplaceAll(Normalize(value), ":", "_"))
}

// CleanDescription compacts a series description into a token with no
// spaces, dots, slashes, colons, or "d.v." markers.
func CleanDescription(value string) string {
	value = strings.NewReplacer(":", "", " ", "").Replace(Normalize(value))
	return SanitizeComponent(descriptionReplacer.Replace(value))
}

// StripAngles removes angle brackets from a path.
func StripAngles(value string) string {
	return strings.NewReplacer("<", "", ">", "").Replace(value)
}
