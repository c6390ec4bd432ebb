package share

import (
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// slugPattern is the identifier grammar accepted by the file endpoint.
var slugPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// disallowed matches every character that cannot appear in a slug.
var disallowed = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// ValidSlug reports whether id may be used to look up a stored file.
func ValidSlug(id string) bool {
	return id != "." && id != ".." && slugPattern.MatchString(id)
}

// NewSlug returns "{uuid}-{filename}" with filename reduced to slug characters.
func NewSlug(filename string) string {
	return uuid.NewString() + "-" + SanitizeFilename(filename)
}

// SanitizeFilename keeps the base name of filename and replaces every
// character outside [A-Za-z0-9_.-] with an underscore.
func SanitizeFilename(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if name == "/" || name == "." {
		name = ""
	}
	name = disallowed.ReplaceAllString(name, "_")
	if name == "" {
		return "file"
	}
	return name
}
