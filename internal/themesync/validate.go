package themesync

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var themeNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ValidateThemeName checks that name is a usable theme slug.
func ValidateThemeName(name string) error {
	if !themeNamePattern.MatchString(name) {
		return fmt.Errorf("%w: invalid theme name %q", ErrValidation, name)
	}
	return nil
}

// ValidatePath checks that path is a clean, slash-separated path relative
// to a theme root.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrValidation)
	}
	if !utf8.ValidString(path) {
		return fmt.Errorf("%w: path is not valid UTF-8", ErrValidation)
	}
	if strings.ContainsAny(path, "\\\x00") {
		return fmt.Errorf("%w: path contains a backslash or NUL: %q", ErrValidation, path)
	}
	if strings.HasPrefix(path, "/") {
		return fmt.Errorf("%w: path must be relative: %q", ErrValidation, path)
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: malformed path segment in %q", ErrValidation, path)
		}
	}
	return nil
}

func validateActor(actor string) error {
	if strings.TrimSpace(actor) == "" {
		return fmt.Errorf("%w: actor is required", ErrValidation)
	}
	return nil
}
