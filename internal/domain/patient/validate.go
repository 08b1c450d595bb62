package patient

import (
	"errors"
	"regexp"
	"strings"
)

// ErrValidation is wrapped by errors returned for drafts that fail Validate.
var ErrValidation = errors.New("validation failed")

var urlPattern = regexp.MustCompile(`^https?://.+\..+`)

// FieldErrors maps a draft field name to its error message.
type FieldErrors map[string]string

// Valid reports whether no field carries a non-empty message.
func (fe FieldErrors) Valid() bool {
	for _, msg := range fe {
		if msg != "" {
			return false
		}
	}
	return true
}

// Validate checks a draft before it may be committed. Only name, website and
// avatar are checked.
func Validate(d Draft) FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(d.Name) == "" {
		errs[FieldName] = "Name is required"
	}
	if d.Website != "" && !urlPattern.MatchString(d.Website) {
		errs[FieldWebsite] = "Invalid website URL (must start with http:// or https://)"
	}
	if d.Avatar != "" && !urlPattern.MatchString(d.Avatar) {
		errs[FieldAvatar] = "Invalid avatar URL (must start with http:// or https://)"
	}
	return errs
}
