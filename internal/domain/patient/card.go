package patient

import (
	"strings"
	"unicode"
)

// Card is the render model of one record in the grid.
type Card struct {
	Patient      Record `json:"patient"`
	Initials     string `json:"initials"`
	ShowInitials bool   `json:"show_initials"`
	CreatedLabel string `json:"created_label"`
	Expanded     bool   `json:"expanded"`
}

// Initials returns the uppercased first letters of up to the first two
// whitespace-separated words of name.
func Initials(name string) string {
	var b strings.Builder
	n := 0
	for _, word := range strings.Fields(name) {
		r := []rune(word)[0]
		b.WriteRune(unicode.ToUpper(r))
		n++
		if n == 2 {
			break
		}
	}
	return b.String()
}

// FormatCreated renders createdAt as e.g. "Jan 2, 2006". Values that do not
// parse are returned unchanged.
func FormatCreated(createdAt string) string {
	t, ok := ParseCreatedAt(createdAt)
	if !ok {
		return createdAt
	}
	return t.Format("Jan 2, 2006")
}

// avatarFailures remembers which avatar URL failed to load for each record.
// A recorded failure only applies while the record still carries that URL.
type avatarFailures map[string]string

func (f avatarFailures) showInitials(r Record) bool {
	if r.Avatar == "" {
		return true
	}
	failed, ok := f[r.ID]
	return ok && failed == r.Avatar
}

// forget drops a recorded failure once the record carries a different
// avatar, so a later return to the failed URL is tried again.
func (f avatarFailures) forget(r Record) {
	if failed, ok := f[r.ID]; ok && failed != r.Avatar {
		delete(f, r.ID)
	}
}

func newCard(r Record, failures avatarFailures, expandedID string) Card {
	return Card{
		Patient:      r,
		Initials:     Initials(r.Name),
		ShowInitials: failures.showInitials(r),
		CreatedLabel: FormatCreated(r.CreatedAt),
		Expanded:     expandedID != "" && expandedID == r.ID,
	}
}
