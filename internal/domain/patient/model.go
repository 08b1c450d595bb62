package patient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Record is a single patient record as held by the Store.
type Record struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Avatar      string `json:"avatar,omitempty"`
	Website     string `json:"website,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

// UnmarshalJSON accepts the id either as a JSON string or a JSON number.
// Upstream sources are not consistent about this.
func (r *Record) UnmarshalJSON(data []byte) error {
	type alias Record
	var raw struct {
		alias
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Record(raw.alias)
	r.ID = ""

	id := bytes.TrimSpace(raw.ID)
	if len(id) == 0 || bytes.Equal(id, []byte("null")) {
		return nil
	}
	if id[0] == '"' {
		var s string
		if err := json.Unmarshal(id, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		r.ID = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(id, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	r.ID = n.String()
	return nil
}

// Draft holds the editable fields of a record. CreatedAt is empty unless
// the draft was copied from an existing record.
type Draft struct {
	Name        string `json:"name"`
	Avatar      string `json:"avatar"`
	Website     string `json:"website"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

// DraftOf copies the editable fields of r into a Draft.
func DraftOf(r Record) Draft {
	return Draft{
		Name:        r.Name,
		Avatar:      r.Avatar,
		Website:     r.Website,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
	}
}

// Draft field names, as used in FieldErrors and field-change intents.
const (
	FieldName        = "name"
	FieldAvatar      = "avatar"
	FieldWebsite     = "website"
	FieldDescription = "description"
)

// Set assigns value to the named field. It reports false for unknown fields.
func (d *Draft) Set(field, value string) bool {
	switch field {
	case FieldName:
		d.Name = value
	case FieldAvatar:
		d.Avatar = value
	case FieldWebsite:
		d.Website = value
	case FieldDescription:
		d.Description = value
	default:
		return false
	}
	return true
}

// Timestamp formats t the way records carry createdAt: RFC 3339 in UTC with
// millisecond precision.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// ParseCreatedAt parses a createdAt value. Unparseable values yield the zero
// time and false.
func ParseCreatedAt(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
