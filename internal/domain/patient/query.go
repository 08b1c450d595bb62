package patient

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/ehr/patientdesk/pkg/pagination"
)

// SortKey selects the ordering applied by Sort.
type SortKey string

const (
	SortByID       SortKey = "id"
	SortByNameAsc  SortKey = "name-asc"
	SortByNameDesc SortKey = "name-desc"
	SortByDateAsc  SortKey = "date-asc"
	SortByDateDesc SortKey = "date-desc"
)

// ErrUnknownSortKey is returned by ParseSortKey for keys outside the set above.
var ErrUnknownSortKey = errors.New("unknown sort key")

// SortKeys lists the supported keys in the order they are offered to users.
var SortKeys = []SortKey{SortByID, SortByNameAsc, SortByNameDesc, SortByDateAsc, SortByDateDesc}

// Label returns the human readable name of the key.
func (k SortKey) Label() string {
	switch k {
	case SortByID:
		return "ID"
	case SortByNameAsc:
		return "Name (A-Z)"
	case SortByNameDesc:
		return "Name (Z-A)"
	case SortByDateAsc:
		return "Date Created (Old-New)"
	case SortByDateDesc:
		return "Date Created (New-Old)"
	}
	return string(k)
}

// ParseSortKey validates s as a SortKey.
func ParseSortKey(s string) (SortKey, error) {
	for _, k := range SortKeys {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSortKey, s)
}

// Query is the full set of inputs to the pipeline.
type Query struct {
	Search string
	Sort   SortKey
	Page   int
}

// Result is the visible page produced by Run.
type Result struct {
	Items      []Record
	Total      int // records matching the search
	Page       int
	TotalPages int
	Start      int // index of the first item in the sorted set
	End        int // index one past the last item
}

// Run applies Filter, Sort and Paginate in that order. The input slice is
// not modified.
func Run(records []Record, q Query) Result {
	matched := Filter(records, q.Search)
	Sort(matched, q.Sort)

	p := pagination.New(q.Page, pagination.DefaultPageSize)
	start, end := p.Bounds(len(matched))
	return Result{
		Items:      matched[start:end],
		Total:      len(matched),
		Page:       p.Page,
		TotalPages: pagination.Pages(len(matched), p.Size),
		Start:      start,
		End:        end,
	}
}

// Filter returns a new slice holding the records whose name or id contains
// term, ignoring case. An empty term matches everything.
func Filter(records []Record, term string) []Record {
	out := make([]Record, 0, len(records))
	needle := strings.ToLower(term)
	for _, r := range records {
		if needle == "" ||
			strings.Contains(strings.ToLower(r.Name), needle) ||
			strings.Contains(strings.ToLower(r.ID), needle) {
			out = append(out, r)
		}
	}
	return out
}

// Sort orders records in place. The sort is stable; an unrecognized key
// leaves the order untouched.
func Sort(records []Record, key SortKey) {
	var less func(a, b Record) bool

	switch key {
	case SortByID:
		less = func(a, b Record) bool { return leadingInt(a.ID) < leadingInt(b.ID) }
	case SortByNameAsc, SortByNameDesc:
		col := collate.New(language.English)
		if key == SortByNameAsc {
			less = func(a, b Record) bool { return col.CompareString(a.Name, b.Name) < 0 }
		} else {
			less = func(a, b Record) bool { return col.CompareString(b.Name, a.Name) < 0 }
		}
	case SortByDateAsc:
		less = func(a, b Record) bool { return createdAt(a).Before(createdAt(b)) }
	case SortByDateDesc:
		less = func(a, b Record) bool { return createdAt(b).Before(createdAt(a)) }
	default:
		return
	}

	sort.SliceStable(records, func(i, j int) bool { return less(records[i], records[j]) })
}

// Paginate returns the 1-based page of records.
func Paginate(records []Record, page int) []Record {
	start, end := pagination.New(page, pagination.DefaultPageSize).Bounds(len(records))
	return records[start:end]
}

func createdAt(r Record) time.Time {
	t, _ := ParseCreatedAt(r.CreatedAt)
	return t
}
