package patient

import (
	"errors"
	"strconv"
	"sync"
	"time"
)

// ErrRecordNotFound is returned when an operation references an id the
// store does not hold.
var ErrRecordNotFound = errors.New("patient record not found")

// Store is the in-memory patient collection. It is safe for concurrent use.
// The zero value is an empty store.
type Store struct {
	mu      sync.RWMutex
	records []Record
	now     func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

func (s *Store) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

// Load replaces the entire collection.
func (s *Store) Load(records []Record) {
	cp := make([]Record, len(records))
	copy(cp, records)

	s.mu.Lock()
	s.records = cp
	s.mu.Unlock()
}

// Create assigns the next numeric id, prepends the record and returns it.
func (s *Store) Create(d Draft) Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := Record{
		ID:          strconv.Itoa(nextID(s.records)),
		Name:        d.Name,
		Avatar:      d.Avatar,
		Website:     d.Website,
		Description: d.Description,
		CreatedAt:   d.CreatedAt,
	}
	if rec.CreatedAt == "" {
		rec.CreatedAt = Timestamp(s.clock())
	}

	s.records = append([]Record{rec}, s.records...)
	return rec
}

// Update replaces every field of the record with the given id except the id
// itself. The original createdAt survives when the draft leaves it empty.
func (s *Store) Update(id string, d Draft) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID != id {
			continue
		}
		rec := Record{
			ID:          id,
			Name:        d.Name,
			Avatar:      d.Avatar,
			Website:     d.Website,
			Description: d.Description,
			CreatedAt:   d.CreatedAt,
		}
		if rec.CreatedAt == "" {
			rec.CreatedAt = s.records[i].CreatedAt
		}
		s.records[i] = rec
		return rec, nil
	}
	return Record{}, ErrRecordNotFound
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if r.ID == id {
			return r, nil
		}
	}
	return Record{}, ErrRecordNotFound
}

// All returns a copy of the collection in store order.
func (s *Store) All() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func nextID(records []Record) int {
	highest := 0
	for _, r := range records {
		if n := leadingInt(r.ID); n > highest {
			highest = n
		}
	}
	return highest + 1
}

// leadingInt parses the optional sign and leading decimal digits of s after
// leading whitespace. Anything without digits is 0.
func leadingInt(s string) int {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}
	n := 0
	digits := 0
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
		digits++
		if digits > 18 {
			break
		}
	}
	if neg {
		return -n
	}
	return n
}
