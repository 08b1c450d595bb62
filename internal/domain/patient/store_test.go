package patient

import (
	"errors"
	"testing"
	"time"
)

func fixedStore(records ...Record) *Store {
	s := NewStore()
	s.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	s.Load(records)
	return s
}

func TestStore_LoadReplaces(t *testing.T) {
	s := fixedStore(Record{ID: "1", Name: "A"}, Record{ID: "2", Name: "B"})
	s.Load([]Record{{ID: "9", Name: "Z"}})

	all := s.All()
	if len(all) != 1 || all[0].ID != "9" {
		t.Errorf("expected collection to be replaced, got %+v", all)
	}
}

func TestStore_LoadCopiesInput(t *testing.T) {
	in := []Record{{ID: "1", Name: "A"}}
	s := fixedStore(in...)
	in[0].Name = "mutated"
	if r, _ := s.Get("1"); r.Name != "A" {
		t.Errorf("store shares caller slice: %+v", r)
	}
}

func TestStore_CreateAssignsNextID(t *testing.T) {
	s := fixedStore(Record{ID: "3"}, Record{ID: "7"}, Record{ID: "abc"}, Record{ID: "5"})
	rec := s.Create(Draft{Name: "New"})
	if rec.ID != "8" {
		t.Errorf("expected id 8, got %s", rec.ID)
	}
}

func TestStore_CreateIntoEmpty(t *testing.T) {
	s := fixedStore()
	rec := s.Create(Draft{Name: "First"})
	if rec.ID != "1" {
		t.Errorf("expected id 1, got %s", rec.ID)
	}
}

func TestStore_CreateNegativeIDs(t *testing.T) {
	s := fixedStore(Record{ID: "-4"}, Record{ID: "x"})
	if rec := s.Create(Draft{Name: "N"}); rec.ID != "1" {
		t.Errorf("expected id 1 when all ids are non-positive, got %s", rec.ID)
	}
}

func TestStore_CreatePrepends(t *testing.T) {
	s := fixedStore(Record{ID: "1", Name: "Old"})
	s.Create(Draft{Name: "New"})

	all := s.All()
	if all[0].Name != "New" || all[1].Name != "Old" {
		t.Errorf("expected new record first, got %+v", all)
	}
}

func TestStore_CreateSetsCreatedAt(t *testing.T) {
	s := fixedStore()
	rec := s.Create(Draft{Name: "N"})
	if rec.CreatedAt != "2024-06-01T12:00:00.000Z" {
		t.Errorf("expected now, got %q", rec.CreatedAt)
	}

	rec = s.Create(Draft{Name: "M", CreatedAt: "2020-01-01T00:00:00.000Z"})
	if rec.CreatedAt != "2020-01-01T00:00:00.000Z" {
		t.Errorf("expected draft createdAt to be kept, got %q", rec.CreatedAt)
	}
}

func TestStore_UpdatePreservesCreatedAt(t *testing.T) {
	s := fixedStore(Record{ID: "4", Name: "Before", Website: "https://old.io", CreatedAt: "2022-02-02T00:00:00.000Z"})

	rec, err := s.Update("4", Draft{Name: "After"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID != "4" || rec.Name != "After" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Website != "" {
		t.Errorf("expected website to be replaced with empty, got %q", rec.Website)
	}
	if rec.CreatedAt != "2022-02-02T00:00:00.000Z" {
		t.Errorf("createdAt changed: %q", rec.CreatedAt)
	}
	if got, _ := s.Get("4"); got != rec {
		t.Errorf("store not updated: %+v", got)
	}
}

func TestStore_UpdateKeepsPosition(t *testing.T) {
	s := fixedStore(Record{ID: "1"}, Record{ID: "2"}, Record{ID: "3"})
	if _, err := s.Update("2", Draft{Name: "mid"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if all := s.All(); all[1].Name != "mid" {
		t.Errorf("expected in-place replacement, got %+v", all)
	}
}

func TestStore_UpdateMissing(t *testing.T) {
	s := fixedStore(Record{ID: "1", Name: "A"})
	_, err := s.Update("99", Draft{Name: "X"})
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("store mutated on failed update")
	}
}

func TestStore_AllReturnsCopy(t *testing.T) {
	s := fixedStore(Record{ID: "1", Name: "A"})
	all := s.All()
	all[0].Name = "changed"
	if r, _ := s.Get("1"); r.Name != "A" {
		t.Error("All exposed internal storage")
	}
}

func TestStore_ZeroValue(t *testing.T) {
	var s Store
	rec := s.Create(Draft{Name: "Z"})
	if rec.ID != "1" || rec.CreatedAt == "" {
		t.Errorf("unexpected record from zero store: %+v", rec)
	}
}

func TestLeadingInt(t *testing.T) {
	tests := map[string]int{
		"7":     7,
		"  42":  42,
		"12abc": 12,
		"-3":    -3,
		"+5":    5,
		"abc":   0,
		"":      0,
		"-":     0,
	}
	for in, want := range tests {
		if got := leadingInt(in); got != want {
			t.Errorf("leadingInt(%q) = %d, want %d", in, got, want)
		}
	}
}
