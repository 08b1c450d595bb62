package patient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/patientdesk/internal/platform/upstream"
)

func TestHTTPSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":"1","name":"Ada","avatar":"https://a.b/1.png","createdAt":"2023-01-11T06:34:01.806Z"},
			{"id":2,"name":"Grace","website":"https://grace.io","description":"COBOL"}
		]`))
	}))
	defer srv.Close()

	src := NewHTTPSource(upstream.NewClient(time.Second, zerolog.Nop()), srv.URL)
	records, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "1" || records[0].Avatar != "https://a.b/1.png" {
		t.Errorf("unexpected first record %+v", records[0])
	}
	if records[1].ID != "2" || records[1].Description != "COBOL" {
		t.Errorf("unexpected second record %+v", records[1])
	}
}

func TestHTTPSource_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	src := NewHTTPSource(upstream.NewClient(0, zerolog.Nop()), srv.URL)
	_, err := src.Fetch(context.Background())
	if !errors.Is(err, upstream.ErrStatus) {
		t.Errorf("expected ErrStatus, got %v", err)
	}
}

func TestHTTPSource_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	src := NewHTTPSource(upstream.NewClient(0, zerolog.Nop()), srv.URL)
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Error("expected decode error")
	}
}

type fakeGetter struct {
	url string
	err error
}

func (f *fakeGetter) GetJSON(_ context.Context, url string, _ interface{}) error {
	f.url = url
	return f.err
}

func TestHTTPSource_WrapsError(t *testing.T) {
	boom := errors.New("boom")
	g := &fakeGetter{err: boom}
	_, err := NewHTTPSource(g, "https://example.test/users").Fetch(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped boom, got %v", err)
	}
	if g.url != "https://example.test/users" {
		t.Errorf("unexpected url %q", g.url)
	}
}

func TestHTTPSource_FailedFetchFeedsController(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctl, _ := newTestController(t, NewHTTPSource(upstream.NewClient(0, zerolog.Nop()), srv.URL))
	if err := ctl.Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	v := ctl.View()
	if !v.Empty || v.Notification == nil || v.Notification.Message != MsgFetchFailed {
		t.Errorf("unexpected view %+v", v)
	}
}

func TestHTTPSource_NullBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`null`))
	}))
	defer srv.Close()

	src := NewHTTPSource(upstream.NewClient(0, zerolog.Nop()), srv.URL)
	if _, err := src.Fetch(context.Background()); !errors.Is(err, ErrNotArray) {
		t.Fatalf("expected ErrNotArray, got %v", err)
	}

	ctl, _ := newTestController(t, src)
	if err := ctl.Load(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
	v := ctl.View()
	if !v.Empty || v.Notification == nil || v.Notification.Message != MsgFetchFailed {
		t.Errorf("unexpected view %+v", v)
	}
}

func TestHTTPSource_EmptyArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	records, err := NewHTTPSource(upstream.NewClient(0, zerolog.Nop()), srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}
