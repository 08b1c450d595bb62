package sandbox

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

var urlPattern = regexp.MustCompile(`^https?://.+\..+`)

func TestDataGenerator_GeneratePatient(t *testing.T) {
	g := NewDataGenerator(SeedConfig{Seed: 7, AvatarRate: 1, WebsiteRate: 1})
	p := g.GeneratePatient()

	if p.ID != "1" {
		t.Errorf("expected id 1, got %s", p.ID)
	}
	if len(strings.Fields(p.Name)) != 2 {
		t.Errorf("expected first and last name, got %q", p.Name)
	}
	if !urlPattern.MatchString(p.Avatar) || !urlPattern.MatchString(p.Website) {
		t.Errorf("expected valid urls, got %q %q", p.Avatar, p.Website)
	}
	if _, err := time.Parse(time.RFC3339Nano, p.CreatedAt); err != nil {
		t.Errorf("createdAt %q not RFC 3339: %v", p.CreatedAt, err)
	}
	if p.Description == "" {
		t.Error("expected description")
	}

	if next := g.GeneratePatient(); next.ID != "2" {
		t.Errorf("expected id 2, got %s", next.ID)
	}
}

func TestDataGenerator_OptionalFields(t *testing.T) {
	g := NewDataGenerator(SeedConfig{Seed: 3})
	for i := 0; i < 20; i++ {
		if p := g.GeneratePatient(); p.Avatar != "" || p.Website != "" {
			t.Fatalf("zero rates should omit optional fields: %+v", p)
		}
	}
}

func TestSeeder_Reproducible(t *testing.T) {
	cfg := DefaultSeedConfig()
	a := NewSeeder(cfg).Generate()
	b := NewSeeder(cfg).Generate()

	if len(a) != cfg.PatientCount {
		t.Fatalf("expected %d patients, got %d", cfg.PatientCount, len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("record %d differs between runs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestSeeder_NegativeCount(t *testing.T) {
	cfg := DefaultSeedConfig()
	cfg.PatientCount = -3
	if got := NewSeeder(cfg).Generate(); len(got) != 0 {
		t.Errorf("expected empty collection, got %d patients", len(got))
	}

	e := echo.New()
	NewSeedHandler(cfg).RegisterRoutes(e.Group(""))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected 200 with empty array, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestSeeder_Reset(t *testing.T) {
	s := NewSeeder(DefaultSeedConfig())
	s.Generate()
	s.Reset()
	if len(s.Patients()) != 0 {
		t.Error("expected empty collection after reset")
	}
}

func TestSlug(t *testing.T) {
	if got := slug("Émile"); got != "mile" {
		t.Errorf("unexpected slug %q", got)
	}
	if got := slug("O'Neil"); got != "oneil" {
		t.Errorf("unexpected slug %q", got)
	}
}

func newSandbox(cfg SeedConfig) *echo.Echo {
	e := echo.New()
	NewSeedHandler(cfg).RegisterRoutes(e.Group(""))
	return e
}

func serve(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSeedHandler_ListAndGet(t *testing.T) {
	e := newSandbox(SeedConfig{PatientCount: 5, Seed: 1})

	rec := serve(e, http.MethodGet, "/users", "")
	var patients []Patient
	if err := json.Unmarshal(rec.Body.Bytes(), &patients); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(patients) != 5 {
		t.Fatalf("expected 5 patients, got %d", len(patients))
	}

	rec = serve(e, http.MethodGet, "/users/3", "")
	var p Patient
	json.Unmarshal(rec.Body.Bytes(), &p)
	if rec.Code != http.StatusOK || p.ID != "3" {
		t.Errorf("unexpected record %d %+v", rec.Code, p)
	}

	if rec := serve(e, http.MethodGet, "/users/99", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestSeedHandler_SeedAndReset(t *testing.T) {
	e := newSandbox(SeedConfig{PatientCount: 2, Seed: 1})

	rec := serve(e, http.MethodPost, "/seed", `{"patientCount":30,"seed":9}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var patients []Patient
	json.Unmarshal(serve(e, http.MethodGet, "/users", "").Body.Bytes(), &patients)
	if len(patients) != 30 {
		t.Errorf("expected 30 patients after reseed, got %d", len(patients))
	}

	if rec := serve(e, http.MethodPost, "/seed", `{"patientCount":-1}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	serve(e, http.MethodPost, "/reset", "")
	json.Unmarshal(serve(e, http.MethodGet, "/users", "").Body.Bytes(), &patients)
	if len(patients) != 0 {
		t.Errorf("expected empty list after reset, got %d", len(patients))
	}
}

func TestSeedHandler_SimulatedFailure(t *testing.T) {
	e := newSandbox(SeedConfig{PatientCount: 2, Seed: 1})

	serve(e, http.MethodPut, "/fail", `{"fail":true}`)
	if rec := serve(e, http.MethodGet, "/users", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}

	serve(e, http.MethodPut, "/fail", `{"fail":false}`)
	if rec := serve(e, http.MethodGet, "/users", ""); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
