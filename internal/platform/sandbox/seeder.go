// Package sandbox serves reproducible synthetic patient records in the shape
// of the upstream users endpoint, for demos and offline development.
package sandbox

import (
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// SeedConfig controls how many records are generated and from which seed.
type SeedConfig struct {
	PatientCount int   `json:"patientCount"`
	Seed         int64 `json:"seed"`
	// AvatarRate and WebsiteRate are the fractions of records carrying
	// those optional fields.
	AvatarRate  float64 `json:"avatarRate"`
	WebsiteRate float64 `json:"websiteRate"`
}

func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		PatientCount: 40,
		Seed:         1,
		AvatarRate:   0.8,
		WebsiteRate:  0.6,
	}
}

// Patient is one record as the upstream endpoint returns it.
type Patient struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Avatar      string `json:"avatar,omitempty"`
	Website     string `json:"website,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

var (
	firstNames = []string{
		"James", "Robert", "John", "Michael", "David", "William", "Richard",
		"Joseph", "Thomas", "Daniel", "Matthew", "Anthony", "Mark", "Steven",
		"Mary", "Patricia", "Jennifer", "Linda", "Barbara", "Elizabeth",
		"Susan", "Jessica", "Sarah", "Karen", "Nancy", "Margaret", "Emily",
		"Michelle", "Amanda", "Rebecca", "Laura", "Anna", "Emma", "Helen",
		"Zoë", "Émile", "Ángel", "Søren",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia",
		"Miller", "Davis", "Rodriguez", "Martinez", "Hernandez", "Lopez",
		"Gonzalez", "Wilson", "Anderson", "Thomas", "Taylor", "Moore",
		"Jackson", "Martin", "Lee", "Perez", "Thompson", "White", "Harris",
		"Nguyen", "Hill", "Flores", "Green", "Adams", "Nelson", "Baker",
	}
	conditions = []string{
		"Type 2 diabetes mellitus without complications",
		"Essential (primary) hypertension",
		"Unspecified asthma, uncomplicated",
		"Hyperlipidemia, unspecified",
		"Low back pain",
		"Gastro-esophageal reflux disease with esophagitis",
		"Hypothyroidism, unspecified",
		"Migraine, unspecified, not intractable",
		"Allergic rhinitis, unspecified",
		"Vitamin D deficiency, unspecified",
		"Insomnia, unspecified",
	}
	visitNotes = []string{
		"Routine follow-up scheduled in three months.",
		"Responding well to current treatment.",
		"Referred to specialist for further evaluation.",
		"Medication dosage adjusted at last visit.",
		"Lab work ordered before next appointment.",
	}
)

var epoch = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

// DataGenerator produces synthetic records. It is not safe for concurrent
// use.
type DataGenerator struct {
	rng     *rand.Rand
	counter int
	config  SeedConfig
}

// NewDataGenerator returns a generator. A zero seed picks a time-based one.
func NewDataGenerator(cfg SeedConfig) *DataGenerator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{
		rng:    rand.New(rand.NewSource(seed)),
		config: cfg,
	}
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *DataGenerator) chance(rate float64) bool {
	return g.rng.Float64() < rate
}

// randomTime returns a millisecond-precision instant within four years of
// the epoch.
func (g *DataGenerator) randomTime() time.Time {
	ms := g.rng.Int63n(int64(4 * 365 * 24 * time.Hour / time.Millisecond))
	return epoch.Add(time.Duration(ms) * time.Millisecond)
}

// GeneratePatient produces the next record. Ids count up from 1.
func (g *DataGenerator) GeneratePatient() Patient {
	g.counter++
	first, last := g.pick(firstNames), g.pick(lastNames)

	p := Patient{
		ID:        fmt.Sprint(g.counter),
		Name:      first + " " + last,
		CreatedAt: g.randomTime().Format("2006-01-02T15:04:05.000Z07:00"),
		Description: fmt.Sprintf("%s. %s",
			g.pick(conditions), g.pick(visitNotes)),
	}
	if g.chance(g.config.AvatarRate) {
		p.Avatar = fmt.Sprintf("https://i.pravatar.cc/150?u=%d", g.counter)
	}
	if g.chance(g.config.WebsiteRate) {
		p.Website = fmt.Sprintf("https://%s-%s.example.com", slug(first), slug(last))
	}
	return p
}

func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Seeder holds one generated collection.
type Seeder struct {
	config   SeedConfig
	mu       sync.RWMutex
	patients []Patient
}

func NewSeeder(config SeedConfig) *Seeder {
	return &Seeder{config: config}
}

// Generate replaces the collection with config.PatientCount new records.
func (s *Seeder) Generate() []Patient {
	g := NewDataGenerator(s.config)
	n := max(s.config.PatientCount, 0)
	out := make([]Patient, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.GeneratePatient())
	}

	s.mu.Lock()
	s.patients = out
	s.mu.Unlock()
	return s.Patients()
}

// Patients returns a copy of the current collection.
func (s *Seeder) Patients() []Patient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Patient, len(s.patients))
	copy(out, s.patients)
	return out
}

// Reset empties the collection.
func (s *Seeder) Reset() {
	s.mu.Lock()
	s.patients = nil
	s.mu.Unlock()
}

// SeedHandler exposes a Seeder as a mock upstream endpoint.
type SeedHandler struct {
	mu     sync.Mutex
	seeder *Seeder
	fail   bool
}

// NewSeedHandler creates a handler already seeded with cfg.
func NewSeedHandler(cfg SeedConfig) *SeedHandler {
	s := NewSeeder(cfg)
	s.Generate()
	return &SeedHandler{seeder: s}
}

// RegisterRoutes mounts the users endpoint and the seed controls.
func (h *SeedHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/users", h.handleList)
	g.GET("/users/:id", h.handleGet)
	g.POST("/seed", h.handleSeed)
	g.POST("/reset", h.handleReset)
	g.PUT("/fail", h.handleFail)
}

func (h *SeedHandler) current() (*Seeder, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seeder, h.fail
}

func (h *SeedHandler) handleList(c echo.Context) error {
	s, fail := h.current()
	if fail {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "sandbox upstream failure")
	}
	return c.JSON(http.StatusOK, s.Patients())
}

func (h *SeedHandler) handleGet(c echo.Context) error {
	s, fail := h.current()
	if fail {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "sandbox upstream failure")
	}
	id := c.Param("id")
	for _, p := range s.Patients() {
		if p.ID == id {
			return c.JSON(http.StatusOK, p)
		}
	}
	return echo.NewHTTPError(http.StatusNotFound, "Not found")
}

func (h *SeedHandler) handleSeed(c echo.Context) error {
	cfg := DefaultSeedConfig()
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if cfg.PatientCount < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "patientCount must not be negative")
	}

	s := NewSeeder(cfg)
	patients := s.Generate()

	h.mu.Lock()
	h.seeder = s
	h.mu.Unlock()

	return c.JSON(http.StatusOK, map[string]interface{}{
		"patientCount": len(patients),
		"seed":         cfg.Seed,
	})
}

func (h *SeedHandler) handleReset(c echo.Context) error {
	s, _ := h.current()
	s.Reset()
	return c.JSON(http.StatusOK, map[string]string{"status": "reset"})
}

type failRequest struct {
	Fail bool `json:"fail"`
}

// handleFail toggles simulated upstream outages.
func (h *SeedHandler) handleFail(c echo.Context) error {
	var req failRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	h.mu.Lock()
	h.fail = req.Fail
	h.mu.Unlock()
	return c.JSON(http.StatusOK, req)
}
