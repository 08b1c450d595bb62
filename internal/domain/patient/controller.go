package patient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/patientdesk/internal/platform/notification"
	"github.com/ehr/patientdesk/pkg/pagination"
)

var (
	// ErrFormClosed is returned for form intents while no form is open.
	ErrFormClosed = errors.New("no form is open")
	// ErrUnknownField is returned when a field change names no draft field.
	ErrUnknownField = errors.New("unknown form field")
)

// User-facing notification messages.
const (
	MsgFetchFailed = "Failed to fetch patient data"
	MsgAdded       = "Patient added successfully!"
	MsgUpdated     = "Patient updated successfully!"
	MsgNotFound    = "Patient not found"
)

// LoadObserver is told about the outcome of every initial load.
type LoadObserver interface {
	ObserveLoad(records int, err error)
}

// ChangeType names a change to the shared collection.
type ChangeType string

const (
	ChangeLoaded     ChangeType = "records.loaded"
	ChangeLoadFailed ChangeType = "records.load_failed"
	ChangeCreated    ChangeType = "patient.created"
	ChangeUpdated    ChangeType = "patient.updated"
)

// Change describes a committed mutation. PatientID and Record are empty
// for loads.
type Change struct {
	Type      ChangeType
	PatientID string
	Record    Record
}

// FormMode distinguishes the add and edit forms.
type FormMode string

const (
	FormCreate FormMode = "create"
	FormEdit   FormMode = "edit"
)

// Form is the state of the open add/edit modal.
type Form struct {
	Mode      FormMode    `json:"mode"`
	EditingID string      `json:"editing_id,omitempty"`
	Draft     Draft       `json:"draft"`
	Errors    FieldErrors `json:"errors"`

	createdAt string
}

// Title is the modal heading.
func (f *Form) Title() string {
	if f.Mode == FormEdit {
		return "Edit Patient"
	}
	return "Add New Patient"
}

// SubmitLabel is the text of the submit button.
func (f *Form) SubmitLabel() string {
	if f.Mode == FormEdit {
		return "Update Patient"
	}
	return "Add Patient"
}

func (f *Form) clone() *Form {
	cp := *f
	cp.Errors = make(FieldErrors, len(f.Errors))
	for k, v := range f.Errors {
		cp.Errors[k] = v
	}
	return &cp
}

// Controller turns user intents into store mutations and renders the
// current view. All intents are serialized.
type Controller struct {
	mu       sync.Mutex
	store    *Store
	source   Source
	notes    *notification.Slot
	logger   zerolog.Logger
	observer LoadObserver
	onChange func(Change)
	now      func() time.Time

	loading  bool
	search   string
	sort     SortKey
	page     int
	expanded string
	form     *Form
	failures avatarFailures
}

// Option configures a Controller.
type Option func(*Controller)

// WithObserver reports load outcomes to o.
func WithObserver(o LoadObserver) Option {
	return func(c *Controller) { c.observer = o }
}

// WithChangeListener calls fn after every committed change. fn runs with
// the controller locked and must not call back into it.
func WithChangeListener(fn func(Change)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// WithClock overrides the time source used for new createdAt values.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func NewController(store *Store, source Source, notes *notification.Slot, logger zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{
		store:    store,
		source:   source,
		notes:    notes,
		logger:   logger,
		now:      time.Now,
		loading:  true,
		sort:     SortByID,
		page:     1,
		failures: avatarFailures{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start runs the initial load in the background. The returned channel is
// closed once the load has finished.
func (c *Controller) Start(ctx context.Context) <-chan struct{} {
	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Load(ctx)
	}()
	return done
}

// Load fetches the records from the source and replaces the collection.
// On failure the collection is emptied and an error notification shown.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()

	records, err := c.source.Fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false

	if c.observer != nil {
		c.observer.ObserveLoad(len(records), err)
	}
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to fetch patients")
		c.store.Load(nil)
		c.notes.Error(MsgFetchFailed)
		c.emit(Change{Type: ChangeLoadFailed})
		return err
	}

	c.store.Load(records)
	c.failures = avatarFailures{}
	c.logger.Info().Int("count", len(records)).Msg("patients loaded")
	c.emit(Change{Type: ChangeLoaded})
	return nil
}

func (c *Controller) emit(ch Change) {
	if c.onChange != nil {
		c.onChange(ch)
	}
}

// SetSearch changes the search term and returns to the first page.
func (c *Controller) SetSearch(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.search = term
	c.page = 1
}

// SetSort changes the ordering and returns to the first page.
func (c *Controller) SetSort(key SortKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sort = key
	c.page = 1
}

// SetPage moves to page, pinned to the available range. It returns the page
// actually selected.
func (c *Controller) SetPage(page int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	matched := len(Filter(c.store.All(), c.search))
	c.page = pagination.New(page, pagination.DefaultPageSize).Clamp(matched).Page
	return c.page
}

// ToggleExpand expands the card with the given id, collapsing any other.
// Toggling the expanded card collapses it. It reports whether the card is
// now expanded.
func (c *Controller) ToggleExpand(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.expanded == id {
		c.expanded = ""
		return false
	}
	c.expanded = id
	return true
}

// ReportAvatarError records that the avatar image of the record failed to
// load, so its initials are shown until the avatar URL changes.
func (c *Controller) ReportAvatarError(id string) error {
	rec, err := c.store.Get(id)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if rec.Avatar != "" {
		c.failures[id] = rec.Avatar
	}
	return nil
}

// OpenCreate opens an empty add form.
func (c *Controller) OpenCreate() *Form {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.form = &Form{Mode: FormCreate, Errors: FieldErrors{}}
	return c.form.clone()
}

// OpenEdit opens an edit form holding a copy of the record's fields.
func (c *Controller) OpenEdit(id string) (*Form, error) {
	rec, err := c.store.Get(id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	d := DraftOf(rec)
	d.CreatedAt = ""
	c.form = &Form{
		Mode:      FormEdit,
		EditingID: rec.ID,
		Draft:     d,
		Errors:    FieldErrors{},
		createdAt: rec.CreatedAt,
	}
	return c.form.clone(), nil
}

// ChangeField sets a draft field and drops that field's error without
// validating again.
func (c *Controller) ChangeField(field, value string) (*Form, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.form == nil {
		return nil, ErrFormClosed
	}
	if !c.form.Draft.Set(field, value) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	delete(c.form.Errors, field)
	return c.form.clone(), nil
}

// Submit validates the open form and commits it. On validation failure the
// form stays open with its field errors and an error wrapping ErrValidation
// is returned.
func (c *Controller) Submit() (Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.form == nil {
		return Record{}, ErrFormClosed
	}

	errs := Validate(c.form.Draft)
	c.form.Errors = errs
	if !errs.Valid() {
		return Record{}, fmt.Errorf("%w: %d field(s)", ErrValidation, len(errs))
	}

	d := c.form.Draft
	d.CreatedAt = c.form.createdAt
	if d.CreatedAt == "" {
		d.CreatedAt = Timestamp(c.now())
	}

	var (
		rec Record
		err error
	)
	switch c.form.Mode {
	case FormEdit:
		rec, err = c.store.Update(c.form.EditingID, d)
		if err != nil {
			c.logger.Warn().Str("patient_id", c.form.EditingID).Msg("edited patient no longer exists")
			c.form = nil
			c.notes.Error(MsgNotFound)
			return Record{}, err
		}
		c.failures.forget(rec)
		c.notes.Success(MsgUpdated)
		c.logger.Info().Str("patient_id", rec.ID).Msg("patient updated")
		c.emit(Change{Type: ChangeUpdated, PatientID: rec.ID, Record: rec})
	default:
		rec = c.store.Create(d)
		c.notes.Success(MsgAdded)
		c.logger.Info().Str("patient_id", rec.ID).Msg("patient added")
		c.emit(Change{Type: ChangeCreated, PatientID: rec.ID, Record: rec})
	}

	c.form = nil
	return rec, nil
}

// Cancel closes the form and discards the draft.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form = nil
}

// Dismiss clears the visible notification.
func (c *Controller) Dismiss() bool {
	return c.notes.Dismiss()
}

// Close cancels pending timers.
func (c *Controller) Close() {
	c.notes.Close()
}

// SortOption is one entry of the sort selector.
type SortOption struct {
	Value SortKey `json:"value"`
	Label string  `json:"label"`
}

// View is a snapshot of everything the page shows.
type View struct {
	Loading        bool                       `json:"loading"`
	Search         string                     `json:"search"`
	Sort           SortKey                    `json:"sort"`
	SortOptions    []SortOption               `json:"sort_options"`
	Page           int                        `json:"page"`
	TotalPages     int                        `json:"total_pages"`
	Cards          []Card                     `json:"cards"`
	ShowingFrom    int                        `json:"showing_from"`
	ShowingTo      int                        `json:"showing_to"`
	Matched        int                        `json:"matched"`
	Total          int                        `json:"total"`
	ShowPagination bool                       `json:"show_pagination"`
	HasPrevious    bool                       `json:"has_previous"`
	HasNext        bool                       `json:"has_next"`
	Empty          bool                       `json:"empty"`
	Form           *FormView                  `json:"form,omitempty"`
	Notification   *notification.Notification `json:"notification,omitempty"`
}

// FormView is the rendered modal.
type FormView struct {
	Mode        FormMode    `json:"mode"`
	EditingID   string      `json:"editing_id,omitempty"`
	Draft       Draft       `json:"draft"`
	Errors      FieldErrors `json:"errors"`
	Title       string      `json:"title"`
	SubmitLabel string      `json:"submit_label"`
}

// Filtered reports whether the search hides part of the collection.
func (v View) Filtered() bool {
	return v.Matched != v.Total
}

// Summary renders the result counter line.
func (v View) Summary() string {
	s := fmt.Sprintf("Showing %d-%d of %d patients", v.ShowingFrom, v.ShowingTo, v.Matched)
	if v.Filtered() {
		s += fmt.Sprintf(" (filtered from %d total)", v.Total)
	}
	return s
}

// View renders the current state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	all := c.store.All()
	res := Run(all, Query{Search: c.search, Sort: c.sort, Page: c.page})

	pager := pagination.New(res.Page, pagination.DefaultPageSize)
	v := View{
		Loading:        c.loading,
		Search:         c.search,
		Sort:           c.sort,
		Page:           res.Page,
		TotalPages:     res.TotalPages,
		Cards:          make([]Card, 0, len(res.Items)),
		ShowingTo:      res.End,
		Matched:        res.Total,
		Total:          len(all),
		ShowPagination: res.Total > pagination.DefaultPageSize,
		HasPrevious:    pager.HasPrevious(),
		HasNext:        pager.HasNext(res.Total),
		Empty:          res.Total == 0,
	}
	for _, k := range SortKeys {
		v.SortOptions = append(v.SortOptions, SortOption{Value: k, Label: k.Label()})
	}
	if len(res.Items) > 0 {
		v.ShowingFrom = res.Start + 1
	}
	for _, r := range res.Items {
		v.Cards = append(v.Cards, newCard(r, c.failures, c.expanded))
	}
	if c.form != nil {
		f := c.form.clone()
		v.Form = &FormView{
			Mode:        f.Mode,
			EditingID:   f.EditingID,
			Draft:       f.Draft,
			Errors:      f.Errors,
			Title:       f.Title(),
			SubmitLabel: f.SubmitLabel(),
		}
	}
	if n, ok := c.notes.Current(); ok {
		v.Notification = &n
	}
	return v
}
