// Package wizard implements the multi-step appointment booking flow: a
// state machine that validates each step, fetches the next step's options
// from the clinic API, and assembles the final booking submission for
// either a guest or an authenticated patient.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/odontosys/booking-wizard/internal/availability"
	"github.com/odontosys/booking-wizard/internal/clinicapi"
	"github.com/odontosys/booking-wizard/pkg/logging"
)

// ErrBusy is returned when a transition is attempted while a previous
// gateway call for the same wizard is still in flight.
var ErrBusy = errors.New("wizard: another operation is in progress")

// Gateway is the slice of the clinic API the wizard drives. Every call is
// made at most once per user-triggered transition.
type Gateway interface {
	ListSpecialties(ctx context.Context) ([]clinicapi.Specialty, error)
	ListServiceTypes(ctx context.Context, specialtyID int64) ([]clinicapi.ServiceType, error)
	ListAvailability(ctx context.Context, specialtyID int64, date string) ([]clinicapi.AvailabilitySlot, error)
	CreateGuestPatient(ctx context.Context, in clinicapi.GuestPatientInput) (int64, error)
	CreateGuestAppointment(ctx context.Context, req clinicapi.GuestAppointmentRequest) (int64, error)
	CreatePatientAppointment(ctx context.Context, req clinicapi.PatientAppointmentRequest) (int64, error)
}

var _ Gateway = (*clinicapi.Client)(nil)
var _ Gateway = (*clinicapi.Instrumented)(nil)

// Wizard owns the step state, selections, validation, and the sequential
// network calls of one booking session.
type Wizard struct {
	mode    Mode
	gateway Gateway
	clock   func() time.Time
	logger  *logging.Logger

	steps   []Step
	stepIdx int
	phase   Phase

	sel          Selection
	form         PatientForm
	notes        string
	captchaToken string
	patient      *PatientContext

	specialties  []clinicapi.Specialty
	serviceTypes []clinicapi.ServiceType
	days         []availability.Day
	activeDate   string

	errMsg        string
	successMsg    string
	appointmentID int64
}

// Option configures a Wizard at construction.
type Option func(*Wizard)

// WithClock injects the time source used for the past-date filter.
func WithClock(clock func() time.Time) Option {
	return func(w *Wizard) { w.clock = clock }
}

func WithLogger(logger *logging.Logger) Option {
	return func(w *Wizard) { w.logger = logger }
}

// WithPatient injects the authenticated patient identity; required for
// ModePatient.
func WithPatient(p PatientContext) Option {
	return func(w *Wizard) { w.patient = &p }
}

// New creates a wizard in its initial state. Call Start to load the first
// step's options.
func New(mode Mode, gateway Gateway, opts ...Option) (*Wizard, error) {
	if !mode.valid() {
		return nil, fmt.Errorf("wizard: unknown mode %q", mode)
	}
	if gateway == nil {
		return nil, errors.New("wizard: gateway cannot be nil")
	}
	w := &Wizard{
		mode:    mode,
		gateway: gateway,
		clock:   time.Now,
		logger:  logging.Default(),
		steps:   StepsFor(mode),
		phase:   PhaseCollecting,
	}
	for _, opt := range opts {
		opt(w)
	}
	if mode == ModePatient && w.patient == nil {
		return nil, errors.New("wizard: patient mode requires an authenticated patient context")
	}
	return w, nil
}

// Start fetches the specialties for the first step. Inactive specialties
// are filtered out.
func (w *Wizard) Start(ctx context.Context) error {
	if w.phase != PhaseCollecting {
		return ErrBusy
	}
	w.phase = PhaseFetching
	specialties, err := w.gateway.ListSpecialties(ctx)
	w.phase = PhaseCollecting
	if err != nil {
		w.setError(err)
		return err
	}
	active := make([]clinicapi.Specialty, 0, len(specialties))
	for _, s := range specialties {
		if s.IsActive {
			active = append(active, s)
		}
	}
	w.specialties = active
	return nil
}

func (w *Wizard) Mode() Mode           { return w.mode }
func (w *Wizard) Phase() Phase         { return w.phase }
func (w *Wizard) Step() Step           { return w.steps[w.stepIdx] }
func (w *Wizard) Selection() Selection { return w.sel }
func (w *Wizard) Notes() string        { return w.notes }
func (w *Wizard) ActiveDate() string   { return w.activeDate }

// StepIndex returns the zero-based step index and the total step count.
func (w *Wizard) StepIndex() (int, int) { return w.stepIdx, len(w.steps) }

func (w *Wizard) Specialties() []clinicapi.Specialty   { return w.specialties }
func (w *Wizard) ServiceTypes() []clinicapi.ServiceType { return w.serviceTypes }
func (w *Wizard) Days() []availability.Day              { return w.days }

func (w *Wizard) ErrorMessage() string   { return w.errMsg }
func (w *Wizard) SuccessMessage() string { return w.successMsg }
func (w *Wizard) AppointmentID() int64   { return w.appointmentID }
func (w *Wizard) PatientForm() PatientForm { return w.form }

// RedirectPath is where the client should navigate after submission.
func (w *Wizard) RedirectPath() string {
	if w.mode == ModePatient {
		return "/dashboard"
	}
	return "/login"
}

// Selection setters merge; they never clear a previously chosen value.

func (w *Wizard) SetSpecialty(id int64) {
	if id != 0 {
		w.sel.SpecialtyID = id
	}
}

func (w *Wizard) SetServiceType(id int64) {
	if id != 0 {
		w.sel.ServiceTypeID = id
	}
}

// SetAvailability picks a slot and makes its date the active tab.
func (w *Wizard) SetAvailability(id int64) {
	if id == 0 {
		return
	}
	w.sel.AvailabilityID = id
	if slot, ok := availability.FindSlot(w.days, id); ok {
		w.activeDate = slot.Date
	}
}

// SetActiveDate switches the displayed date tab. The chosen slot is kept
// unless it belongs to a different date.
func (w *Wizard) SetActiveDate(date string) {
	if date == "" {
		return
	}
	w.activeDate = date
	if w.sel.AvailabilityID != 0 {
		if slot, ok := availability.FindSlot(w.days, w.sel.AvailabilityID); ok && slot.Date != date {
			w.sel.AvailabilityID = 0
		}
	}
}

func (w *Wizard) SetPatientForm(f PatientForm) { w.form.merge(f) }

func (w *Wizard) SetNotes(notes string) {
	if notes != "" {
		w.notes = notes
	}
}

func (w *Wizard) SetCaptchaToken(token string) {
	if token != "" {
		w.captchaToken = token
	}
}

// Advance validates the current step, fetches the next step's options, and
// moves forward. On any failure the step index is unchanged and the error
// is surfaced; no partial advance happens.
func (w *Wizard) Advance(ctx context.Context) error {
	if w.phase != PhaseCollecting {
		return ErrBusy
	}
	step := w.Step()
	if step == StepConfirm {
		return errValidation("already at the confirmation step; submit the booking instead")
	}

	if err := w.validateStep(step); err != nil {
		w.setError(err)
		return err
	}

	w.phase = PhaseFetching
	err := w.fetchAfter(ctx, step)
	w.phase = PhaseCollecting
	if err != nil {
		w.setError(err)
		return err
	}

	w.stepIdx++
	w.clearMessages()
	return nil
}

// fetchAfter loads the options needed by the step that follows step.
func (w *Wizard) fetchAfter(ctx context.Context, step Step) error {
	switch step {
	case StepSpecialty:
		types, err := w.gateway.ListServiceTypes(ctx, w.sel.SpecialtyID)
		if err != nil {
			return err
		}
		w.serviceTypes = types
	case StepServiceType:
		slots, err := w.gateway.ListAvailability(ctx, w.sel.SpecialtyID, "")
		if err != nil {
			return err
		}
		w.days = availability.GroupByDate(availability.Upcoming(slots, w.clock()))
		if w.activeDate == "" && len(w.days) > 0 {
			w.activeDate = w.days[0].Date
		}
	}
	// Leaving the availability or patient-data step needs no fetch: the
	// following step renders from data already collected.
	return nil
}

// Retreat moves one step back without touching the selection, so
// re-advancing does not require re-selection.
func (w *Wizard) Retreat() error {
	if w.phase != PhaseCollecting {
		return ErrBusy
	}
	if w.stepIdx == 0 {
		return errValidation("already at the first step")
	}
	w.stepIdx--
	w.clearMessages()
	return nil
}

// Submit assembles and sends the booking. Guests get a patient record
// created first; its id is captured into the selection before the
// appointment call. Nothing is retried on failure.
func (w *Wizard) Submit(ctx context.Context) (int64, error) {
	if w.phase == PhaseSubmitted {
		return 0, errValidation("this booking was already submitted")
	}
	if w.phase != PhaseCollecting {
		return 0, ErrBusy
	}
	if w.Step() != StepConfirm {
		return 0, errValidation("complete the remaining steps before submitting")
	}
	if err := w.validateForSubmit(); err != nil {
		w.setError(err)
		return 0, err
	}

	slot, _ := availability.FindSlot(w.days, w.sel.AvailabilityID)

	w.phase = PhaseSubmitting
	appointmentID, err := w.submit(ctx, slot.Date)
	if err != nil {
		w.phase = PhaseCollecting
		w.setError(err)
		return 0, err
	}

	w.phase = PhaseSubmitted
	w.appointmentID = appointmentID
	w.errMsg = ""
	w.successMsg = fmt.Sprintf("Your appointment #%d is booked for %s at %s with %s.",
		appointmentID, slot.Date, slot.StartTime, slot.DentistName)
	w.logger.Info("booking submitted",
		"mode", string(w.mode),
		"appointment_id", appointmentID,
		"specialty_id", w.sel.SpecialtyID,
		"service_type_id", w.sel.ServiceTypeID,
	)
	return appointmentID, nil
}

func (w *Wizard) submit(ctx context.Context, preferredDate string) (int64, error) {
	if w.mode == ModePatient {
		return w.gateway.CreatePatientAppointment(ctx, clinicapi.PatientAppointmentRequest{
			PatientID:      w.patient.ID,
			AvailabilityID: w.sel.AvailabilityID,
			ServiceTypeID:  w.sel.ServiceTypeID,
			PreferredDate:  preferredDate,
			Notes:          w.notes,
		})
	}

	guest := clinicapi.GuestPatientInput{
		Name:     w.form.Name,
		Email:    w.form.Email,
		Phone:    w.form.Phone,
		IDNumber: w.form.IDNumber,
	}
	patientID, err := w.gateway.CreateGuestPatient(ctx, guest)
	if err != nil {
		return 0, err
	}
	w.sel.PatientID = patientID

	return w.gateway.CreateGuestAppointment(ctx, clinicapi.GuestAppointmentRequest{
		GuestPatient:   guest,
		AvailabilityID: w.sel.AvailabilityID,
		ServiceTypeID:  w.sel.ServiceTypeID,
		PreferredDate:  preferredDate,
		Notes:          w.notes,
		CaptchaToken:   w.captchaToken,
	})
}

func (w *Wizard) chosenServiceType() (clinicapi.ServiceType, bool) {
	for _, t := range w.serviceTypes {
		if t.ID == w.sel.ServiceTypeID {
			return t, true
		}
	}
	return clinicapi.ServiceType{}, false
}

// setError records the user-visible message for an error, clearing any
// previous success message; the two are mutually exclusive.
func (w *Wizard) setError(err error) {
	w.successMsg = ""
	w.errMsg = userMessage(err)
}

func (w *Wizard) clearMessages() {
	w.errMsg = ""
	w.successMsg = ""
}

// userMessage maps the error taxonomy to what the patient should read.
func userMessage(err error) string {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Msg
	}
	var tErr *clinicapi.TransportError
	if errors.As(err, &tErr) {
		return "Could not reach the server. Please check your connection and try again."
	}
	var aErr *clinicapi.APIError
	if errors.As(err, &aErr) {
		return aErr.JoinedMessages()
	}
	return err.Error()
}
