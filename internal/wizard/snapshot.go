package wizard

import (
	"fmt"
	"time"

	"github.com/odontosys/booking-wizard/internal/availability"
	"github.com/odontosys/booking-wizard/internal/clinicapi"
	"github.com/odontosys/booking-wizard/pkg/logging"
)

// Snapshot is the serializable state of a wizard session. The session
// store persists snapshots between HTTP requests; the gateway and clock
// are reattached on Restore.
type Snapshot struct {
	Mode           Mode                     `json:"mode"`
	StepIndex      int                      `json:"stepIndex"`
	Phase          Phase                    `json:"phase"`
	Selection      Selection                `json:"selection"`
	PatientForm    PatientForm              `json:"patientForm"`
	Notes          string                   `json:"notes,omitempty"`
	CaptchaToken   string                   `json:"captchaToken,omitempty"`
	Patient        *PatientContext          `json:"patient,omitempty"`
	ActiveDate     string                   `json:"activeDate,omitempty"`
	Specialties    []clinicapi.Specialty    `json:"specialties,omitempty"`
	ServiceTypes   []clinicapi.ServiceType  `json:"serviceTypes,omitempty"`
	Days           []availability.Day       `json:"days,omitempty"`
	ErrorMessage   string                   `json:"errorMessage,omitempty"`
	SuccessMessage string                   `json:"successMessage,omitempty"`
	AppointmentID  int64                    `json:"appointmentId,omitempty"`
}

// Snapshot captures the wizard's current state.
func (w *Wizard) Snapshot() *Snapshot {
	return &Snapshot{
		Mode:           w.mode,
		StepIndex:      w.stepIdx,
		Phase:          w.phase,
		Selection:      w.sel,
		PatientForm:    w.form,
		Notes:          w.notes,
		CaptchaToken:   w.captchaToken,
		Patient:        w.patient,
		ActiveDate:     w.activeDate,
		Specialties:    w.specialties,
		ServiceTypes:   w.serviceTypes,
		Days:           w.days,
		ErrorMessage:   w.errMsg,
		SuccessMessage: w.successMsg,
		AppointmentID:  w.appointmentID,
	}
}

// Restore rebuilds a wizard from a snapshot, reattaching the gateway and
// any options. The snapshot's phase is preserved, so a session saved
// mid-fetch still rejects overlapping transitions.
func Restore(snap *Snapshot, gateway Gateway, opts ...Option) (*Wizard, error) {
	if snap == nil {
		return nil, fmt.Errorf("wizard: nil snapshot")
	}
	if !snap.Mode.valid() {
		return nil, fmt.Errorf("wizard: snapshot has unknown mode %q", snap.Mode)
	}
	steps := StepsFor(snap.Mode)
	if snap.StepIndex < 0 || snap.StepIndex >= len(steps) {
		return nil, fmt.Errorf("wizard: snapshot step index %d out of range", snap.StepIndex)
	}

	w := &Wizard{
		mode:           snap.Mode,
		gateway:        gateway,
		clock:          time.Now,
		logger:         nil,
		steps:          steps,
		stepIdx:        snap.StepIndex,
		phase:          snap.Phase,
		sel:            snap.Selection,
		form:           snap.PatientForm,
		notes:          snap.Notes,
		captchaToken:   snap.CaptchaToken,
		patient:        snap.Patient,
		activeDate:     snap.ActiveDate,
		specialties:    snap.Specialties,
		serviceTypes:   snap.ServiceTypes,
		days:           snap.Days,
		errMsg:         snap.ErrorMessage,
		successMsg:     snap.SuccessMessage,
		appointmentID:  snap.AppointmentID,
	}
	if w.phase == "" {
		w.phase = PhaseCollecting
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logging.Default()
	}
	if gateway == nil {
		return nil, fmt.Errorf("wizard: gateway cannot be nil")
	}
	if w.mode == ModePatient && w.patient == nil {
		return nil, fmt.Errorf("wizard: patient-mode snapshot lost its patient context")
	}
	return w, nil
}
