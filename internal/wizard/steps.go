package wizard

// Mode selects which step table the wizard runs. Authenticated patients
// already have their identity, so their flow skips the patient-data step.
type Mode string

const (
	ModeGuest   Mode = "guest"
	ModePatient Mode = "patient"
)

func (m Mode) valid() bool {
	return m == ModeGuest || m == ModePatient
}

// Step names one stage of the booking flow.
type Step string

const (
	StepSpecialty    Step = "specialty"
	StepServiceType  Step = "service_type"
	StepAvailability Step = "availability"
	StepPatientData  Step = "patient_data"
	StepConfirm      Step = "confirm"
)

// StepsFor returns the ordered step table for a mode.
func StepsFor(mode Mode) []Step {
	if mode == ModePatient {
		return []Step{StepSpecialty, StepServiceType, StepAvailability, StepConfirm}
	}
	return []Step{StepSpecialty, StepServiceType, StepAvailability, StepPatientData, StepConfirm}
}

// Phase is the wizard's activity state. Advance and Submit are only legal
// while Collecting; in-flight gateway work is a distinct phase rather than
// a loading flag, so overlapping transitions are unrepresentable.
type Phase string

const (
	PhaseCollecting Phase = "collecting"
	PhaseFetching   Phase = "fetching"
	PhaseSubmitting Phase = "submitting"
	PhaseSubmitted  Phase = "submitted"
)
