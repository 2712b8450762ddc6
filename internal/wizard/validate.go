package wizard

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/odontosys/booking-wizard/internal/availability"
)

// ValidationError is a user-facing validation failure. The wizard keeps
// the step unchanged and makes no network call when one is returned.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func errValidation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

var (
	nameRe     = regexp.MustCompile(`^[\p{L}]+( [\p{L}]+)*$`)
	phoneRe    = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
	idNumberRe = regexp.MustCompile(`^\d{6,10}$`)
)

// ValidateName checks the patient name: 2-100 characters, letters and
// single spaces only.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errValidation("name is required")
	}
	if n := utf8.RuneCountInString(name); n < 2 || n > 100 {
		return errValidation("name must be between 2 and 100 characters")
	}
	if !nameRe.MatchString(name) {
		return errValidation("name may only contain letters and spaces")
	}
	return nil
}

// ValidatePhone checks an E.164-style phone number.
func ValidatePhone(phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return errValidation("phone number is required")
	}
	if !phoneRe.MatchString(phone) {
		return errValidation("phone number is not valid")
	}
	return nil
}

// ValidateEmail accepts an empty email; when present it must parse as an
// address.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return errValidation("email address is not valid")
	}
	return nil
}

// ValidateIDNumber accepts an empty id number; when present it must be
// 6-10 digits.
func ValidateIDNumber(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	if !idNumberRe.MatchString(id) {
		return errValidation("identification number must be 6 to 10 digits")
	}
	return nil
}

// ValidatePatientForm runs every field validator; used both for the
// patient-data step and for live field feedback.
func ValidatePatientForm(f PatientForm) error {
	if err := ValidateName(f.Name); err != nil {
		return err
	}
	if err := ValidatePhone(f.Phone); err != nil {
		return err
	}
	if err := ValidateEmail(f.Email); err != nil {
		return err
	}
	return ValidateIDNumber(f.IDNumber)
}

// Step validators are pure: they look only at the selection and the
// options fetched for the step, and return a specific message on failure.

func (w *Wizard) validateStep(step Step) error {
	switch step {
	case StepSpecialty:
		if w.sel.SpecialtyID == 0 {
			return errValidation("select a specialty to continue")
		}
		return nil
	case StepServiceType:
		if w.sel.ServiceTypeID == 0 {
			return errValidation("select a service to continue")
		}
		if _, ok := w.chosenServiceType(); !ok {
			return errValidation("the selected service does not belong to the chosen specialty")
		}
		return nil
	case StepAvailability:
		if w.sel.AvailabilityID == 0 {
			return errValidation("select an appointment slot to continue")
		}
		if _, ok := availability.FindSlot(w.days, w.sel.AvailabilityID); !ok {
			return errValidation("the selected slot is no longer available")
		}
		return nil
	case StepPatientData:
		return ValidatePatientForm(w.form)
	case StepConfirm:
		return w.validateForSubmit()
	default:
		return errValidation("unknown step")
	}
}

// validateForSubmit re-validates every prior step and the duration fit.
func (w *Wizard) validateForSubmit() error {
	for _, step := range w.steps {
		if step == StepConfirm {
			break
		}
		if err := w.validateStep(step); err != nil {
			return err
		}
	}

	svc, ok := w.chosenServiceType()
	if !ok {
		return errValidation("select a service to continue")
	}
	slot, ok := availability.FindSlot(w.days, w.sel.AvailabilityID)
	if !ok {
		return errValidation("the selected slot is no longer available")
	}
	if err := availability.CheckDurationFit(svc.Duration, slot); err != nil {
		return &ValidationError{Msg: strings.TrimPrefix(err.Error(), "availability: ")}
	}
	return nil
}
