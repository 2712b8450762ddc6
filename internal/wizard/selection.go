package wizard

// Selection is the accumulated record of choices across steps. It is
// append-only: setters merge new values and a retreat never clears
// anything, so back-then-forward navigation keeps prior input intact.
type Selection struct {
	SpecialtyID    int64 `json:"specialtyId,omitempty"`
	ServiceTypeID  int64 `json:"serviceTypeId,omitempty"`
	AvailabilityID int64 `json:"availabilityId,omitempty"`
	PatientID      int64 `json:"patientId,omitempty"` // guest path only, set after patient creation
}

// Superset reports whether s carries every non-zero field of prev.
func (s Selection) Superset(prev Selection) bool {
	if prev.SpecialtyID != 0 && s.SpecialtyID == 0 {
		return false
	}
	if prev.ServiceTypeID != 0 && s.ServiceTypeID == 0 {
		return false
	}
	if prev.AvailabilityID != 0 && s.AvailabilityID == 0 {
		return false
	}
	if prev.PatientID != 0 && s.PatientID == 0 {
		return false
	}
	return true
}

// PatientForm holds the contact data collected on the guest patient step.
type PatientForm struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone"`
	IDNumber string `json:"idNumber,omitempty"`
}

// merge copies non-empty fields of other into f, never clearing a field.
func (f *PatientForm) merge(other PatientForm) {
	if other.Name != "" {
		f.Name = other.Name
	}
	if other.Email != "" {
		f.Email = other.Email
	}
	if other.Phone != "" {
		f.Phone = other.Phone
	}
	if other.IDNumber != "" {
		f.IDNumber = other.IDNumber
	}
}

// PatientContext is the already-authenticated patient identity injected
// into a patient-mode wizard at construction. The wizard never mutates it.
type PatientContext struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
}
