package clinicapi

import "encoding/json"

// Specialty is a dental discipline offered by the clinic. Reference data,
// fetched once per wizard session.
type Specialty struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"isActive"`
}

// ServiceType is a specific billable treatment under a specialty.
type ServiceType struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Duration    int     `json:"duration"` // minutes
	Price       float64 `json:"price"`
	SpecialtyID int64   `json:"specialtyId"`
}

// AvailabilitySlot is a bookable time window offered by a dentist.
type AvailabilitySlot struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`      // YYYY-MM-DD
	StartTime   string `json:"startTime"` // HH:MM
	EndTime     string `json:"endTime"`   // HH:MM
	DentistID   int64  `json:"dentistId"`
	DentistName string `json:"dentistName,omitempty"`
	SpecialtyID int64  `json:"specialtyId"`
}

// GuestPatientInput is the contact data collected from an unauthenticated
// visitor before booking.
type GuestPatientInput struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone"`
	IDNumber string `json:"idNumber,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// GuestAppointmentRequest creates an appointment for a guest. The guest
// patient's fields are embedded, not referenced by id.
type GuestAppointmentRequest struct {
	GuestPatient   GuestPatientInput `json:"guest_patient"`
	AvailabilityID int64             `json:"disponibilidad_id"`
	ServiceTypeID  int64             `json:"service_type_id"`
	PreferredDate  string            `json:"preferred_date,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	CaptchaToken   string            `json:"captchaToken,omitempty"`
}

// PatientAppointmentRequest creates an appointment for an authenticated
// patient, referenced by id.
type PatientAppointmentRequest struct {
	PatientID      int64  `json:"patient_id"`
	AvailabilityID int64  `json:"disponibilidad_id"`
	ServiceTypeID  int64  `json:"service_type_id"`
	PreferredDate  string `json:"preferred_date,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// FieldError is one entry of the API's structured validation errors.
type FieldError struct {
	Message string `json:"message"`
}

// envelope is the response shape shared by every clinic API endpoint.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Errors  []FieldError    `json:"errors,omitempty"`
}

// createdRef is the narrow payload returned by the mutation endpoints.
type createdRef struct {
	ID int64 `json:"id"`
}
