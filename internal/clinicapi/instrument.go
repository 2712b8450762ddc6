package clinicapi

import (
	"context"
	"time"

	"github.com/odontosys/booking-wizard/internal/observability/metrics"
)

// Instrumented wraps a Client and records call latency per operation.
type Instrumented struct {
	client  *Client
	metrics *metrics.BookingMetrics
}

func NewInstrumented(client *Client, m *metrics.BookingMetrics) *Instrumented {
	return &Instrumented{client: client, metrics: m}
}

func (i *Instrumented) ListSpecialties(ctx context.Context) ([]Specialty, error) {
	defer i.observe("list_specialties", time.Now())
	return i.client.ListSpecialties(ctx)
}

func (i *Instrumented) ListServiceTypes(ctx context.Context, specialtyID int64) ([]ServiceType, error) {
	defer i.observe("list_service_types", time.Now())
	return i.client.ListServiceTypes(ctx, specialtyID)
}

func (i *Instrumented) ListAvailability(ctx context.Context, specialtyID int64, date string) ([]AvailabilitySlot, error) {
	defer i.observe("list_availability", time.Now())
	return i.client.ListAvailability(ctx, specialtyID, date)
}

func (i *Instrumented) CreateGuestPatient(ctx context.Context, in GuestPatientInput) (int64, error) {
	defer i.observe("create_guest_patient", time.Now())
	return i.client.CreateGuestPatient(ctx, in)
}

func (i *Instrumented) CreateGuestAppointment(ctx context.Context, req GuestAppointmentRequest) (int64, error) {
	defer i.observe("create_guest_appointment", time.Now())
	return i.client.CreateGuestAppointment(ctx, req)
}

func (i *Instrumented) CreatePatientAppointment(ctx context.Context, req PatientAppointmentRequest) (int64, error) {
	defer i.observe("create_patient_appointment", time.Now())
	return i.client.CreatePatientAppointment(ctx, req)
}

func (i *Instrumented) observe(operation string, start time.Time) {
	i.metrics.ObserveGatewayLatency(operation, time.Since(start).Seconds())
}
