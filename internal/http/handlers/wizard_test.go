package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odontosys/booking-wizard/internal/auth"
	"github.com/odontosys/booking-wizard/internal/clinicapi"
	httpmiddleware "github.com/odontosys/booking-wizard/internal/http/middleware"
	"github.com/odontosys/booking-wizard/internal/observability/metrics"
	"github.com/odontosys/booking-wizard/internal/session"
	"github.com/odontosys/booking-wizard/internal/wizard"
	"github.com/odontosys/booking-wizard/pkg/logging"
)

const testJWTSecret = "handler-test-secret"

type fakeGateway struct {
	calls            []string
	failOn           map[string]error
	lastGuestPatient clinicapi.GuestPatientInput
	lastGuestAppt    clinicapi.GuestAppointmentRequest
	lastPatientAppt  clinicapi.PatientAppointmentRequest
	patientID        int64
	appointmentID    int64
}

func (f *fakeGateway) record(op string) error {
	f.calls = append(f.calls, op)
	if err, ok := f.failOn[op]; ok {
		return err
	}
	return nil
}

func (f *fakeGateway) ListSpecialties(ctx context.Context) ([]clinicapi.Specialty, error) {
	if err := f.record("list_specialties"); err != nil {
		return nil, err
	}
	return []clinicapi.Specialty{
		{ID: 1, Name: "Orthodontics", IsActive: true},
		{ID: 2, Name: "Closed wing", IsActive: false},
	}, nil
}

func (f *fakeGateway) ListServiceTypes(ctx context.Context, specialtyID int64) ([]clinicapi.ServiceType, error) {
	if err := f.record(fmt.Sprintf("list_service_types:%d", specialtyID)); err != nil {
		return nil, err
	}
	return []clinicapi.ServiceType{
		{ID: 5, Name: "Cleaning", Duration: 30, SpecialtyID: specialtyID},
	}, nil
}

func (f *fakeGateway) ListAvailability(ctx context.Context, specialtyID int64, date string) ([]clinicapi.AvailabilitySlot, error) {
	if err := f.record(fmt.Sprintf("list_availability:%d", specialtyID)); err != nil {
		return nil, err
	}
	return []clinicapi.AvailabilitySlot{
		{ID: 42, Date: "2025-06-10", StartTime: "09:00", EndTime: "10:00", DentistID: 3, DentistName: "Dr. Rivas", SpecialtyID: specialtyID},
		{ID: 40, Date: "2025-05-01", StartTime: "08:00", EndTime: "09:00", DentistID: 3, SpecialtyID: specialtyID},
	}, nil
}

func (f *fakeGateway) CreateGuestPatient(ctx context.Context, in clinicapi.GuestPatientInput) (int64, error) {
	if err := f.record("create_guest_patient"); err != nil {
		return 0, err
	}
	f.lastGuestPatient = in
	return f.patientID, nil
}

func (f *fakeGateway) CreateGuestAppointment(ctx context.Context, req clinicapi.GuestAppointmentRequest) (int64, error) {
	if err := f.record("create_guest_appointment"); err != nil {
		return 0, err
	}
	f.lastGuestAppt = req
	return f.appointmentID, nil
}

func (f *fakeGateway) CreatePatientAppointment(ctx context.Context, req clinicapi.PatientAppointmentRequest) (int64, error) {
	if err := f.record("create_patient_appointment"); err != nil {
		return 0, err
	}
	f.lastPatientAppt = req
	return f.appointmentID, nil
}

type testEnv struct {
	router  chi.Router
	gateway *fakeGateway
	store   *session.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gateway := &fakeGateway{patientID: 900, appointmentID: 7001, failOn: map[string]error{}}
	store := session.NewMemoryStore(30 * time.Minute)
	handler := NewWizardHandler(WizardConfig{
		Gateway:            gateway,
		Store:              store,
		Metrics:            metrics.NewBookingMetrics(prometheus.NewRegistry()),
		Logger:             logging.New("error"),
		Clock:              func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
		RedirectDelay:      5 * time.Second,
		CaptchaPassthrough: true,
	})

	r := chi.NewRouter()
	r.Route("/bookings/wizard", func(r chi.Router) {
		r.Use(httpmiddleware.PatientAuth(testJWTSecret))
		r.Post("/", handler.Start)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", handler.Get)
			r.Delete("/", handler.Abandon)
			r.Put("/selection", handler.UpdateSelection)
			r.Post("/selection/validate", handler.ValidateSelection)
			r.Post("/advance", handler.Advance)
			r.Post("/retreat", handler.Retreat)
			r.Post("/submit", handler.Submit)
		})
	})
	return &testEnv{router: r, gateway: gateway, store: store}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), "body: %s", rec.Body.String())
	return rec, resp
}

func viewFrom(t *testing.T, resp apiResponse) wizardView {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var v wizardView
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func (e *testEnv) startGuest(t *testing.T) wizardView {
	t.Helper()
	rec, resp := e.do(t, http.MethodPost, "/bookings/wizard", map[string]string{"mode": "guest"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return viewFrom(t, resp)
}

func TestStartGuestSession(t *testing.T) {
	env := newTestEnv(t)
	v := env.startGuest(t)

	assert.NotEmpty(t, v.SessionID)
	assert.Equal(t, wizard.ModeGuest, v.Mode)
	assert.Equal(t, wizard.StepSpecialty, v.Step)
	assert.Equal(t, 5, v.StepCount)
	assert.Equal(t, wizard.PhaseCollecting, v.Phase)
	require.Len(t, v.Specialties, 1)
	assert.Equal(t, "Orthodontics", v.Specialties[0].Name)
}

func TestStartPatientModeWithoutTokenIsUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	rec, _ := env.do(t, http.MethodPost, "/bookings/wizard", map[string]string{"mode": "patient"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStartPatientModeWithToken(t *testing.T) {
	env := newTestEnv(t)
	token, err := auth.SignToken(auth.Session{ID: 77, Name: "Luis Mora", Phone: "3001234567", Role: "patient"}, testJWTSecret, time.Hour)
	require.NoError(t, err)

	rec, resp := env.do(t, http.MethodPost, "/bookings/wizard", map[string]string{"mode": "patient"},
		map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	v := viewFrom(t, resp)
	assert.Equal(t, wizard.ModePatient, v.Mode)
	assert.Equal(t, 4, v.StepCount)
}

func TestGetUnknownSessionIs404(t *testing.T) {
	env := newTestEnv(t)
	rec, resp := env.do(t, http.MethodGet, "/bookings/wizard/no-such-session", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, resp.Success)
}

func TestSelectionMergeIsAppendOnly(t *testing.T) {
	env := newTestEnv(t)
	v := env.startGuest(t)
	base := "/bookings/wizard/" + v.SessionID

	rec, resp := env.do(t, http.MethodPut, base+"/selection", selectionRequest{SpecialtyID: 1}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), viewFrom(t, resp).Selection.SpecialtyID)

	// A later merge without the specialty must not clear it.
	rec, resp = env.do(t, http.MethodPut, base+"/selection", selectionRequest{Name: "Ana Gomez"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), viewFrom(t, resp).Selection.SpecialtyID)
}

func TestAdvanceThroughGuestFlow(t *testing.T) {
	env := newTestEnv(t)
	v := env.startGuest(t)
	base := "/bookings/wizard/" + v.SessionID

	env.do(t, http.MethodPut, base+"/selection", selectionRequest{SpecialtyID: 1}, nil)
	rec, resp := env.do(t, http.MethodPost, base+"/advance", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	v = viewFrom(t, resp)
	assert.Equal(t, wizard.StepServiceType, v.Step)
	require.Len(t, v.ServiceTypes, 1)

	env.do(t, http.MethodPut, base+"/selection", selectionRequest{ServiceTypeID: 5}, nil)
	rec, resp = env.do(t, http.MethodPost, base+"/advance", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	v = viewFrom(t, resp)
	assert.Equal(t, wizard.StepAvailability, v.Step)

	// The past slot (2025-05-01) is filtered out.
	require.Len(t, v.Days, 1)
	assert.Equal(t, "2025-06-10", v.Days[0].Date)
}

func TestAdvanceWithoutSelectionIs422(t *testing.T) {
	env := newTestEnv(t)
	v := env.startGuest(t)

	rec, resp := env.do(t, http.MethodPost, "/bookings/wizard/"+v.SessionID+"/advance", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, wizard.StepSpecialty, viewFrom(t, resp).Step)
}

func TestRetreatKeepsSelection(t *testing.T) {
	env := newTestEnv(t)
	v := env.startGuest(t)
	base := "/bookings/wizard/" + v.SessionID

	env.do(t, http.MethodPut, base+"/selection", selectionRequest{SpecialtyID: 1}, nil)
	env.do(t, http.MethodPost, base+"/advance", nil, nil)

	rec, resp := env.do(t, http.MethodPost, base+"/retreat", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v = viewFrom(t, resp)
	assert.Equal(t, wizard.StepSpecialty, v.Step)
	assert.Equal(t, int64(1), v.Selection.SpecialtyID)
}

func TestRetreatOnFirstStepIs422(t *testing.T) {
	env := newTestEnv(t)
	v := env.startGuest(t)
	rec, _ := env.do(t, http.MethodPost, "/bookings/wizard/"+v.SessionID+"/retreat", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestValidateSelectionFieldFeedback(t *testing.T) {
	env := newTestEnv(t)
	v := env.startGuest(t)
	bad := "abc123"

	rec, resp := env.do(t, http.MethodPost, "/bookings/wizard/"+v.SessionID+"/selection/validate",
		validateRequest{Phone: &bad}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, resp.Success)
	require.NotEmpty(t, resp.Errors)

	good := "3001234567"
	rec, resp = env.do(t, http.MethodPost, "/bookings/wizard/"+v.SessionID+"/selection/validate",
		validateRequest{Phone: &good}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Errors)
}

func submitReadyGuest(t *testing.T, env *testEnv) string {
	t.Helper()
	v := env.startGuest(t)
	base := "/bookings/wizard/" + v.SessionID

	env.do(t, http.MethodPut, base+"/selection", selectionRequest{SpecialtyID: 1}, nil)
	env.do(t, http.MethodPost, base+"/advance", nil, nil)
	env.do(t, http.MethodPut, base+"/selection", selectionRequest{ServiceTypeID: 5}, nil)
	env.do(t, http.MethodPost, base+"/advance", nil, nil)
	env.do(t, http.MethodPut, base+"/selection", selectionRequest{AvailabilityID: 42}, nil)
	env.do(t, http.MethodPost, base+"/advance", nil, nil)
	env.do(t, http.MethodPut, base+"/selection", selectionRequest{
		Name: "Ana Gomez", Phone: "3001234567", Email: "ana@example.com", Notes: "first visit", CaptchaToken: "tok-123",
	}, nil)
	rec, _ := env.do(t, http.MethodPost, base+"/advance", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return v.SessionID
}

func TestGuestSubmitHappyPath(t *testing.T) {
	env := newTestEnv(t)
	sessionID := submitReadyGuest(t, env)
	base := "/bookings/wizard/" + sessionID

	rec, resp := env.do(t, http.MethodPost, base+"/submit", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	v := viewFrom(t, resp)
	assert.Equal(t, wizard.PhaseSubmitted, v.Phase)
	assert.Equal(t, int64(7001), v.AppointmentID)
	assert.Equal(t, "/login", v.RedirectTo)
	assert.Equal(t, 5, v.RedirectDelaySeconds)

	// Patient is created before the appointment and the request carries
	// the embedded guest fields.
	assert.Equal(t, "create_guest_patient", env.gateway.calls[len(env.gateway.calls)-2])
	assert.Equal(t, "create_guest_appointment", env.gateway.calls[len(env.gateway.calls)-1])
	assert.Equal(t, "Ana Gomez", env.gateway.lastGuestAppt.GuestPatient.Name)
	assert.Equal(t, int64(42), env.gateway.lastGuestAppt.AvailabilityID)
	assert.Equal(t, "tok-123", env.gateway.lastGuestAppt.CaptchaToken)

	// The session is gone after a successful submission.
	rec, _ = env.do(t, http.MethodGet, base, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitServerFaultIs502AndKeepsSession(t *testing.T) {
	env := newTestEnv(t)
	sessionID := submitReadyGuest(t, env)
	env.gateway.failOn["create_guest_patient"] = &clinicapi.APIError{StatusCode: http.StatusInternalServerError, Message: "database unavailable"}

	rec, resp := env.do(t, http.MethodPost, "/bookings/wizard/"+sessionID+"/submit", nil, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	v := viewFrom(t, resp)
	assert.Equal(t, wizard.StepConfirm, v.Step)
	assert.Equal(t, wizard.PhaseCollecting, v.Phase)
	assert.NotEmpty(t, v.Error)

	// Retrying on the same session still works.
	delete(env.gateway.failOn, "create_guest_patient")
	rec, _ = env.do(t, http.MethodPost, "/bookings/wizard/"+sessionID+"/submit", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPatientSubmitServerFaultOffersGuestFallback(t *testing.T) {
	env := newTestEnv(t)
	token, err := auth.SignToken(auth.Session{ID: 77, Name: "Luis Mora", Phone: "3001234567", Role: "patient"}, testJWTSecret, time.Hour)
	require.NoError(t, err)
	headers := map[string]string{"Authorization": "Bearer " + token}

	rec, resp := env.do(t, http.MethodPost, "/bookings/wizard", map[string]string{"mode": "patient"}, headers)
	require.Equal(t, http.StatusCreated, rec.Code)
	sessionID := viewFrom(t, resp).SessionID
	base := "/bookings/wizard/" + sessionID

	env.do(t, http.MethodPut, base+"/selection", selectionRequest{SpecialtyID: 1}, nil)
	env.do(t, http.MethodPost, base+"/advance", nil, nil)
	env.do(t, http.MethodPut, base+"/selection", selectionRequest{ServiceTypeID: 5}, nil)
	env.do(t, http.MethodPost, base+"/advance", nil, nil)
	env.do(t, http.MethodPut, base+"/selection", selectionRequest{AvailabilityID: 42}, nil)
	rec, _ = env.do(t, http.MethodPost, base+"/advance", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	env.gateway.failOn["create_patient_appointment"] = &clinicapi.APIError{StatusCode: http.StatusServiceUnavailable, Message: "upstream down"}
	rec, resp = env.do(t, http.MethodPost, base+"/submit", nil, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	v := viewFrom(t, resp)
	assert.True(t, v.GuestFallback)
}

func TestBusySessionIsConflict(t *testing.T) {
	env := newTestEnv(t)
	v := env.startGuest(t)

	snap, err := env.store.Load(context.Background(), v.SessionID)
	require.NoError(t, err)
	snap.Phase = wizard.PhaseFetching
	require.NoError(t, env.store.Save(context.Background(), v.SessionID, snap))

	rec, _ := env.do(t, http.MethodPost, "/bookings/wizard/"+v.SessionID+"/advance", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec, _ = env.do(t, http.MethodPost, "/bookings/wizard/"+v.SessionID+"/submit", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec, _ = env.do(t, http.MethodPut, "/bookings/wizard/"+v.SessionID+"/selection", selectionRequest{SpecialtyID: 1}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAbandonDeletesSession(t *testing.T) {
	env := newTestEnv(t)
	v := env.startGuest(t)

	rec, _ := env.do(t, http.MethodDelete, "/bookings/wizard/"+v.SessionID, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/bookings/wizard/"+v.SessionID, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
