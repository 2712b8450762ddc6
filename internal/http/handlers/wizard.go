package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odontosys/booking-wizard/internal/availability"
	"github.com/odontosys/booking-wizard/internal/clinicapi"
	httpmiddleware "github.com/odontosys/booking-wizard/internal/http/middleware"
	"github.com/odontosys/booking-wizard/internal/observability/metrics"
	"github.com/odontosys/booking-wizard/internal/session"
	"github.com/odontosys/booking-wizard/internal/wizard"
	"github.com/odontosys/booking-wizard/pkg/logging"
)

// WizardConfig wires the wizard handler's collaborators.
type WizardConfig struct {
	Gateway            wizard.Gateway
	Store              session.Store
	Metrics            *metrics.BookingMetrics
	Logger             *logging.Logger
	Clock              func() time.Time
	RedirectDelay      time.Duration
	CaptchaPassthrough bool
}

// WizardHandler serves the booking wizard session API. Each request loads
// the session snapshot, replays it into a wizard instance, runs one
// transition, and persists the result.
type WizardHandler struct {
	gateway            wizard.Gateway
	store              session.Store
	metrics            *metrics.BookingMetrics
	logger             *logging.Logger
	clock              func() time.Time
	redirectDelay      time.Duration
	captchaPassthrough bool
}

func NewWizardHandler(cfg WizardConfig) *WizardHandler {
	if cfg.Gateway == nil {
		panic("handlers: wizard gateway cannot be nil")
	}
	if cfg.Store == nil {
		panic("handlers: session store cannot be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	redirectDelay := cfg.RedirectDelay
	if redirectDelay == 0 {
		redirectDelay = 5 * time.Second
	}
	return &WizardHandler{
		gateway:            cfg.Gateway,
		store:              cfg.Store,
		metrics:            cfg.Metrics,
		logger:             logger,
		clock:              clock,
		redirectDelay:      redirectDelay,
		captchaPassthrough: cfg.CaptchaPassthrough,
	}
}

type startRequest struct {
	Mode string `json:"mode"`
}

type selectionRequest struct {
	SpecialtyID    int64  `json:"specialty_id,omitempty"`
	ServiceTypeID  int64  `json:"service_type_id,omitempty"`
	AvailabilityID int64  `json:"availability_id,omitempty"`
	ActiveDate     string `json:"active_date,omitempty"`
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	IDNumber       string `json:"id_number,omitempty"`
	Notes          string `json:"notes,omitempty"`
	CaptchaToken   string `json:"captcha_token,omitempty"`
}

type validateRequest struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	IDNumber *string `json:"id_number,omitempty"`
}

// wizardView is what the frontend renders after every call.
type wizardView struct {
	SessionID            string                   `json:"session_id"`
	Mode                 wizard.Mode              `json:"mode"`
	Step                 wizard.Step              `json:"step"`
	StepIndex            int                      `json:"step_index"`
	StepCount            int                      `json:"step_count"`
	Phase                wizard.Phase             `json:"phase"`
	Selection            wizard.Selection         `json:"selection"`
	Specialties          []clinicapi.Specialty    `json:"specialties,omitempty"`
	ServiceTypes         []clinicapi.ServiceType  `json:"service_types,omitempty"`
	Days                 []availability.Day       `json:"days,omitempty"`
	ActiveDate           string                   `json:"active_date,omitempty"`
	Error                string                   `json:"error,omitempty"`
	Message              string                   `json:"message,omitempty"`
	AppointmentID        int64                    `json:"appointment_id,omitempty"`
	RedirectTo           string                   `json:"redirect_to,omitempty"`
	RedirectDelaySeconds int                      `json:"redirect_delay_seconds,omitempty"`
	GuestFallback        bool                     `json:"guest_fallback,omitempty"`
}

func (h *WizardHandler) view(sessionID string, wz *wizard.Wizard) wizardView {
	idx, total := wz.StepIndex()
	v := wizardView{
		SessionID:    sessionID,
		Mode:         wz.Mode(),
		Step:         wz.Step(),
		StepIndex:    idx,
		StepCount:    total,
		Phase:        wz.Phase(),
		Selection:    wz.Selection(),
		Specialties:  wz.Specialties(),
		ServiceTypes: wz.ServiceTypes(),
		Days:         wz.Days(),
		ActiveDate:   wz.ActiveDate(),
		Error:        wz.ErrorMessage(),
		Message:      wz.SuccessMessage(),
	}
	if wz.Phase() == wizard.PhaseSubmitted {
		v.AppointmentID = wz.AppointmentID()
		v.RedirectTo = wz.RedirectPath()
		v.RedirectDelaySeconds = int(h.redirectDelay.Seconds())
	}
	return v
}

// Start opens a new wizard session and loads the specialty options.
func (h *WizardHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mode := wizard.Mode(req.Mode)
	if req.Mode == "" {
		mode = wizard.ModeGuest
	}

	opts := []wizard.Option{wizard.WithClock(h.clock), wizard.WithLogger(h.logger)}
	if mode == wizard.ModePatient {
		patient, ok := httpmiddleware.PatientFromContext(r.Context())
		if !ok {
			respondError(w, http.StatusUnauthorized, "patient booking requires a signed-in session")
			return
		}
		opts = append(opts, wizard.WithPatient(wizard.PatientContext{
			ID:    patient.ID,
			Name:  patient.Name,
			Email: patient.Email,
			Phone: patient.Phone,
			Role:  patient.Role,
		}))
	}

	wz, err := wizard.New(mode, h.gateway, opts...)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := wz.Start(r.Context()); err != nil {
		h.respondTransitionError(w, "", wz, err)
		return
	}

	sessionID := uuid.NewString()
	if err := h.store.Save(r.Context(), sessionID, wz.Snapshot()); err != nil {
		h.logger.Error("failed to persist new wizard session", "error", err)
		respondError(w, http.StatusInternalServerError, "could not create booking session")
		return
	}
	h.metrics.SessionOpened()
	h.logger.Info("wizard session started", "session_id", sessionID, "mode", string(mode))

	respond(w, http.StatusCreated, apiResponse{Success: true, Data: h.view(sessionID, wz)})
}

// Get returns the current wizard view.
func (h *WizardHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID, wz, ok := h.loadWizard(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusOK, apiResponse{Success: true, Data: h.view(sessionID, wz)})
}

// UpdateSelection merges selection/form fields into the session. Merges
// are append-only; zero values never clear a previous choice.
func (h *WizardHandler) UpdateSelection(w http.ResponseWriter, r *http.Request) {
	sessionID, wz, ok := h.loadWizard(w, r)
	if !ok {
		return
	}
	if wz.Phase() != wizard.PhaseCollecting {
		respondError(w, http.StatusConflict, "the booking session is busy or already submitted")
		return
	}

	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wz.SetSpecialty(req.SpecialtyID)
	wz.SetServiceType(req.ServiceTypeID)
	wz.SetActiveDate(req.ActiveDate)
	wz.SetAvailability(req.AvailabilityID)
	wz.SetPatientForm(wizard.PatientForm{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		IDNumber: req.IDNumber,
	})
	wz.SetNotes(req.Notes)
	if h.captchaPassthrough {
		wz.SetCaptchaToken(req.CaptchaToken)
	}

	if err := h.store.Save(r.Context(), sessionID, wz.Snapshot()); err != nil {
		h.logger.Error("failed to persist selection", "session_id", sessionID, "error", err)
		respondError(w, http.StatusInternalServerError, "could not save the selection")
		return
	}
	respond(w, http.StatusOK, apiResponse{Success: true, Data: h.view(sessionID, wz)})
}

// ValidateSelection gives live feedback on the provided form fields
// without changing any wizard state.
func (h *WizardHandler) ValidateSelection(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := h.loadWizard(w, r); !ok {
		return
	}

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var fieldErrors []apiError
	check := func(err error) {
		if err != nil {
			fieldErrors = append(fieldErrors, apiError{Message: err.Error()})
		}
	}
	if req.Name != nil {
		check(wizard.ValidateName(*req.Name))
	}
	if req.Phone != nil {
		check(wizard.ValidatePhone(*req.Phone))
	}
	if req.Email != nil {
		check(wizard.ValidateEmail(*req.Email))
	}
	if req.IDNumber != nil {
		check(wizard.ValidateIDNumber(*req.IDNumber))
	}

	respond(w, http.StatusOK, apiResponse{
		Success: len(fieldErrors) == 0,
		Data:    map[string]bool{"valid": len(fieldErrors) == 0},
		Errors:  fieldErrors,
	})
}

// Advance validates the current step, fetches the next step's options,
// and moves forward.
func (h *WizardHandler) Advance(w http.ResponseWriter, r *http.Request) {
	sessionID, wz, ok := h.loadWizard(w, r)
	if !ok {
		return
	}
	if wz.Phase() != wizard.PhaseCollecting {
		respondError(w, http.StatusConflict, "the booking session is busy or already submitted")
		return
	}
	step := wz.Step()

	// Persist the in-flight phase so a concurrent request on the same
	// session is rejected instead of racing the fetch.
	busy := wz.Snapshot()
	busy.Phase = wizard.PhaseFetching
	if err := h.store.Save(r.Context(), sessionID, busy); err != nil {
		h.logger.Error("failed to mark session busy", "session_id", sessionID, "error", err)
		respondError(w, http.StatusInternalServerError, "could not update the booking session")
		return
	}

	err := wz.Advance(r.Context())
	if saveErr := h.store.Save(r.Context(), sessionID, wz.Snapshot()); saveErr != nil {
		h.logger.Error("failed to persist session", "session_id", sessionID, "error", saveErr)
		respondError(w, http.StatusInternalServerError, "could not update the booking session")
		return
	}

	if err != nil {
		h.metrics.ObserveAdvance(string(step), advanceOutcome(err))
		h.respondTransitionError(w, sessionID, wz, err)
		return
	}
	h.metrics.ObserveAdvance(string(step), "ok")
	respond(w, http.StatusOK, apiResponse{Success: true, Data: h.view(sessionID, wz)})
}

// Retreat steps back without clearing any selection.
func (h *WizardHandler) Retreat(w http.ResponseWriter, r *http.Request) {
	sessionID, wz, ok := h.loadWizard(w, r)
	if !ok {
		return
	}

	if err := wz.Retreat(); err != nil {
		h.respondTransitionError(w, sessionID, wz, err)
		return
	}
	if err := h.store.Save(r.Context(), sessionID, wz.Snapshot()); err != nil {
		h.logger.Error("failed to persist session", "session_id", sessionID, "error", err)
		respondError(w, http.StatusInternalServerError, "could not update the booking session")
		return
	}
	respond(w, http.StatusOK, apiResponse{Success: true, Data: h.view(sessionID, wz)})
}

// Submit sends the assembled booking to the clinic API.
func (h *WizardHandler) Submit(w http.ResponseWriter, r *http.Request) {
	sessionID, wz, ok := h.loadWizard(w, r)
	if !ok {
		return
	}
	if wz.Phase() != wizard.PhaseCollecting {
		respondError(w, http.StatusConflict, "the booking session is busy or already submitted")
		return
	}
	mode := wz.Mode()

	busy := wz.Snapshot()
	busy.Phase = wizard.PhaseSubmitting
	if err := h.store.Save(r.Context(), sessionID, busy); err != nil {
		h.logger.Error("failed to mark session busy", "session_id", sessionID, "error", err)
		respondError(w, http.StatusInternalServerError, "could not update the booking session")
		return
	}

	_, err := wz.Submit(r.Context())
	if err != nil {
		h.metrics.ObserveSubmit(string(mode), advanceOutcome(err))
		if saveErr := h.store.Save(r.Context(), sessionID, wz.Snapshot()); saveErr != nil {
			h.logger.Error("failed to persist session", "session_id", sessionID, "error", saveErr)
		}
		h.respondSubmitError(w, sessionID, wz, err)
		return
	}

	// A submitted session is finished; discard it like the SPA discards
	// its state after the confirmation screen.
	if err := h.store.Delete(r.Context(), sessionID); err != nil {
		h.logger.Warn("failed to delete submitted session", "session_id", sessionID, "error", err)
	}
	h.metrics.ObserveSubmit(string(mode), "ok")
	h.metrics.SessionClosed()

	respond(w, http.StatusOK, apiResponse{
		Success: true,
		Data:    h.view(sessionID, wz),
		Message: wz.SuccessMessage(),
	})
}

// Abandon discards the session.
func (h *WizardHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.store.Delete(r.Context(), sessionID); err != nil {
		h.logger.Error("failed to delete session", "session_id", sessionID, "error", err)
		respondError(w, http.StatusInternalServerError, "could not discard the booking session")
		return
	}
	h.metrics.SessionClosed()
	respond(w, http.StatusOK, apiResponse{Success: true, Message: "booking session discarded"})
}

func (h *WizardHandler) loadWizard(w http.ResponseWriter, r *http.Request) (string, *wizard.Wizard, bool) {
	sessionID := chi.URLParam(r, "sessionID")
	snap, err := h.store.Load(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			respondError(w, http.StatusNotFound, "booking session not found or expired")
		} else {
			h.logger.Error("failed to load session", "session_id", sessionID, "error", err)
			respondError(w, http.StatusInternalServerError, "could not load the booking session")
		}
		return "", nil, false
	}

	wz, err := wizard.Restore(snap, h.gateway, wizard.WithClock(h.clock), wizard.WithLogger(h.logger))
	if err != nil {
		h.logger.Error("failed to restore session", "session_id", sessionID, "error", err)
		respondError(w, http.StatusInternalServerError, "could not restore the booking session")
		return "", nil, false
	}
	return sessionID, wz, true
}

// respondTransitionError maps the error taxonomy onto HTTP statuses. The
// wizard view travels with the error so the client can re-render.
func (h *WizardHandler) respondTransitionError(w http.ResponseWriter, sessionID string, wz *wizard.Wizard, err error) {
	status := statusForError(err)
	body := apiResponse{
		Success: false,
		Message: wz.ErrorMessage(),
		Errors:  []apiError{{Message: wz.ErrorMessage()}},
	}
	if sessionID != "" {
		body.Data = h.view(sessionID, wz)
	}
	respond(w, status, body)
}

// respondSubmitError additionally advertises the guest flow when the
// authenticated booking endpoint fails on the server side.
func (h *WizardHandler) respondSubmitError(w http.ResponseWriter, sessionID string, wz *wizard.Wizard, err error) {
	status := statusForError(err)
	v := h.view(sessionID, wz)
	message := wz.ErrorMessage()

	var apiErr *clinicapi.APIError
	if wz.Mode() == wizard.ModePatient && errors.As(err, &apiErr) && apiErr.IsServerFault() {
		v.GuestFallback = true
		message = "Online booking for signed-in patients is temporarily unavailable. You can still book as a guest."
		v.Error = message
	}

	respond(w, status, apiResponse{
		Success: false,
		Data:    v,
		Message: message,
		Errors:  []apiError{{Message: message}},
	})
}

func statusForError(err error) int {
	var vErr *wizard.ValidationError
	var tErr *clinicapi.TransportError
	var aErr *clinicapi.APIError
	switch {
	case errors.Is(err, wizard.ErrBusy):
		return http.StatusConflict
	case errors.As(err, &vErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &tErr):
		return http.StatusBadGateway
	case errors.As(err, &aErr):
		if aErr.IsServerFault() {
			return http.StatusBadGateway
		}
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func advanceOutcome(err error) string {
	var vErr *wizard.ValidationError
	if errors.As(err, &vErr) {
		return "invalid"
	}
	return "error"
}
