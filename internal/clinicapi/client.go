package clinicapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/odontosys/booking-wizard/pkg/logging"
)

// Client is a thin HTTP/JSON client for the clinic REST API. Every call is
// attempted exactly once; there is no client-side retry.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a clinic API client. token, when non-empty, is sent as
// a bearer token on every request.
func NewClient(baseURL, token string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: http.DefaultClient,
		logger:     logger,
	}
}

// ListSpecialties returns the clinic's specialties.
func (c *Client) ListSpecialties(ctx context.Context) ([]Specialty, error) {
	var out []Specialty
	if err := c.do(ctx, http.MethodGet, "/especialidad", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListServiceTypes returns the service types offered under a specialty.
func (c *Client) ListServiceTypes(ctx context.Context, specialtyID int64) ([]ServiceType, error) {
	var out []ServiceType
	path := fmt.Sprintf("/service-type/especialidad/%d", specialtyID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAvailability returns the open slots for a specialty, optionally
// filtered to a single date (YYYY-MM-DD).
func (c *Client) ListAvailability(ctx context.Context, specialtyID int64, date string) ([]AvailabilitySlot, error) {
	var out []AvailabilitySlot
	path := fmt.Sprintf("/disponibilidad/especialidad/%d", specialtyID)
	if strings.TrimSpace(date) != "" {
		path += "?date=" + url.QueryEscape(date)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateGuestPatient registers an unauthenticated visitor and returns the
// new patient id.
func (c *Client) CreateGuestPatient(ctx context.Context, in GuestPatientInput) (int64, error) {
	var out createdRef
	if err := c.do(ctx, http.MethodPost, "/guest-patient", in, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// CreateGuestAppointment books an appointment for a guest patient and
// returns the new appointment id.
func (c *Client) CreateGuestAppointment(ctx context.Context, req GuestAppointmentRequest) (int64, error) {
	var out createdRef
	if err := c.do(ctx, http.MethodPost, "/appointments/guest", req, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// CreatePatientAppointment books an appointment for an authenticated
// patient and returns the new appointment id.
func (c *Client) CreatePatientAppointment(ctx context.Context, req PatientAppointmentRequest) (int64, error) {
	var out createdRef
	if err := c.do(ctx, http.MethodPost, "/appointments/patient", req, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("clinicapi: marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("clinicapi: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &APIError{StatusCode: resp.StatusCode}
		}
		return fmt.Errorf("clinicapi: unmarshal response: %w", err)
	}

	if !env.Success || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: env.Message, Errors: env.Errors}
		c.logger.Warn("clinic API call failed",
			"operation", op,
			"status", resp.StatusCode,
			"message", apiErr.JoinedMessages(),
		)
		return apiErr
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("clinicapi: unmarshal data: %w", err)
		}
	}
	return nil
}
