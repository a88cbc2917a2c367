package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/valter-silva-au/leadflow/pkg/models"
)

// StudentServiceClient creates and lists student records through the
// student service's REST API.
type StudentServiceClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// ClientOption configures a StudentServiceClient.
type ClientOption func(*StudentServiceClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(s *StudentServiceClient) { s.client = c }
}

// WithBearerToken sends token in the Authorization header.
func WithBearerToken(token string) ClientOption {
	return func(s *StudentServiceClient) { s.token = token }
}

// NewStudentServiceClient creates a client for the service rooted at
// baseURL, e.g. https://sis.example.edu/api/student.
func NewStudentServiceClient(baseURL string, opts ...ClientOption) *StudentServiceClient {
	c := &StudentServiceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError is returned when the service answers with an unexpected status.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: student service returned status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: student service returned status %d: %s", e.Op, e.Status, e.Body)
}

// CreateStudent posts the student and returns the identifier the service
// stored. The service may keep the proposed id or assign its own.
func (c *StudentServiceClient) CreateStudent(ctx context.Context, student models.Student) (string, error) {
	body, err := json.Marshal(student)
	if err != nil {
		return "", fmt.Errorf("marshaling student: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/students", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("posting student: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", statusError("creating student", resp)
	}

	var created models.Student
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decoding created student: %w", err)
	}
	if created.StudentID == "" {
		return student.StudentID, nil
	}
	return created.StudentID, nil
}

// ListStudentIDs returns the studentId of every record the service holds.
func (c *StudentServiceClient) ListStudentIDs(ctx context.Context) ([]string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/students", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing students: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("listing students", resp)
	}

	var students []models.Student
	if err := json.NewDecoder(resp.Body).Decode(&students); err != nil {
		return nil, fmt.Errorf("decoding student list: %w", err)
	}
	ids := make([]string, 0, len(students))
	for _, s := range students {
		if s.StudentID != "" {
			ids = append(ids, s.StudentID)
		}
	}
	return ids, nil
}

func (c *StudentServiceClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building %s %s request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func statusError(op string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
}
