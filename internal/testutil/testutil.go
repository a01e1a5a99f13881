package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"smartcity/internal/model"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the password of every user made by CreateUser.
const TestPassword = "password123"

// TestSecret signs tokens in tests.
const TestSecret = "test-secret"

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// CreateUser stores an active user with the given role. Department users get
// departmentID, which may be nil for other roles.
func CreateUser(t *testing.T, users *UserStore, name string, role model.Role, departmentID *uuid.UUID) *model.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	user := &model.User{
		ID:           uuid.New(),
		Username:     name,
		Email:        name + "@city.test",
		PasswordHash: string(hash),
		Role:         role,
		DepartmentID: departmentID,
		IsActive:     true,
		Profile:      model.Profile{FirstName: name},
		CreatedAt:    time.Now(),
	}
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

// CreateDepartment stores a department named name.
func CreateDepartment(t *testing.T, depts *DepartmentStore, name string) *model.Department {
	t.Helper()

	dept := &model.Department{ID: uuid.New(), Name: name, CreatedAt: time.Now()}
	if err := depts.Create(context.Background(), dept); err != nil {
		t.Fatalf("Failed to create test department: %v", err)
	}
	return dept
}

// CreatePoll stores a poll with the given options closing at deadline.
func CreatePoll(t *testing.T, polls *PollStore, creator uuid.UUID, deadline time.Time, options ...string) *model.Poll {
	t.Helper()

	poll := &model.Poll{
		ID:        uuid.New(),
		Question:  "Test poll",
		CreatedBy: creator,
		Deadline:  deadline,
		CreatedAt: time.Now(),
	}
	for _, text := range options {
		poll.Options = append(poll.Options, model.PollOption{ID: uuid.New(), Text: text, Voters: []uuid.UUID{}})
	}
	if err := polls.Create(context.Background(), poll); err != nil {
		t.Fatalf("Failed to create test poll: %v", err)
	}
	return poll
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// MakeMultipartRequest builds a multipart form request. fields may repeat a
// key by listing several values; files maps field name to file name and content.
func MakeMultipartRequest(t *testing.T, method, path string, fields map[string][]string, files map[string]map[string]string, headers map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for key, values := range fields {
		for _, v := range values {
			if err := w.WriteField(key, v); err != nil {
				t.Fatalf("Failed to write field: %v", err)
			}
		}
	}
	for field, named := range files {
		for name, content := range named {
			fw, err := w.CreateFormFile(field, name)
			if err != nil {
				t.Fatalf("Failed to create form file: %v", err)
			}
			if _, err := io.WriteString(fw, content); err != nil {
				t.Fatalf("Failed to write form file: %v", err)
			}
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

// Bearer returns an Authorization header map for token.
func Bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}

// AssertError checks the status and the {"error": ...} message of a response.
func AssertError(t *testing.T, w *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	AssertStatus(t, w, status)
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode error body %q: %v", w.Body.String(), err)
	}
	if body.Error != message {
		t.Errorf("Expected error %q, got %q", message, body.Error)
	}
}
