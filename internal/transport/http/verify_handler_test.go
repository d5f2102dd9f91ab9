package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lennox-rose/blueprint-licensing/internal/verify"
)

// MockVerifyService implements the verify.Service interface for testing
type MockVerifyService struct {
	mock.Mock
}

func (m *MockVerifyService) Verify(ctx context.Context, req *verify.VerificationRequest, callerIP string) *verify.Outcome {
	args := m.Called(ctx, req, callerIP)
	return args.Get(0).(*verify.Outcome)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newVerifyRouter(svc verify.Service) chi.Router {
	r := chi.NewRouter()
	r.Mount("/v1/blueprint", NewVerifyHandler(svc, testLogger()).Routes())
	return r
}

func validBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(verify.VerificationRequest{
		Key:     "ABC-123",
		Product: "safetyblur",
		Info: &verify.RequestInfo{
			Domain:         "panel.example.com",
			ControllerHash: "trusted-build-token",
		},
	})
	require.NoError(t, err)
	return body
}

func decodeVerdict(t *testing.T, rec *httptest.ResponseRecorder) verify.VerificationResponse {
	t.Helper()
	var verdict verify.VerificationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&verdict))
	return verdict
}

func TestVerifyHandler_Success(t *testing.T) {
	mockSvc := new(MockVerifyService)
	mockSvc.On("Verify", mock.Anything, mock.MatchedBy(func(req *verify.VerificationRequest) bool {
		return req.Key == "ABC-123" && req.Product == "safetyblur"
	}), "203.0.113.10").Return(&verify.Outcome{
		Status:     verify.StatusGood,
		Signature:  "deadbeef",
		Timestamp:  1700000000,
		HTTPStatus: http.StatusOK,
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/blueprint/safetyblur/verify", bytes.NewReader(validBody(t)))
	req.RemoteAddr = "203.0.113.10:54321"
	rec := httptest.NewRecorder()

	newVerifyRouter(mockSvc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	verdict := decodeVerdict(t, rec)
	assert.Equal(t, verify.StatusGood, verdict.Status)
	assert.Equal(t, "deadbeef", verdict.Signature)
	assert.Equal(t, int64(1700000000), verdict.Timestamp)
	mockSvc.AssertExpectations(t)
}

func TestVerifyHandler_OutcomeStatusPassthrough(t *testing.T) {
	tests := []struct {
		name       string
		outcome    *verify.Outcome
		wantCode   int
		wantStatus string
	}{
		{"inactive license", &verify.Outcome{Status: verify.StatusBad, Timestamp: 1, HTTPStatus: http.StatusForbidden}, http.StatusForbidden, verify.StatusBad},
		{"unknown license", &verify.Outcome{Status: verify.StatusInvalid, Timestamp: 1, HTTPStatus: http.StatusUnauthorized}, http.StatusUnauthorized, verify.StatusInvalid},
		{"rate limited", &verify.Outcome{Status: verify.StatusInvalid, Timestamp: 1, HTTPStatus: http.StatusTooManyRequests}, http.StatusTooManyRequests, verify.StatusInvalid},
		{"internal failure", &verify.Outcome{Status: verify.StatusInvalid, Timestamp: 1, HTTPStatus: http.StatusInternalServerError}, http.StatusInternalServerError, verify.StatusInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(MockVerifyService)
			mockSvc.On("Verify", mock.Anything, mock.Anything, mock.Anything).Return(tt.outcome)

			req := httptest.NewRequest(http.MethodPost, "/v1/blueprint/safetyblur/verify", bytes.NewReader(validBody(t)))
			req.RemoteAddr = "203.0.113.10:54321"
			rec := httptest.NewRecorder()

			newVerifyRouter(mockSvc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			verdict := decodeVerdict(t, rec)
			assert.Equal(t, tt.wantStatus, verdict.Status)
			assert.Empty(t, verdict.Signature)
		})
	}
}

func TestVerifyHandler_MalformedBody(t *testing.T) {
	mockSvc := new(MockVerifyService)
	req := httptest.NewRequest(http.MethodPost, "/v1/blueprint/safetyblur/verify", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()

	newVerifyRouter(mockSvc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	verdict := decodeVerdict(t, rec)
	assert.Equal(t, verify.StatusInvalid, verdict.Status)
	assert.Empty(t, verdict.Signature)
	assert.NotZero(t, verdict.Timestamp)
	mockSvc.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyHandler_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing key", `{"product":"safetyblur","info":{"domain":"panel.example.com"}}`},
		{"missing product", `{"key":"ABC-123","info":{"domain":"panel.example.com"}}`},
		{"missing info", `{"key":"ABC-123","product":"safetyblur"}`},
		{"empty object", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(MockVerifyService)
			req := httptest.NewRequest(http.MethodPost, "/v1/blueprint/safetyblur/verify", bytes.NewReader([]byte(tt.body)))
			rec := httptest.NewRecorder()

			newVerifyRouter(mockSvc).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			verdict := decodeVerdict(t, rec)
			assert.Equal(t, verify.StatusInvalid, verdict.Status)
			mockSvc.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestVerifyHandler_ProductPathMismatch(t *testing.T) {
	mockSvc := new(MockVerifyService)
	req := httptest.NewRequest(http.MethodPost, "/v1/blueprint/otherproduct/verify", bytes.NewReader(validBody(t)))
	rec := httptest.NewRecorder()

	newVerifyRouter(mockSvc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	verdict := decodeVerdict(t, rec)
	assert.Equal(t, verify.StatusInvalid, verdict.Status)
	mockSvc.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyHandler_MethodNotAllowed(t *testing.T) {
	mockSvc := new(MockVerifyService)
	req := httptest.NewRequest(http.MethodGet, "/v1/blueprint/safetyblur/verify", nil)
	rec := httptest.NewRecorder()

	newVerifyRouter(mockSvc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	verdict := decodeVerdict(t, rec)
	assert.Equal(t, verify.StatusInvalid, verdict.Status)
	assert.Empty(t, verdict.Signature)
}

func TestCallerIP(t *testing.T) {
	t.Run("host with port", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.RemoteAddr = "203.0.113.10:54321"
		assert.Equal(t, "203.0.113.10", callerIP(r))
	})

	t.Run("bare host", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.RemoteAddr = "203.0.113.10"
		assert.Equal(t, "203.0.113.10", callerIP(r))
	})
}
