package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockService implements the Service interface for testing
type MockService struct {
	mock.Mock
}

func (m *MockService) CheckStatus(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockService) SubmitLicenseKey(ctx context.Context, key string) (*SubmitResult, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SubmitResult), args.Error(1)
}

func (m *MockService) SaveDisplaySettings(ctx context.Context, flags map[string]string) error {
	args := m.Called(ctx, flags)
	return args.Error(0)
}

func newAgentRouter(svc Service) chi.Router {
	r := chi.NewRouter()
	r.Mount("/api", NewHandler(svc, testLogger()).Routes())
	return r
}

func TestStatusEndpoint(t *testing.T) {
	for _, valid := range []bool{true, false} {
		mockSvc := new(MockService)
		mockSvc.On("CheckStatus", mock.Anything).Return(valid)

		req := httptest.NewRequest(http.MethodGet, "/api/license/status", nil)
		rec := httptest.NewRecorder()
		newAgentRouter(mockSvc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var body map[string]bool
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, valid, body["valid"])
	}
}

func TestSubmitEndpoint(t *testing.T) {
	t.Run("successful submission", func(t *testing.T) {
		mockSvc := new(MockService)
		mockSvc.On("SubmitLicenseKey", mock.Anything, "ABC-123").
			Return(&SubmitResult{Success: true, Message: msgGood, Status: "good"}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/license",
			bytes.NewReader([]byte(`{"license_key":"ABC-123"}`)))
		rec := httptest.NewRecorder()
		newAgentRouter(mockSvc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var result SubmitResult
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
		assert.True(t, result.Success)
		assert.Equal(t, msgGood, result.Message)
	})

	t.Run("failed verdict still returns 200", func(t *testing.T) {
		mockSvc := new(MockService)
		mockSvc.On("SubmitLicenseKey", mock.Anything, "ABC-123").
			Return(&SubmitResult{Success: false, Message: msgInvalid, Status: "invalid"}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/license",
			bytes.NewReader([]byte(`{"license_key":"ABC-123"}`)))
		rec := httptest.NewRecorder()
		newAgentRouter(mockSvc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var result SubmitResult
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
		assert.False(t, result.Success)
		assert.Equal(t, msgInvalid, result.Message)
	})

	t.Run("empty key", func(t *testing.T) {
		mockSvc := new(MockService)

		req := httptest.NewRequest(http.MethodPost, "/api/license",
			bytes.NewReader([]byte(`{"license_key":""}`)))
		rec := httptest.NewRecorder()
		newAgentRouter(mockSvc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockSvc.AssertNotCalled(t, "SubmitLicenseKey", mock.Anything, mock.Anything)
	})

	t.Run("malformed body", func(t *testing.T) {
		mockSvc := new(MockService)

		req := httptest.NewRequest(http.MethodPost, "/api/license",
			bytes.NewReader([]byte(`{nope`)))
		rec := httptest.NewRecorder()
		newAgentRouter(mockSvc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("cooldown", func(t *testing.T) {
		mockSvc := new(MockService)
		mockSvc.On("SubmitLicenseKey", mock.Anything, "ABC-123").Return(nil, ErrCooldown)

		req := httptest.NewRequest(http.MethodPost, "/api/license",
			bytes.NewReader([]byte(`{"license_key":"ABC-123"}`)))
		rec := httptest.NewRecorder()
		newAgentRouter(mockSvc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Contains(t, rec.Body.String(), "VERIFY_COOLDOWN")
	})
}

func TestSaveSettingsEndpoint(t *testing.T) {
	t.Run("saved", func(t *testing.T) {
		mockSvc := new(MockService)
		mockSvc.On("SaveDisplaySettings", mock.Anything,
			map[string]string{"blur_admin_api": "1"}).Return(nil)

		req := httptest.NewRequest(http.MethodPost, "/api/settings",
			bytes.NewReader([]byte(`{"blur_admin_api":"1"}`)))
		rec := httptest.NewRecorder()
		newAgentRouter(mockSvc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Safety Blur settings saved successfully!")
		mockSvc.AssertExpectations(t)
	})

	t.Run("license required", func(t *testing.T) {
		mockSvc := new(MockService)
		mockSvc.On("SaveDisplaySettings", mock.Anything, mock.Anything).Return(ErrLicenseRequired)

		req := httptest.NewRequest(http.MethodPost, "/api/settings",
			bytes.NewReader([]byte(`{"blur_admin_api":"1"}`)))
		rec := httptest.NewRecorder()
		newAgentRouter(mockSvc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "revoked or is no longer valid")
	})
}
