package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/temcen/cellar/internal/services"
	"github.com/temcen/cellar/internal/validation"
	"github.com/temcen/cellar/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) IssueToken(ctx context.Context, apiKey string) (*models.AuthResponse, error) {
	args := m.Called(ctx, apiKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AuthResponse), args.Error(1)
}

func (m *MockAuthService) ValidateToken(ctx context.Context, token string) (*models.JWTClaims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JWTClaims), args.Error(1)
}

func (m *MockAuthService) ValidateAPIKey(apiKey string) (string, error) {
	args := m.Called(apiKey)
	return args.String(0), args.Error(1)
}

type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) IsAllowed(ctx context.Context, caller string) (bool, *models.RateLimitInfo) {
	args := m.Called(ctx, caller)
	return args.Bool(0), args.Get(1).(*models.RateLimitInfo)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorDetail {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func callerEcho(c *gin.Context) {
	caller, role := GetCaller(c)
	c.JSON(http.StatusOK, gin.H{"caller": caller, "role": role})
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		setup      func(m *MockAuthService)
		wantStatus int
		wantCode   string
		wantCaller string
	}{
		{
			name:       "missing header",
			wantStatus: http.StatusUnauthorized,
			wantCode:   "MISSING_AUTHORIZATION",
		},
		{
			name:       "wrong scheme",
			header:     "Basic abc",
			wantStatus: http.StatusUnauthorized,
			wantCode:   "INVALID_AUTHORIZATION_FORMAT",
		},
		{
			name:   "valid api key",
			header: "Bearer secret-key",
			setup: func(m *MockAuthService) {
				m.On("ValidateAPIKey", "secret-key").Return("key-1", nil)
			},
			wantStatus: http.StatusOK,
			wantCaller: "key-1",
		},
		{
			name:   "invalid api key",
			header: "Bearer nope",
			setup: func(m *MockAuthService) {
				m.On("ValidateAPIKey", "nope").Return("", services.ErrInvalidAPIKey)
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "INVALID_API_KEY",
		},
		{
			name:   "valid token",
			header: "Bearer a.b.c",
			setup: func(m *MockAuthService) {
				m.On("ValidateToken", mock.Anything, "a.b.c").
					Return(&models.JWTClaims{KeyName: "key-2", Role: services.RoleAdmin}, nil)
			},
			wantStatus: http.StatusOK,
			wantCaller: "key-2",
		},
		{
			name:   "expired token",
			header: "Bearer a.b.c",
			setup: func(m *MockAuthService) {
				m.On("ValidateToken", mock.Anything, "a.b.c").Return(nil, services.ErrInvalidToken)
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "INVALID_TOKEN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authService := new(MockAuthService)
			if tt.setup != nil {
				tt.setup(authService)
			}

			router := gin.New()
			router.Use(RequestID())
			router.GET("/admin", Auth(authService, testLogger()), callerEcho)

			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				detail := decodeError(t, w)
				assert.Equal(t, tt.wantCode, detail.Code)
				assert.Equal(t, w.Header().Get("X-Request-ID"), detail.RequestID)
			} else {
				var body map[string]string
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, tt.wantCaller, body["caller"])
				assert.Equal(t, services.RoleAdmin, body["role"])
			}
			authService.AssertExpectations(t)
		})
	}
}

func TestRateLimit(t *testing.T) {
	limiter := new(MockRateLimiter)
	limiter.On("IsAllowed", mock.Anything, "ip:192.0.2.1").
		Return(true, &models.RateLimitInfo{Limit: 2, Remaining: 1, ResetTime: 1700000000}).Once()
	limiter.On("IsAllowed", mock.Anything, "ip:192.0.2.1").
		Return(false, &models.RateLimitInfo{Limit: 2, Remaining: 0, ResetTime: 1700000000}).Once()

	router := gin.New()
	router.GET("/admin", RateLimit(limiter, testLogger()), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.RemoteAddr = "192.0.2.1:4321"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	first := send()
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	second := send()
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", decodeError(t, second).Code)
	limiter.AssertExpectations(t)
}

func TestValidateBody(t *testing.T) {
	validator, err := validation.NewEmbeddedValidator()
	require.NoError(t, err)
	vm := NewValidationMiddleware(validator)

	router := gin.New()
	router.POST("/rate_wine", vm.ValidateRating(), func(c *gin.Context) {
		var req models.RatingRequest
		require.NoError(t, c.ShouldBindJSON(&req))
		c.JSON(http.StatusOK, req)
	})

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"valid body reaches handler", `{"wine_id": 2, "rating": 4}`, http.StatusOK, ""},
		{"empty body", ``, http.StatusBadRequest, "EMPTY_BODY"},
		{"malformed json", `{"wine_id": 2,`, http.StatusBadRequest, "INVALID_JSON"},
		{"rating out of range", `{"wine_id": 2, "rating": 9}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing wine", `{"rating": 3}`, http.StatusBadRequest, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/rate_wine", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, w).Code)
			} else {
				assert.JSONEq(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestCompression(t *testing.T) {
	payload := strings.Repeat("cabernet ", 500)

	router := gin.New()
	router.Use(Compression("/metrics"))
	router.GET("/big", func(c *gin.Context) { c.String(http.StatusOK, payload) })
	router.GET("/metrics", func(c *gin.Context) { c.String(http.StatusOK, payload) })

	req := httptest.NewRequest(http.MethodGet, "/big", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	reader, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, payload, string(body))

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, payload, w.Body.String())
}

func TestRecoveryAndRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(), Logger(testLogger(), nil), Recovery(testLogger()), SecurityHeaders())
	router.GET("/panic", func(c *gin.Context) { panic(errors.New("boom")) })

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	detail := decodeError(t, w)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", detail.Code)
	assert.Equal(t, "req-42", detail.RequestID)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}
