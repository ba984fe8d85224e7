package handlers

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/temcen/cellar/internal/services"
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

type MockRatingService struct {
	mock.Mock
}

func (m *MockRatingService) Rate(ctx context.Context, wineID int64, rating int) error {
	return m.Called(ctx, wineID, rating).Error(0)
}

func (m *MockRatingService) DeleteRating(ctx context.Context, wineID int64) error {
	return m.Called(ctx, wineID).Error(0)
}

func (m *MockRatingService) GetPreferences(ctx context.Context) (*models.PreferencesResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PreferencesResponse), args.Error(1)
}

func (m *MockRatingService) GetRatedWines(ctx context.Context) ([]models.RatedWine, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RatedWine), args.Error(1)
}

type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) GetWine(ctx context.Context, id int64) (*models.Wine, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Wine), args.Error(1)
}

func (m *MockCatalogService) GetWineSummary(ctx context.Context, id int64) (*models.WineSummary, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WineSummary), args.Error(1)
}

func (m *MockCatalogService) SearchWines(ctx context.Context, query string) []models.WineSearchResult {
	return m.Called(ctx, query).Get(0).([]models.WineSearchResult)
}

func (m *MockCatalogService) RelatedWines(ctx context.Context, id int64, limit int) (*models.RelatedWinesResponse, error) {
	args := m.Called(ctx, id, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RelatedWinesResponse), args.Error(1)
}

func (m *MockCatalogService) NormalizeSweetness(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockRecommendationService struct {
	mock.Mock
}

func (m *MockRecommendationService) GetRecommendations(ctx context.Context) (*models.RecommendationsResponse, bool, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*models.RecommendationsResponse), args.Bool(1), args.Error(2)
}

type MockCatalogImport struct {
	mock.Mock
}

func (m *MockCatalogImport) SubmitBatch(ctx context.Context, req models.CatalogBatchRequest) (*models.CatalogBatchResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CatalogBatchResponse), args.Error(1)
}

type MockJobTracker struct {
	mock.Mock
}

func (m *MockJobTracker) GetJob(ctx context.Context, jobID uuid.UUID) (*services.JobProgress, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.JobProgress), args.Error(1)
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

type MockHealthChecker struct {
	mock.Mock
}

func (m *MockHealthChecker) CheckHealth(ctx context.Context) *services.HealthStatus {
	return m.Called(ctx).Get(0).(*services.HealthStatus)
}
