package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/temcen/cellar/pkg/models"
)

// RatingServiceInterface defines the rating operations used by the handlers
type RatingServiceInterface interface {
	Rate(ctx context.Context, wineID int64, rating int) error
	DeleteRating(ctx context.Context, wineID int64) error
	GetPreferences(ctx context.Context) (*models.PreferencesResponse, error)
	GetRatedWines(ctx context.Context) ([]models.RatedWine, error)
}

// CatalogServiceInterface defines the catalog read and maintenance operations
type CatalogServiceInterface interface {
	GetWine(ctx context.Context, id int64) (*models.Wine, error)
	GetWineSummary(ctx context.Context, id int64) (*models.WineSummary, error)
	SearchWines(ctx context.Context, query string) []models.WineSearchResult
	RelatedWines(ctx context.Context, id int64, limit int) (*models.RelatedWinesResponse, error)
	NormalizeSweetness(ctx context.Context) (int, error)
}

// RecommendationServiceInterface defines the interface for recommendation generation
type RecommendationServiceInterface interface {
	GetRecommendations(ctx context.Context) (*models.RecommendationsResponse, bool, error)
}

// CatalogImportInterface defines the catalog batch import operations
type CatalogImportInterface interface {
	SubmitBatch(ctx context.Context, req models.CatalogBatchRequest) (*models.CatalogBatchResponse, error)
}

// JobTrackerInterface defines read access to import jobs
type JobTrackerInterface interface {
	GetJob(ctx context.Context, jobID uuid.UUID) (*JobProgress, error)
}

type HealthCheckerInterface interface {
	CheckHealth(ctx context.Context) *HealthStatus
}

// AuthServiceInterface defines the credential checks used by the auth middleware
type AuthServiceInterface interface {
	IssueToken(ctx context.Context, apiKey string) (*models.AuthResponse, error)
	ValidateToken(ctx context.Context, token string) (*models.JWTClaims, error)
	ValidateAPIKey(apiKey string) (string, error)
}

type RateLimiterInterface interface {
	IsAllowed(ctx context.Context, caller string) (bool, *models.RateLimitInfo)
}
