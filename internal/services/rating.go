package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temcen/cellar/internal/recommender"
	"github.com/temcen/cellar/internal/storage"
	"github.com/temcen/cellar/pkg/models"
)

// RatingService records ratings and derives the taste profile from them.
type RatingService struct {
	store   storage.Store
	cache   *RecommendationCache
	metrics *MetricsCollector
	logger  *logrus.Logger
	now     func() time.Time
}

func NewRatingService(store storage.Store, cache *RecommendationCache, metrics *MetricsCollector, logger *logrus.Logger) *RatingService {
	return &RatingService{
		store:   store,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Rate stores rating for wineID, replacing any earlier rating of the same
// wine and moving it to the top of the history.
func (s *RatingService) Rate(ctx context.Context, wineID int64, rating int) error {
	if rating < recommender.MinRating || rating > recommender.MaxRating {
		return models.ErrInvalidRating
	}

	if _, err := s.store.GetWine(ctx, wineID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.ErrWineNotFound
		}
		return fmt.Errorf("failed to look up wine: %w", err)
	}

	if err := s.store.UpsertRating(ctx, wineID, rating, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to save rating: %w", err)
	}
	s.cache.BumpRatings(ctx)
	s.recordRating("upsert")

	s.logger.WithFields(logrus.Fields{
		"wine_id": wineID,
		"rating":  rating,
	}).Info("Rating saved")
	return nil
}

func (s *RatingService) DeleteRating(ctx context.Context, wineID int64) error {
	if err := s.store.DeleteRating(ctx, wineID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.ErrRatingNotFound
		}
		return fmt.Errorf("failed to delete rating: %w", err)
	}
	s.cache.BumpRatings(ctx)
	s.recordRating("delete")

	s.logger.WithField("wine_id", wineID).Info("Rating deleted")
	return nil
}

// GetPreferences returns the display profile together with the rating
// history, most recent first.
func (s *RatingService) GetPreferences(ctx context.Context) (*models.PreferencesResponse, error) {
	history, err := s.store.ListRatings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ratings: %w", err)
	}

	prefs := recommender.ComputePreferences(toRatedItems(history))
	v := prefs.Vector.Rounded()

	return &models.PreferencesResponse{
		Preferences: models.PreferenceProfile{
			Acidity:   v[recommender.Acidity],
			Tannin:    v[recommender.Tannin],
			Body:      v[recommender.Body],
			Sweetness: v[recommender.Sweetness],
		},
		RatedWines: toRatedWines(history),
	}, nil
}

func (s *RatingService) GetRatedWines(ctx context.Context) ([]models.RatedWine, error) {
	history, err := s.store.ListRatings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ratings: %w", err)
	}
	return toRatedWines(history), nil
}

func (s *RatingService) recordRating(operation string) {
	if s.metrics != nil {
		s.metrics.RecordRating(operation)
	}
}

func toRatedWines(history []models.RatingWithWine) []models.RatedWine {
	out := make([]models.RatedWine, 0, len(history))
	for _, r := range history {
		out = append(out, models.RatedWine{
			ID:          r.Wine.ID,
			Name:        r.Wine.Name,
			Variety:     r.Wine.Variety,
			VarietySub1: r.Wine.VarietySub1,
			VarietySub2: r.Wine.VarietySub2,
			Vintage:     r.Wine.Vintage,
			WineType:    r.Wine.TypeOrOther(),
			Price:       r.Wine.Price,
			Rating:      r.Rating.Rating,
			RatedAt:     r.RatedAt,
		})
	}
	return out
}
