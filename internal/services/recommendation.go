package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temcen/cellar/internal/recommender"
	"github.com/temcen/cellar/internal/storage"
	"github.com/temcen/cellar/pkg/models"
)

// RecommendationService loads the rating history and the catalog, runs the
// ranker and memoizes the result.
type RecommendationService struct {
	store   storage.Store
	cache   *RecommendationCache
	metrics *MetricsCollector
	logger  *logrus.Logger
}

func NewRecommendationService(store storage.Store, cache *RecommendationCache, metrics *MetricsCollector, logger *logrus.Logger) *RecommendationService {
	return &RecommendationService{
		store:   store,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

// GetRecommendations returns up to five unrated wines per type. cached
// reports whether the response came from the cache. Without any usable
// rating every group is empty.
func (s *RecommendationService) GetRecommendations(ctx context.Context) (resp *models.RecommendationsResponse, cached bool, err error) {
	start := time.Now()
	outcome := "computed"
	defer func() {
		if err != nil {
			outcome = "error"
		}
		if s.metrics != nil {
			s.metrics.RecordRecommendation(outcome, time.Since(start))
		}
	}()

	key, cacheable := s.cache.Key(ctx)
	if cacheable {
		if hit, ok := s.cache.Get(ctx, key); ok {
			outcome = "cached"
			return hit, true, nil
		}
	}

	history, err := s.store.ListRatings(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load ratings: %w", err)
	}

	prefs := recommender.ComputePreferences(toRatedItems(history))
	if !prefs.HasProfile() {
		outcome = "empty"
		s.logger.WithField("ratings", len(history)).Debug("No preference profile yet")
		return models.EmptyRecommendations(), false, nil
	}

	wines, err := s.store.ListWines(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load catalog: %w", err)
	}

	excluded := make(map[int64]struct{}, len(history))
	for _, r := range history {
		excluded[r.WineID] = struct{}{}
	}

	byID := make(map[int64]models.Wine, len(wines))
	for _, w := range wines {
		byID[w.ID] = w
	}

	recs := recommender.ComputeRecommendations(prefs, toCatalogItems(wines), excluded)
	resp = &models.RecommendationsResponse{
		Red:       toRecommendedWines(recs[recommender.BucketRed], byID),
		White:     toRecommendedWines(recs[recommender.BucketWhite], byID),
		Sparkling: toRecommendedWines(recs[recommender.BucketSparkling], byID),
		Other:     toRecommendedWines(recs[recommender.BucketOther], byID),
	}

	if cacheable {
		s.cache.Set(ctx, key, resp)
	}

	s.logger.WithFields(logrus.Fields{
		"ratings":   len(history),
		"catalog":   len(wines),
		"red":       len(resp.Red),
		"white":     len(resp.White),
		"sparkling": len(resp.Sparkling),
		"other":     len(resp.Other),
	}).Debug("Recommendations computed")

	return resp, false, nil
}

func wineFeatures(w models.Wine) recommender.OptionalVector {
	return recommender.NewOptionalVector(w.Acidity, w.Tannin, w.Body, w.Sweetness)
}

func toRatedItems(history []models.RatingWithWine) []recommender.RatedItem {
	items := make([]recommender.RatedItem, 0, len(history))
	for _, r := range history {
		items = append(items, recommender.RatedItem{
			ItemID:   r.WineID,
			Features: wineFeatures(r.Wine),
			Rating:   r.Rating.Rating,
			Category: r.Wine.Variety,
			RatedAt:  r.RatedAt,
		})
	}
	return items
}

func toCatalogItems(wines []models.Wine) []recommender.CatalogItem {
	items := make([]recommender.CatalogItem, 0, len(wines))
	for _, w := range wines {
		var subs []string
		for _, v := range []string{w.VarietySub1, w.VarietySub2} {
			if v != "" {
				subs = append(subs, v)
			}
		}
		items = append(items, recommender.CatalogItem{
			ItemID:        w.ID,
			Features:      wineFeatures(w),
			CategoryType:  w.WineType,
			Category:      w.Variety,
			SubCategories: subs,
		})
	}
	return items
}

func toRecommendedWines(scored []recommender.ScoredItem, byID map[int64]models.Wine) []models.RecommendedWine {
	out := make([]models.RecommendedWine, 0, len(scored))
	for _, item := range scored {
		w := byID[item.Item.ItemID]
		out = append(out, models.RecommendedWine{
			ID:          w.ID,
			Name:        w.Name,
			Vintage:     w.Vintage,
			Variety:     w.Variety,
			VarietySub1: w.VarietySub1,
			VarietySub2: w.VarietySub2,
			Price:       w.Price,
			WineType:    w.WineType,
			Similarity:  item.Score,
			Acidity:     item.Features[recommender.Acidity],
			Tannin:      item.Features[recommender.Tannin],
			Body:        item.Features[recommender.Body],
			Sweetness:   item.Features[recommender.Sweetness],
		})
	}
	return out
}
