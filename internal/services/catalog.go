package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/temcen/cellar/internal/storage"
	"github.com/temcen/cellar/pkg/models"
)

const (
	// MinSearchLength is the shortest query, in characters, that is searched.
	MinSearchLength = 2
	searchLimit     = 10
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// CatalogService serves the wine catalog and applies changes to it. Every
// change bumps the catalog version and is mirrored into the variety graph.
type CatalogService struct {
	store  storage.Store
	graph  *GraphService
	cache  *RecommendationCache
	logger *logrus.Logger
	locale language.Tag
}

func NewCatalogService(store storage.Store, graph *GraphService, cache *RecommendationCache, logger *logrus.Logger) *CatalogService {
	return &CatalogService{
		store:  store,
		graph:  graph,
		cache:  cache,
		logger: logger,
		locale: language.English,
	}
}

// FormatPrice renders a price with thousands separators, or "Unknown" for a
// zero price.
func (s *CatalogService) FormatPrice(price int64) string {
	if price == 0 {
		return "Unknown"
	}
	return message.NewPrinter(s.locale).Sprintf("%d", price)
}

func (s *CatalogService) GetWine(ctx context.Context, id int64) (*models.Wine, error) {
	wine, err := s.store.GetWine(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, models.ErrWineNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wine: %w", err)
	}
	return wine, nil
}

func (s *CatalogService) GetWineSummary(ctx context.Context, id int64) (*models.WineSummary, error) {
	wine, err := s.GetWine(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.WineSummary{
		ID:      wine.ID,
		Name:    wine.Name,
		Variety: wine.Variety,
		Price:   s.FormatPrice(wine.Price),
	}, nil
}

// SearchWines looks query up in wine names and, when no name matches, in
// the three variety columns. It never fails: store errors are logged and
// yield an empty result.
func (s *CatalogService) SearchWines(ctx context.Context, query string) []models.WineSearchResult {
	results := []models.WineSearchResult{}
	if utf8.RuneCountInString(query) < MinSearchLength {
		return results
	}

	pattern := "%" + likeEscaper.Replace(query) + "%"
	logger := s.logger.WithField("query", query)

	wines, err := s.store.SearchWinesByName(ctx, pattern, searchLimit)
	if err != nil {
		logger.WithError(err).Error("Wine name search failed")
		return results
	}
	if len(wines) == 0 {
		logger.Debug("No results by name, trying variety search")
		wines, err = s.store.SearchWinesByVariety(ctx, pattern, searchLimit)
		if err != nil {
			logger.WithError(err).Error("Wine variety search failed")
			return results
		}
	}

	for _, w := range wines {
		r := models.WineSearchResult{
			ID:          w.ID,
			Name:        w.Name,
			Variety:     w.Variety,
			VarietySub1: w.VarietySub1,
			VarietySub2: w.VarietySub2,
			WineType:    w.TypeOrOther(),
			Price:       w.Price,
			Acidity:     w.Acidity,
			Tannin:      w.Tannin,
			Body:        w.Body,
			Sweetness:   w.Sweetness,
		}
		if w.Vintage != nil {
			r.Vintage = *w.Vintage
		}
		results = append(results, r)
	}

	logger.WithField("results", len(results)).Debug("Wine search finished")
	return results
}

// NormalizeSweetness rewrites every sweetness onto the 1–5 integer scale and
// returns how many wines changed.
func (s *CatalogService) NormalizeSweetness(ctx context.Context) (int, error) {
	wines, err := s.store.ListWines(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load catalog: %w", err)
	}

	updates := make(map[int64]float64)
	for _, w := range wines {
		normalized := NormalizeSweetness(w.Sweetness)
		if w.Sweetness != nil && *w.Sweetness == normalized {
			continue
		}
		updates[w.ID] = normalized
		s.logger.WithFields(logrus.Fields{
			"wine_id":   w.ID,
			"sweetness": normalized,
		}).Debug("Normalising sweetness")
	}

	if len(updates) == 0 {
		return 0, nil
	}
	if err := s.store.UpdateSweetness(ctx, updates); err != nil {
		return 0, fmt.Errorf("failed to update sweetness: %w", err)
	}
	s.cache.BumpCatalog(ctx)

	s.logger.WithField("updated", len(updates)).Info("Sweetness values normalised")
	return len(updates), nil
}

// ImportWines stores new wines and returns them with their ids.
func (s *CatalogService) ImportWines(ctx context.Context, wines []models.Wine) ([]models.Wine, error) {
	if len(wines) == 0 {
		return nil, nil
	}

	stored, err := s.store.InsertWines(ctx, wines)
	if err != nil {
		return nil, fmt.Errorf("failed to insert wines: %w", err)
	}
	s.cache.BumpCatalog(ctx)
	s.syncGraph(ctx, stored)

	return stored, nil
}

// ReplaceCatalog removes every wine and every rating.
func (s *CatalogService) ReplaceCatalog(ctx context.Context) error {
	if err := s.store.ClearCatalog(ctx); err != nil {
		return fmt.Errorf("failed to clear catalog: %w", err)
	}
	s.cache.BumpCatalog(ctx)
	s.cache.BumpRatings(ctx)

	if err := s.graph.Clear(ctx); err != nil {
		s.logger.WithError(err).Warn("Failed to clear variety graph")
	}

	s.logger.Info("Catalog cleared")
	return nil
}

// SeedSampleData loads the sample wines into an empty catalog and returns
// how many were added.
func (s *CatalogService) SeedSampleData(ctx context.Context) (int, error) {
	seeded, err := storage.SeedIfEmpty(ctx, s.store)
	if err != nil {
		return 0, fmt.Errorf("failed to seed sample data: %w", err)
	}
	if len(seeded) == 0 {
		return 0, nil
	}
	s.cache.BumpCatalog(ctx)
	s.syncGraph(ctx, seeded)

	s.logger.WithField("wines", len(seeded)).Info("Sample wines added to empty catalog")
	return len(seeded), nil
}

// SyncGraph mirrors the whole catalog into the variety graph.
func (s *CatalogService) SyncGraph(ctx context.Context) error {
	if !s.graph.Enabled() {
		return nil
	}
	wines, err := s.store.ListWines(ctx)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	return s.graph.SyncWines(ctx, wines)
}

// RelatedWines returns wines sharing a grape with id.
func (s *CatalogService) RelatedWines(ctx context.Context, id int64, limit int) (*models.RelatedWinesResponse, error) {
	if _, err := s.GetWine(ctx, id); err != nil {
		return nil, err
	}
	related, err := s.graph.RelatedWines(ctx, id, limit)
	if err != nil {
		return nil, err
	}
	return &models.RelatedWinesResponse{
		WineID:  id,
		Related: related,
	}, nil
}

func (s *CatalogService) syncGraph(ctx context.Context, wines []models.Wine) {
	if err := s.graph.SyncWines(ctx, wines); err != nil {
		s.logger.WithError(err).WithField("wines", len(wines)).Warn("Failed to sync wines into variety graph")
	}
}
