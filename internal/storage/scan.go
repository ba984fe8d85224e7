package storage

import (
	"sort"

	"github.com/temcen/cellar/pkg/models"
)

// wineDest lists the scan targets matching the wine column lists of both
// backends.
func wineDest(w *models.Wine) []any {
	return []any{
		&w.ID, &w.Name, &w.Vintage, &w.Variety, &w.VarietySub1, &w.VarietySub2,
		&w.Price, &w.WineType, &w.Acidity, &w.Tannin, &w.Body, &w.Sweetness,
	}
}

func scanWine(row rowScanner) (*models.Wine, error) {
	var w models.Wine
	if err := row.Scan(wineDest(&w)...); err != nil {
		return nil, err
	}
	return &w, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func sortedIDs(values map[int64]float64) []int64 {
	ids := make([]int64, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
