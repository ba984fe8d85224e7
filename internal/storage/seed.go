package storage

import (
	"context"

	"github.com/temcen/cellar/pkg/models"
)

// SampleWines returns the starter catalog loaded into an empty database.
func SampleWines() []models.Wine {
	wine := func(name, variety string, vintage int, wineType string, price int64, acidity, tannin, body, sweetness float64) models.Wine {
		return models.Wine{
			Name:      name,
			Variety:   variety,
			Vintage:   &vintage,
			WineType:  wineType,
			Price:     price,
			Acidity:   &acidity,
			Tannin:    &tannin,
			Body:      &body,
			Sweetness: &sweetness,
		}
	}
	return []models.Wine{
		wine("Château Margaux 2015", "Cabernet Sauvignon", 2015, "red", 120000, 3.5, 4.0, 5.0, 2.0),
		wine("Dom Pérignon 2010", "Chardonnay", 2010, "sparkling", 25000, 4.0, 1.0, 3.0, 2.5),
		wine("Cloudy Bay Sauvignon Blanc 2022", "Sauvignon Blanc", 2022, "white", 4000, 4.5, 1.0, 2.0, 1.5),
		wine("シャトー・メルシャン 甲州きいろ香 2022", "甲州", 2022, "white", 2500, 3.8, 1.0, 2.0, 2.0),
		wine("Opus One 2018", "Cabernet Sauvignon", 2018, "red", 45000, 3.8, 4.5, 5.0, 1.5),
		wine("ブルゴーニュ ピノ・ノワール 2020", "Pinot Noir", 2020, "red", 5000, 4.0, 3.0, 3.5, 1.5),
		wine("シャブリ グラン・クリュ 2019", "Chardonnay", 2019, "white", 8000, 4.2, 1.0, 3.0, 1.0),
		wine("バローロ 2016", "Nebbiolo", 2016, "red", 12000, 4.0, 4.5, 4.5, 1.0),
		wine("モエ・エ・シャンドン ブリュット", "Chardonnay", 2018, "sparkling", 7000, 4.0, 1.0, 2.5, 2.0),
		wine("シャトーヌフ・デュ・パプ 2017", "Grenache", 2017, "red", 9000, 3.5, 3.8, 4.5, 1.8),
	}
}

// SeedIfEmpty loads SampleWines when the catalog has no wines. It returns the
// wines inserted, which is empty when the catalog was already populated.
func SeedIfEmpty(ctx context.Context, s Store) ([]models.Wine, error) {
	n, err := s.CountWines(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, nil
	}
	return s.InsertWines(ctx, SampleWines())
}
