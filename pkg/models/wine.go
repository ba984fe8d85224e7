package models

import "strings"

// Wine is a catalog entry. Text columns that are NULL in the store are
// reported as empty strings; numeric columns keep their NULLs.
type Wine struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Vintage     *int     `json:"vintage"`
	Variety     string   `json:"variety"`
	VarietySub1 string   `json:"variety_sub1"`
	VarietySub2 string   `json:"variety_sub2"`
	Price       int64    `json:"price"`
	WineType    string   `json:"wine_type"`
	Acidity     *float64 `json:"acidity"`
	Tannin      *float64 `json:"tannin"`
	Body        *float64 `json:"body"`
	Sweetness   *float64 `json:"sweetness"`
}

// Varieties returns the non-empty grape varieties, primary first.
func (w Wine) Varieties() []string {
	out := make([]string, 0, 3)
	for _, v := range []string{w.Variety, w.VarietySub1, w.VarietySub2} {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// TypeOrOther returns the wine type, or "other" when it is unset.
func (w Wine) TypeOrOther() string {
	if w.WineType == "" {
		return "other"
	}
	return w.WineType
}

// WineSummary is the short form served by the lookup endpoint.
type WineSummary struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Variety string `json:"variety"`
	// Price is formatted with thousands separators, or "Unknown".
	Price string `json:"price"`
}

// WineSearchResult is one hit of the name/variety search. Taste attributes
// are omitted when unknown.
type WineSearchResult struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Variety     string   `json:"variety"`
	VarietySub1 string   `json:"variety_sub1"`
	VarietySub2 string   `json:"variety_sub2"`
	Vintage     int      `json:"vintage"`
	WineType    string   `json:"wine_type"`
	Price       int64    `json:"price"`
	Acidity     *float64 `json:"acidity,omitempty"`
	Tannin      *float64 `json:"tannin,omitempty"`
	Body        *float64 `json:"body,omitempty"`
	Sweetness   *float64 `json:"sweetness,omitempty"`
}

// RelatedWine is a wine sharing at least one grape with another wine.
type RelatedWine struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	WineType        string   `json:"wine_type"`
	SharedVarieties []string `json:"shared_varieties"`
}

type RelatedWinesResponse struct {
	WineID  int64         `json:"wine_id"`
	Related []RelatedWine `json:"related"`
}
