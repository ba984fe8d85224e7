package models

// PreferenceProfile is the rating-weighted taste profile rounded for display.
// All fields are zero until a fully described wine has been rated.
type PreferenceProfile struct {
	Acidity   float64 `json:"acidity"`
	Tannin    float64 `json:"tannin"`
	Body      float64 `json:"body"`
	Sweetness float64 `json:"sweetness"`
}

type PreferencesResponse struct {
	Preferences PreferenceProfile `json:"preferences"`
	RatedWines  []RatedWine       `json:"rated_wines"`
}
