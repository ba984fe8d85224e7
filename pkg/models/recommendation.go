package models

// RecommendedWine is a ranked, unrated wine together with its score.
type RecommendedWine struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Vintage     *int    `json:"vintage"`
	Variety     string  `json:"variety"`
	VarietySub1 string  `json:"variety_sub1"`
	VarietySub2 string  `json:"variety_sub2"`
	Price       int64   `json:"price"`
	WineType    string  `json:"wine_type"`
	Similarity  float64 `json:"similarity"`
	Acidity     float64 `json:"acidity"`
	Tannin      float64 `json:"tannin"`
	Body        float64 `json:"body"`
	Sweetness   float64 `json:"sweetness"`
}

// RecommendationsResponse groups recommendations by wine type. Every group is
// always present and holds at most five wines.
type RecommendationsResponse struct {
	Red       []RecommendedWine `json:"red"`
	White     []RecommendedWine `json:"white"`
	Sparkling []RecommendedWine `json:"sparkling"`
	Other     []RecommendedWine `json:"other"`
}

// EmptyRecommendations returns a response with four empty, non-nil groups.
func EmptyRecommendations() *RecommendationsResponse {
	return &RecommendationsResponse{
		Red:       []RecommendedWine{},
		White:     []RecommendedWine{},
		Sparkling: []RecommendedWine{},
		Other:     []RecommendedWine{},
	}
}
