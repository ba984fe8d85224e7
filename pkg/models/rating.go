package models

import "time"

// Rating is the single stored rating of a wine. Re-rating a wine overwrites
// the score and timestamp.
type Rating struct {
	WineID  int64     `json:"wine_id"`
	Rating  int       `json:"rating"`
	RatedAt time.Time `json:"rated_at"`
}

// RatingWithWine joins a rating to its catalog entry.
type RatingWithWine struct {
	Rating
	Wine Wine `json:"wine"`
}

type RatingRequest struct {
	WineID int64 `json:"wine_id" validate:"required,gt=0"`
	Rating int   `json:"rating" validate:"required,min=1,max=5"`
}

// RatedWine is a row of the rating history as served to clients.
type RatedWine struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Variety     string    `json:"variety"`
	VarietySub1 string    `json:"variety_sub1"`
	VarietySub2 string    `json:"variety_sub2"`
	Vintage     *int      `json:"vintage"`
	WineType    string    `json:"wine_type"`
	Price       int64     `json:"price"`
	Rating      int       `json:"rating"`
	RatedAt     time.Time `json:"rated_at"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
