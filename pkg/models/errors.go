package models

import "errors"

var (
	ErrWineNotFound   = errors.New("wine not found")
	ErrRatingNotFound = errors.New("rating not found")
	ErrInvalidRating  = errors.New("rating must be between 1 and 5")
	ErrJobNotFound    = errors.New("job not found")
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}
