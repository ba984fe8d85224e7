package models

import (
	"time"

	"github.com/google/uuid"
)

// RawWineRecord is one row of the catalog source file, before cleaning.
// Every field is kept as text exactly as read.
type RawWineRecord struct {
	Name      string   `json:"name" validate:"required"`
	Varieties []string `json:"varieties" validate:"max=3"`
	Year      string   `json:"year,omitempty"`
	Type      string   `json:"type,omitempty"`
	Price     string   `json:"price,omitempty"`
	Acidity   string   `json:"acidity,omitempty"`
	Tannin    string   `json:"tannin,omitempty"`
	Body      string   `json:"body,omitempty"`
	Sweet     string   `json:"sweet,omitempty"`
}

type CatalogBatchRequest struct {
	Records []RawWineRecord `json:"records" validate:"required,min=1,max=1000,dive"`
	// Replace clears the catalog and all ratings before the import.
	Replace bool `json:"replace"`
}

type CatalogBatchResponse struct {
	JobID         uuid.UUID `json:"job_id"`
	Status        string    `json:"status"`
	TotalItems    int       `json:"total_items"`
	EstimatedTime *int      `json:"estimated_time,omitempty"`
}

// CatalogImportMessage is the payload published on the catalog import topic.
type CatalogImportMessage struct {
	JobID     uuid.UUID       `json:"job_id"`
	Sequence  int             `json:"sequence"`
	Records   []RawWineRecord `json:"records"`
	Timestamp time.Time       `json:"timestamp"`
}

type SweetnessUpdateResponse struct {
	Message string `json:"message"`
	Updated int    `json:"updated"`
}
