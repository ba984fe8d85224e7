package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/temcen/cellar/pkg/models"
)

var catalogColumns = []string{"name", "varieties1", "varieties2", "varieties3", "year", "type", "price", "acidity", "tannin", "body", "sweet"}

// ReadCatalogCSV reads catalog rows keyed by their header. Only the name
// column is mandatory; missing optional columns read as empty.
func ReadCatalogCSV(r io.Reader) ([]models.RawWineRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidRecord)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		// spreadsheets prepend a BOM to the first cell
		col = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		index[col] = i
	}
	if _, ok := index["name"]; !ok {
		return nil, fmt.Errorf("%w: missing name column", ErrInvalidRecord)
	}

	var records []models.RawWineRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(records)+2, err)
		}

		field := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(row) {
				return ""
			}
			return row[i]
		}

		rec := models.RawWineRecord{
			Name:    field("name"),
			Year:    field("year"),
			Type:    field("type"),
			Price:   field("price"),
			Acidity: field("acidity"),
			Tannin:  field("tannin"),
			Body:    field("body"),
			Sweet:   field("sweet"),
		}
		for _, col := range catalogColumns[1:4] {
			if v := field(col); v != "" {
				rec.Varieties = append(rec.Varieties, v)
			}
		}
		records = append(records, rec)
	}

	return records, nil
}
