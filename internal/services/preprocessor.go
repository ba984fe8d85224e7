package services

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/temcen/cellar/pkg/models"
)

// KRWToJPYRate converts source prices, quoted in Korean won, to yen.
const KRWToJPYRate = 0.0892

// DefaultSweetness replaces a missing or zero sweetness during maintenance.
const DefaultSweetness = 3.0

var ErrInvalidRecord = errors.New("invalid catalog record")

var sweetnessLabels = map[string]float64{
	"SWEET1": 1, // very dry
	"SWEET2": 2,
	"SWEET3": 3,
	"SWEET4": 4,
	"SWEET5": 5, // very sweet
}

// DataPreprocessor turns raw catalog rows into wines ready to store.
type DataPreprocessor struct {
	logger *logrus.Logger
}

func NewDataPreprocessor(logger *logrus.Logger) *DataPreprocessor {
	return &DataPreprocessor{
		logger: logger,
	}
}

// ProcessRecord cleans one raw row. Unusable numeric values become NULL;
// only a missing name rejects the row.
func (dp *DataPreprocessor) ProcessRecord(rec models.RawWineRecord) (models.Wine, error) {
	name := dp.cleanText(rec.Name)
	if name == "" {
		return models.Wine{}, fmt.Errorf("%w: missing name", ErrInvalidRecord)
	}

	wine := models.Wine{
		Name:     name,
		Vintage:  parseVintage(rec.Year),
		WineType: dp.StandardizeType(rec.Type),
	}

	varieties := make([]string, 0, 3)
	for _, v := range rec.Varieties {
		v = dp.cleanText(v)
		if v == "" || fold(v) == "nan" {
			continue
		}
		varieties = append(varieties, v)
	}
	for i, v := range varieties {
		switch i {
		case 0:
			wine.Variety = v
		case 1:
			wine.VarietySub1 = v
		case 2:
			wine.VarietySub2 = v
		}
	}

	if won, ok := CleanNumeric(rec.Price); ok {
		wine.Price = KRWToJPY(won)
	}
	wine.Acidity = optionalNumeric(rec.Acidity)
	wine.Tannin = optionalNumeric(rec.Tannin)
	wine.Body = optionalNumeric(rec.Body)

	sweetness := dp.sweetnessFor(rec)
	wine.Sweetness = &sweetness

	return wine, nil
}

func (dp *DataPreprocessor) sweetnessFor(rec models.RawWineRecord) float64 {
	label := strings.ToUpper(strings.TrimSpace(rec.Sweet))
	if label == "" || label == "NAN" {
		sweetness := DefaultSweetnessForType(fold(strings.TrimSpace(rec.Type)))
		dp.logger.WithFields(logrus.Fields{
			"wine":      rec.Name,
			"type":      rec.Type,
			"sweetness": sweetness,
		}).Debug("Missing sweetness, using type default")
		return sweetness
	}
	if v, ok := sweetnessLabels[label]; ok {
		return v
	}
	dp.logger.WithFields(logrus.Fields{
		"wine":  rec.Name,
		"sweet": rec.Sweet,
	}).Warn("Invalid sweetness label, assuming dry")
	return 2
}

// StandardizeType maps free-form wine types onto red, white, rose,
// sparkling or other.
func (dp *DataPreprocessor) StandardizeType(raw string) string {
	t := fold(norm.NFC.String(strings.TrimSpace(raw)))
	switch {
	case strings.Contains(t, "red"):
		return "red"
	case strings.Contains(t, "white"):
		return "white"
	case strings.Contains(t, "rose"), strings.Contains(t, "rosé"):
		return "rose"
	case strings.Contains(t, "sparkling"):
		return "sparkling"
	default:
		return "other"
	}
}

// fold case-folds s. Casers carry state, so one is made per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

func (dp *DataPreprocessor) cleanText(s string) string {
	return strings.TrimSpace(norm.NFKC.String(s))
}

// DefaultSweetnessForType is the sweetness assumed for a row without one.
// The type must already be case-folded.
func DefaultSweetnessForType(wineType string) float64 {
	switch wineType {
	case "red":
		return 1
	case "white":
		return 2
	case "sparkling":
		return 3
	default:
		return 2
	}
}

// CleanNumeric keeps only digits, '.' and '-' and parses the rest. ok is
// false when nothing parseable remains.
func CleanNumeric(raw string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == '.' || r == '-' {
			return r
		}
		return -1
	}, norm.NFKC.String(raw))
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func optionalNumeric(raw string) *float64 {
	v, ok := CleanNumeric(raw)
	if !ok {
		return nil
	}
	return &v
}

// KRWToJPY converts a won price to whole yen, rounding half to even.
func KRWToJPY(won float64) int64 {
	if won == 0 {
		return 0
	}
	return int64(math.RoundToEven(won * KRWToJPYRate))
}

func parseVintage(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	year := int(math.Trunc(v))
	return &year
}

// NormalizeSweetness clamps a stored sweetness onto the 1–5 scale: missing
// or zero becomes DefaultSweetness, anything else is clamped and rounded
// half to even.
func NormalizeSweetness(v *float64) float64 {
	switch {
	case v == nil || *v == 0 || math.IsNaN(*v):
		return DefaultSweetness
	case *v < 1:
		return 1
	case *v > 5:
		return 5
	default:
		return math.RoundToEven(*v)
	}
}
