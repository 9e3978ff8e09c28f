package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

// CSVHeader is the column layout of catalog exports and imports.
var CSVHeader = []string{"ID", "Nome", "Preço", "Horas", "Categoria"}

// ErrBadCSV wraps every row-level import failure.
var ErrBadCSV = errors.New("invalid services csv")

// WriteCSV writes services in the catalog CSV layout with prices as "R$ x.xx".
func WriteCSV(w io.Writer, services []Service) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, s := range services {
		rec := []string{
			s.ID,
			s.Name,
			"R$ " + s.Price.StringFixed(2),
			s.Hours.String(),
			s.Category,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Record is one imported CSV row. ID is empty when the row carried none.
type Record struct {
	Line  int
	ID    string
	Input Input
}

// ReadCSV parses a catalog CSV. The first line is a header and is skipped.
// Prices may carry an "R$" prefix and use a comma as decimal separator.
func ReadCSV(r io.Reader, maxRows int) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	var out []Record
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) < 5 {
			return nil, fmt.Errorf("%w: line %d has %d columns, want 5", ErrBadCSV, line, len(rec))
		}

		price, err := ParseMoney(rec[2])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d price: %v", ErrBadCSV, line, err)
		}
		hours, err := ParseMoney(rec[3])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d hours: %v", ErrBadCSV, line, err)
		}

		r := Record{
			Line: line,
			ID:   strings.TrimSpace(rec[0]),
			Input: Input{
				Name:     rec[1],
				Price:    price,
				Hours:    hours,
				Category: rec[4],
			},
		}
		r.Input.Normalize()
		if errs := r.Input.Validate(); errs != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrBadCSV, line, errs)
		}
		out = append(out, r)
		if maxRows > 0 && len(out) > maxRows {
			return nil, fmt.Errorf("%w: more than %d rows", ErrBadCSV, maxRows)
		}
	}
	return out, nil
}

// ParseMoney reads "R$ 1.234,56", "1234,56" or "1234.56".
func ParseMoney(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
