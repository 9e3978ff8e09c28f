package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrServiceNotFound is returned when a service id does not exist
	ErrServiceNotFound = errors.New("service not found")

	// ErrServiceExists is returned when an imported id collides on create
	ErrServiceExists = errors.New("service id already exists")
)

func init() {
	// API clients read money as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// ValidationError maps field names to messages.
type ValidationError map[string]string

func (v ValidationError) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v[k])
	}
	return "invalid service: " + strings.Join(parts, "; ")
}

// Uncategorized is the category shown for services without one.
const Uncategorized = "Sem categoria"

// Service is one priced offering in the catalog.
type Service struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Hours       decimal.Decimal `json:"hours"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// FormatID renders the sequential catalog id, e.g. srv-007.
func FormatID(n int64) string {
	return fmt.Sprintf("srv-%03d", n)
}

// ParseID extracts the sequence number from a catalog id. Ids that do not
// follow the srv-NNN shape return false.
func ParseID(id string) (int64, bool) {
	rest, ok := strings.CutPrefix(id, "srv-")
	if !ok || rest == "" {
		return 0, false
	}
	var n int64
	for _, c := range rest {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int64(c-'0')
	}
	return n, true
}

// Input holds the editable fields of a service.
type Input struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Hours       decimal.Decimal `json:"hours"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
}

// Normalize trims text fields and rounds money to cents.
func (in *Input) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)
	in.Price = in.Price.Round(2)
	in.Hours = in.Hours.Round(2)
}

// Validate reports field errors keyed by JSON name.
func (in *Input) Validate() ValidationError {
	errs := ValidationError{}
	switch {
	case in.Name == "":
		errs["name"] = "name is required"
	case len(in.Name) > 200:
		errs["name"] = "name must be at most 200 characters"
	}
	if in.Price.IsNegative() {
		errs["price"] = "price must not be negative"
	}
	if in.Hours.IsNegative() {
		errs["hours"] = "hours must not be negative"
	}
	if len(in.Category) > 100 {
		errs["category"] = "category must be at most 100 characters"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Patch carries a partial update; nil fields are left unchanged.
type Patch struct {
	Name        *string          `json:"name,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Hours       *decimal.Decimal `json:"hours,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Description *string          `json:"description,omitempty"`
}

// Apply returns the service's fields with the patch applied.
func (p Patch) Apply(s *Service) Input {
	in := Input{
		Name:        s.Name,
		Price:       s.Price,
		Hours:       s.Hours,
		Category:    s.Category,
		Description: s.Description,
	}
	if p.Name != nil {
		in.Name = *p.Name
	}
	if p.Price != nil {
		in.Price = *p.Price
	}
	if p.Hours != nil {
		in.Hours = *p.Hours
	}
	if p.Category != nil {
		in.Category = *p.Category
	}
	if p.Description != nil {
		in.Description = *p.Description
	}
	return in
}
