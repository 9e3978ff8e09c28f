package proposals

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/aliuyar1234/nr01desk/internal/catalog"
	"github.com/aliuyar1234/nr01desk/internal/pricing"
	"github.com/aliuyar1234/nr01desk/internal/validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrProposalNotFound is returned when a proposal is not found
	ErrProposalNotFound = errors.New("proposal not found")

	// ErrInvalidStatus is returned for a status outside the known set
	ErrInvalidStatus = errors.New("invalid proposal status")
)

// DateLayout is the proposal_date format.
const DateLayout = "2006-01-02"

// Status is the commercial state of a proposal.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusArchived Status = "archived"
)

// Statuses lists every status in workflow order.
func Statuses() []Status {
	return []Status{StatusDraft, StatusSent, StatusApproved, StatusRejected, StatusArchived}
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses() {
		if string(st) == s {
			return st, nil
		}
	}
	return "", ErrInvalidStatus
}

// Item is one priced line. Names are copied from the catalog so a proposal
// survives later catalog edits.
type Item struct {
	ServiceID   string          `json:"service_id"`
	ServiceName string          `json:"service_name"`
	Hours       decimal.Decimal `json:"hours"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

// ItemFromService builds a line from a catalog entry at its list price.
func ItemFromService(svc catalog.Service, quantity int) Item {
	it := Item{
		ServiceID:   svc.ID,
		ServiceName: svc.Name,
		Hours:       svc.Hours,
		Quantity:    quantity,
		UnitPrice:   svc.Price,
	}
	it.normalize()
	return it
}

// normalize defaults quantity to 1 and fills a missing total from the unit
// price. A total given explicitly wins, as priced lines may carry discounts.
func (it *Item) normalize() {
	it.ServiceID = strings.TrimSpace(it.ServiceID)
	it.ServiceName = strings.TrimSpace(it.ServiceName)
	if it.Quantity <= 0 {
		it.Quantity = 1
	}
	if it.Total.IsZero() {
		it.Total = it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
	}
	it.UnitPrice = it.UnitPrice.Round(2)
	it.Total = it.Total.Round(2)
}

// Proposal is a commercial offer to a client.
type Proposal struct {
	ID              uuid.UUID       `json:"id"`
	ClientName      string          `json:"client_name"`
	ClientEmail     string          `json:"client_email"`
	Title           string          `json:"title"`
	Items           []Item          `json:"items"`
	TotalValue      decimal.Decimal `json:"total_value"`
	GeneralDiscount decimal.Decimal `json:"general_discount"`
	DisplacementFee decimal.Decimal `json:"displacement_fee"`
	FinalTotal      decimal.Decimal `json:"final_total"`
	TaxRegime       string          `json:"tax_regime"`
	Status          Status          `json:"status"`
	ProposalDate    string          `json:"proposal_date"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CreateInput holds the fields of a new proposal.
type CreateInput struct {
	ClientName      string          `json:"client_name"`
	ClientEmail     string          `json:"client_email"`
	Title           string          `json:"title"`
	Items           []Item          `json:"items"`
	GeneralDiscount decimal.Decimal `json:"general_discount"`
	DisplacementFee decimal.Decimal `json:"displacement_fee"`
	ProposalDate    string          `json:"proposal_date"`
	TaxRegime       string          `json:"tax_regime"`
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
	return "invalid proposal: " + strings.Join(parts, "; ")
}

// Build validates in and computes the totals of a new draft proposal dated
// today when no date is given.
func Build(in CreateInput, now time.Time) (*Proposal, error) {
	in.ClientName = strings.TrimSpace(in.ClientName)
	in.ClientEmail = validation.NormalizeEmail(in.ClientEmail)
	in.Title = strings.TrimSpace(in.Title)
	in.TaxRegime = strings.TrimSpace(in.TaxRegime)
	if in.TaxRegime == "" {
		in.TaxRegime = pricing.RegimeSimples
	}
	if in.ProposalDate == "" {
		in.ProposalDate = now.Format(DateLayout)
	}

	errs := ValidationError{}
	if err := validation.ValidateName(in.ClientName); err != nil {
		errs["client_name"] = err.Error()
	}
	if in.Title == "" {
		errs["title"] = "title is required"
	}
	if in.ClientEmail != "" {
		if err := validation.ValidateEmail(in.ClientEmail); err != nil {
			errs["client_email"] = err.Error()
		}
	}
	if !pricing.KnownRegime(in.TaxRegime) {
		errs["tax_regime"] = "unknown tax regime"
	}
	if _, err := time.Parse(DateLayout, in.ProposalDate); err != nil {
		errs["proposal_date"] = "proposal date must be YYYY-MM-DD"
	}
	if in.GeneralDiscount.IsNegative() {
		errs["general_discount"] = "discount must not be negative"
	}
	if in.DisplacementFee.IsNegative() {
		errs["displacement_fee"] = "displacement fee must not be negative"
	}
	for i := range in.Items {
		in.Items[i].normalize()
		if in.Items[i].ServiceName == "" {
			errs["items"] = "every item needs a service name"
		}
		if in.Items[i].Total.IsNegative() {
			errs["items"] = "item totals must not be negative"
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	items := in.Items
	if items == nil {
		items = []Item{}
	}
	p := &Proposal{
		ID:              uuid.New(),
		ClientName:      in.ClientName,
		ClientEmail:     in.ClientEmail,
		Title:           in.Title,
		Items:           items,
		GeneralDiscount: in.GeneralDiscount.Round(2),
		DisplacementFee: in.DisplacementFee.Round(2),
		TaxRegime:       in.TaxRegime,
		Status:          StatusDraft,
		ProposalDate:    in.ProposalDate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	p.Recompute()
	return p, nil
}

// Recompute derives total_value and final_total from the items.
func (p *Proposal) Recompute() {
	total := decimal.Zero
	for _, it := range p.Items {
		total = total.Add(it.Total)
	}
	p.TotalValue = total.Round(2)
	p.FinalTotal = pricing.Total(p.TotalValue, p.GeneralDiscount, p.DisplacementFee).Round(2)
}
