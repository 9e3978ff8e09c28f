package pricing

import (
	"encoding/json"
	"net/http"

	"github.com/aliuyar1234/nr01desk/internal/apperrors"
	"github.com/aliuyar1234/nr01desk/internal/audit"
	"github.com/aliuyar1234/nr01desk/internal/auth"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// TechnicalHourRequest is the body of POST /api/v1/pricing/technical-hour
type TechnicalHourRequest struct {
	FixedCosts      decimal.Decimal `json:"fixed_costs"`
	ProLabor        decimal.Decimal `json:"pro_labor"`
	ProductiveHours decimal.Decimal `json:"productive_hours"`
}

// HandleTechnicalHour handles POST /api/v1/pricing/technical-hour
func HandleTechnicalHour() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TechnicalHourRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		th, err := TechnicalHour(req.FixedCosts, req.ProLabor, req.ProductiveHours)
		if err != nil {
			apperrors.WriteValidationError(w, r, "Invalid pricing input", map[string]string{
				"productive_hours": err.Error(),
			})
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]decimal.Decimal{
			"technical_hour": th.Round(2),
		})
	}
}

// ItemRequest prices a proposal line. TaxRate may be omitted when TaxRegime
// names a known regime.
type ItemRequest struct {
	ItemInput
	TaxRegime string `json:"tax_regime"`
}

// HandleProposalItem handles POST /api/v1/pricing/item
func HandleProposalItem(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ItemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}
		if req.EstimatedHours.IsNegative() || req.BasePrice.IsNegative() {
			apperrors.WriteBadRequest(w, r, "Base price and hours must not be negative")
			return
		}

		if req.TaxRegime != "" && req.TaxRate.IsZero() {
			params, err := store.Get(r.Context())
			if err != nil {
				log.Error().Err(err).Msg("Failed to load pricing parameters")
				apperrors.WriteInternalError(w, r, "Failed to load pricing parameters")
				return
			}
			req.TaxRate = params.For(req.TaxRegime)
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, ProposalItem(req.ItemInput))
	}
}

// HandleGetParameters handles GET /api/v1/pricing/parameters
func HandleGetParameters(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := store.Get(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("Failed to load pricing parameters")
			apperrors.WriteInternalError(w, r, "Failed to load pricing parameters")
			return
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, params)
	}
}

// HandleUpdateParameters handles PUT /api/v1/pricing/parameters
func HandleUpdateParameters(store *Store, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var p Parameters
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}
		if errs := p.Validate(); errs != nil {
			apperrors.WriteValidationError(w, r, "Invalid pricing parameters", errs)
			return
		}

		updated, err := store.Update(ctx, p)
		if err != nil {
			log.Error().Err(err).Msg("Failed to update pricing parameters")
			apperrors.WriteInternalError(w, r, "Failed to update pricing parameters")
			return
		}

		if err := auditor.Entity(ctx, auth.GetUserID(ctx), audit.EventPricingUpdated, audit.EntityPricing, "", nil); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, updated)
	}
}
