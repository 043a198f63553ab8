package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rafaelcoron/uplevel-backend/api/responses"
	"github.com/rafaelcoron/uplevel-backend/api/validators"
	"github.com/rafaelcoron/uplevel-backend/internal/plans"
	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
	pkgerrors "github.com/rafaelcoron/uplevel-backend/pkg/errors"
	"github.com/rafaelcoron/uplevel-backend/pkg/logger"
)

type createPlanRequest struct {
	Name string   `json:"name" validate:"required,min=3,max=120"`
	Tags []string `json:"tags,omitempty" validate:"omitempty,dive,required,max=64"`
}

type setRateRequest struct {
	Level            int              `json:"level" validate:"required,min=1,max=10"`
	Percentage       decimal.Decimal  `json:"percentage" validate:"required"`
	MinTradingVolume *decimal.Decimal `json:"min_trading_volume,omitempty"`
	MaxCommission    *decimal.Decimal `json:"max_commission,omitempty"`
}

type assignPlanRequest struct {
	UserID     uuid.UUID  `json:"user_id" validate:"required"`
	AssignedAt *time.Time `json:"assigned_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type planResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	IsActive  bool      `json:"is_active"`
	Tags      []string  `json:"tags"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func planResponseFromModel(m *models.CommissionPlan) planResponse {
	return planResponse{
		ID:        m.ID,
		Name:      m.Name,
		Version:   m.Version,
		IsActive:  m.IsActive,
		Tags:      append([]string{}, m.Tags...),
		CreatedBy: m.CreatedBy,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

type rateResponse struct {
	ID               uuid.UUID        `json:"id"`
	PlanID           uuid.UUID        `json:"plan_id"`
	Level            int              `json:"level"`
	Percentage       decimal.Decimal  `json:"percentage"`
	MinTradingVolume *decimal.Decimal `json:"min_trading_volume,omitempty"`
	MaxCommission    *decimal.Decimal `json:"max_commission,omitempty"`
	IsActive         bool             `json:"is_active"`
	CreatedBy        uuid.UUID        `json:"created_by"`
	CreatedAt        time.Time        `json:"created_at"`
}

func rateResponseFromModel(m *models.CommissionRate) rateResponse {
	return rateResponse{
		ID:               m.ID,
		PlanID:           m.PlanID,
		Level:            m.DistributorLevel,
		Percentage:       m.Percentage,
		MinTradingVolume: m.MinTradingVolume,
		MaxCommission:    m.MaxCommission,
		IsActive:         m.IsActive,
		CreatedBy:        m.CreatedBy,
		CreatedAt:        m.CreatedAt,
	}
}

type assignmentResponse struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	PlanID     uuid.UUID  `json:"plan_id"`
	AssignedAt time.Time  `json:"assigned_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	IsActive   bool       `json:"is_active"`
	AssignedBy uuid.UUID  `json:"assigned_by"`
	CreatedAt  time.Time  `json:"created_at"`
}

func assignmentResponseFromModel(m *models.UserCommissionPlan) assignmentResponse {
	return assignmentResponse{
		ID:         m.ID,
		UserID:     m.UserID,
		PlanID:     m.PlanID,
		AssignedAt: m.AssignedAt,
		ExpiresAt:  m.ExpiresAt,
		IsActive:   m.IsActive,
		AssignedBy: m.AssignedBy,
		CreatedAt:  m.CreatedAt,
	}
}

func parsePlanID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "planID"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "plan id is required")
	}
	planID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid plan id")
	}
	return planID, nil
}

// AdminPlanCreate registers version one of a named commission plan.
func AdminPlanCreate(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plans service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createPlanRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		plan, err := svc.CreatePlan(r.Context(), plans.CreatePlanInput{
			Name:    strings.TrimSpace(payload.Name),
			Tags:    payload.Tags,
			ActorID: actor.ID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, planResponseFromModel(plan))
	}
}

// AdminPlanSetRate prices one level inside a plan, retiring any previous
// active rate for that level.
func AdminPlanSetRate(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plans service unavailable"))
			return
		}

		planID, err := parsePlanID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload setRateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rate, err := svc.SetRate(r.Context(), plans.SetRateInput{
			PlanID:           planID,
			Level:            payload.Level,
			Percentage:       payload.Percentage,
			MinTradingVolume: payload.MinTradingVolume,
			MaxCommission:    payload.MaxCommission,
			ActorID:          actor.ID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, rateResponseFromModel(rate))
	}
}

// AdminPlanAssign grants a plan to a user for a window.
func AdminPlanAssign(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plans service unavailable"))
			return
		}

		planID, err := parsePlanID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload assignPlanRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := plans.AssignPlanInput{
			UserID:    payload.UserID,
			PlanID:    planID,
			ExpiresAt: payload.ExpiresAt,
			ActorID:   actor.ID,
		}
		if payload.AssignedAt != nil {
			input.AssignedAt = *payload.AssignedAt
		}

		assignment, err := svc.AssignPlan(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, assignmentResponseFromModel(assignment))
	}
}

// AdminPlanDeactivate retires a plan. Existing assignments stop resolving
// rates from it immediately.
func AdminPlanDeactivate(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plans service unavailable"))
			return
		}

		planID, err := parsePlanID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeactivatePlan(r.Context(), plans.DeactivatePlanInput{
			PlanID:  planID,
			ActorID: actor.ID,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}
