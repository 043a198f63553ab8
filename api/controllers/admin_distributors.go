package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/rafaelcoron/uplevel-backend/api/responses"
	"github.com/rafaelcoron/uplevel-backend/api/validators"
	"github.com/rafaelcoron/uplevel-backend/internal/graph"
	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
	pkgerrors "github.com/rafaelcoron/uplevel-backend/pkg/errors"
	"github.com/rafaelcoron/uplevel-backend/pkg/logger"
)

type attachDistributorRequest struct {
	UplineID *uuid.UUID `json:"upline_id,omitempty"`
}

type edgeResponse struct {
	ID            uuid.UUID  `json:"id"`
	DistributorID uuid.UUID  `json:"distributor_id"`
	UplineID      *uuid.UUID `json:"upline_id,omitempty"`
	Level         int        `json:"level"`
	IsActive      bool       `json:"is_active"`
	AttachedBy    *uuid.UUID `json:"attached_by,omitempty"`
	DetachedAt    *time.Time `json:"detached_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func edgeResponseFromModel(m *models.DistributorEdge) edgeResponse {
	return edgeResponse{
		ID:            m.ID,
		DistributorID: m.DistributorID,
		UplineID:      m.UplineID,
		Level:         m.Level,
		IsActive:      m.IsActive,
		AttachedBy:    m.AttachedBy,
		DetachedAt:    m.DetachedAt,
		CreatedAt:     m.CreatedAt,
	}
}

// AdminDistributorAttach places a distributor under an upline. An omitted
// upline_id attaches a master distributor at level zero.
func AdminDistributorAttach(svc graph.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "graph service unavailable"))
			return
		}

		distributorID, err := parseDistributorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload attachDistributorRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		edge, err := svc.Attach(r.Context(), graph.AttachInput{
			DistributorID: distributorID,
			UplineID:      payload.UplineID,
			ActorID:       actor.ID,
			ActorRole:     actor.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, edgeResponseFromModel(edge))
	}
}

// AdminDistributorDetach deactivates a distributor's active edge. The
// distributor's downline keeps its levels until each member is re-attached.
func AdminDistributorDetach(svc graph.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "graph service unavailable"))
			return
		}

		distributorID, err := parseDistributorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Detach(r.Context(), graph.DetachInput{
			DistributorID: distributorID,
			ActorID:       actor.ID,
			ActorRole:     actor.Role,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}
