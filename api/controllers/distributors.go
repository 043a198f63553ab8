package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rafaelcoron/uplevel-backend/api/responses"
	"github.com/rafaelcoron/uplevel-backend/api/validators"
	"github.com/rafaelcoron/uplevel-backend/internal/graph"
	pkgerrors "github.com/rafaelcoron/uplevel-backend/pkg/errors"
	"github.com/rafaelcoron/uplevel-backend/pkg/logger"
)

type uplineEntryResponse struct {
	UserID uuid.UUID `json:"user_id"`
	Level  int       `json:"level"`
}

type uplineChainResponse struct {
	UserID uuid.UUID             `json:"user_id"`
	Upline []uplineEntryResponse `json:"upline"`
}

func parseDistributorID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "userID"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return userID, nil
}

// DistributorUpline returns the ordered upline chain above one distributor,
// nearest ancestor first. An omitted max_depth walks to the configured
// commission depth.
func DistributorUpline(svc graph.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "graph service unavailable"))
			return
		}

		userID, err := parseDistributorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !actor.canActFor(userID) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "upline belongs to another user"))
			return
		}

		maxDepth, err := validators.ParseQueryInt(r, "max_depth", 0, 1, 10)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		chain, err := svc.UplineChain(r.Context(), userID, maxDepth)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := uplineChainResponse{
			UserID: userID,
			Upline: make([]uplineEntryResponse, 0, len(chain)),
		}
		for _, entry := range chain {
			resp.Upline = append(resp.Upline, uplineEntryResponse{UserID: entry.UserID, Level: entry.Level})
		}
		responses.WriteSuccess(w, resp)
	}
}
