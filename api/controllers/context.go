package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/rafaelcoron/uplevel-backend/api/middleware"
	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
	pkgerrors "github.com/rafaelcoron/uplevel-backend/pkg/errors"
)

// requestActor resolves the authenticated user attached to the request
// context by the auth middleware.
type requestActor struct {
	ID   uuid.UUID
	Role string
}

func actorFromRequest(r *http.Request) (requestActor, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return requestActor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return requestActor{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return requestActor{ID: id, Role: middleware.RoleFromContext(r.Context())}, nil
}

func (a requestActor) isAdmin() bool {
	return a.Role == string(enums.RoleAdmin)
}

// canActFor reports whether the actor may read resources owned by target.
// Admins may read any user, everyone else only themselves.
func (a requestActor) canActFor(target uuid.UUID) bool {
	return a.isAdmin() || a.ID == target
}
