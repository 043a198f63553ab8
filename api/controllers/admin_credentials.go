package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rafaelcoron/uplevel-backend/api/responses"
	"github.com/rafaelcoron/uplevel-backend/api/validators"
	"github.com/rafaelcoron/uplevel-backend/internal/credentials"
	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
	pkgerrors "github.com/rafaelcoron/uplevel-backend/pkg/errors"
	"github.com/rafaelcoron/uplevel-backend/pkg/logger"
)

type issueCredentialRequest struct {
	Name   string   `json:"name" validate:"required,min=3,max=120"`
	Scopes []string `json:"scopes" validate:"required,min=1,dive,required"`
}

// credentialResponse deliberately omits the secret hash. The secret itself
// travels only in the one-time token field of the issue response.
type credentialResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	KeyID     string    `json:"key_id"`
	Scopes    []string  `json:"scopes"`
	IsActive  bool      `json:"is_active"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

func credentialResponseFromModel(m *models.ServiceCredential) credentialResponse {
	return credentialResponse{
		ID:        m.ID,
		Name:      m.Name,
		KeyID:     m.KeyID,
		Scopes:    append([]string{}, m.Scopes...),
		IsActive:  m.IsActive,
		CreatedBy: m.CreatedBy,
		CreatedAt: m.CreatedAt,
	}
}

type issuedCredentialResponse struct {
	Credential credentialResponse `json:"credential"`
	Token      string             `json:"token"`
}

// AdminCredentialIssue mints a machine credential. The returned token is
// shown exactly once; only its argon2id hash is stored.
func AdminCredentialIssue(svc credentials.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credentials service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload issueCredentialRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		issued, err := svc.Issue(r.Context(), credentials.IssueParams{
			Name:    strings.TrimSpace(payload.Name),
			Scopes:  payload.Scopes,
			ActorID: actor.ID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, issuedCredentialResponse{
			Credential: credentialResponseFromModel(issued.Credential),
			Token:      issued.Token,
		})
	}
}
