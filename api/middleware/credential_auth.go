package middleware

import (
	"context"
	"net/http"

	"github.com/rafaelcoron/uplevel-backend/api/responses"
	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
	pkgerrors "github.com/rafaelcoron/uplevel-backend/pkg/errors"
	"github.com/rafaelcoron/uplevel-backend/pkg/logger"
)

type credentialVerifier interface {
	Verify(ctx context.Context, token string, scope enums.CredentialScope) (*models.ServiceCredential, error)
}

// CredentialAuth validates a service-credential bearer token against the
// required scope and seeds the request context with the caller's identity.
func CredentialAuth(verifier credentialVerifier, scope enums.CredentialScope, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credential verifier unavailable"))
				return
			}

			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			credential, err := verifier.Verify(r.Context(), token, scope)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithCredential(r.Context(), credential.ID.String(), credential.KeyID)
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"credential_id":   credential.ID.String(),
					"credential_name": credential.Name,
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
