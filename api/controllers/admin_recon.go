package controllers

import (
	"net/http"

	"github.com/rafaelcoron/uplevel-backend/api/responses"
	"github.com/rafaelcoron/uplevel-backend/internal/recon"
	pkgerrors "github.com/rafaelcoron/uplevel-backend/pkg/errors"
	"github.com/rafaelcoron/uplevel-backend/pkg/logger"
)

// AdminReconTrigger starts a reconciliation sweep and blocks until it
// finishes. The scheduled worker runs the same sweep on an interval; this
// endpoint exists for on-demand checks after incident response.
func AdminReconTrigger(svc recon.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "recon service unavailable"))
			return
		}

		run, err := svc.Run(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, reconRunResponseFromModel(*run))
	}
}
