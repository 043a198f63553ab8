package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/rafaelcoron/uplevel-backend/api/responses"
	"github.com/rafaelcoron/uplevel-backend/pkg/config"
	"github.com/rafaelcoron/uplevel-backend/pkg/db"
	"github.com/rafaelcoron/uplevel-backend/pkg/logger"
	"github.com/rafaelcoron/uplevel-backend/pkg/redis"
)

const readyCheckTimeout = 2 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Uplevel-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency the API binary holds. Any failed ping
// flips the response to 503 so the platform stops routing traffic here.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Uplevel-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		defer cancel()

		checks := map[string]string{}
		ready := true
		check := func(name string, ping func(context.Context) error) {
			if err := ping(ctx); err != nil {
				checks[name] = "error"
				ready = false
				if logg != nil {
					logg.Error(logg.WithField(ctx, "dependency", name), "readiness check failed", err)
				}
				return
			}
			checks[name] = "ok"
		}

		if dbP != nil {
			check("db", dbP.Ping)
		} else {
			checks["db"] = "skipped"
		}
		if redisP != nil {
			check("redis", redisP.Ping)
		} else {
			checks["redis"] = "skipped"
		}

		status := "ready"
		httpStatus := http.StatusOK
		if !ready {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}
		responses.WriteSuccessStatus(w, httpStatus, map[string]any{
			"status": status,
			"checks": checks,
		})
	}
}
