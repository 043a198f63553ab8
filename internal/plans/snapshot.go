package plans

import (
	"time"

	"github.com/google/uuid"

	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
)

type rateKey struct {
	planID uuid.UUID
	level  int
}

// registrySnapshot is an immutable view of active plans, rates, and
// assignments. Instances are never mutated after construction.
type registrySnapshot struct {
	plans       map[uuid.UUID]bool
	rates       map[rateKey]models.CommissionRate
	assignments map[uuid.UUID][]models.UserCommissionPlan
}

func buildRegistrySnapshot(plansList []models.CommissionPlan, rates []models.CommissionRate, assignments []models.UserCommissionPlan) *registrySnapshot {
	snap := &registrySnapshot{
		plans:       make(map[uuid.UUID]bool, len(plansList)),
		rates:       make(map[rateKey]models.CommissionRate, len(rates)),
		assignments: make(map[uuid.UUID][]models.UserCommissionPlan),
	}
	for _, plan := range plansList {
		snap.plans[plan.ID] = true
	}
	for _, rate := range rates {
		snap.rates[rateKey{planID: rate.PlanID, level: rate.DistributorLevel}] = rate
	}
	for _, assignment := range assignments {
		snap.assignments[assignment.UserID] = append(snap.assignments[assignment.UserID], assignment)
	}
	return snap
}

// resolve finds the rate for a user at a level as of an instant, or nil when
// any hop of the resolution misses. AssignedAt is inclusive, ExpiresAt
// exclusive.
func (s *registrySnapshot) resolve(userID uuid.UUID, level int, asOf time.Time) *RateView {
	for _, assignment := range s.assignments[userID] {
		if asOf.Before(assignment.AssignedAt) {
			continue
		}
		if assignment.ExpiresAt != nil && !asOf.Before(*assignment.ExpiresAt) {
			continue
		}
		if !s.plans[assignment.PlanID] {
			continue
		}
		rate, ok := s.rates[rateKey{planID: assignment.PlanID, level: level}]
		if !ok {
			continue
		}
		return &RateView{
			PlanID:           rate.PlanID,
			Level:            rate.DistributorLevel,
			Percentage:       rate.Percentage,
			MinTradingVolume: rate.MinTradingVolume,
			MaxCommission:    rate.MaxCommission,
		}
	}
	return nil
}
