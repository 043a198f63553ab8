package plans

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
)

// Repository defines persistence operations for plans, rates, and
// assignments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreatePlan(ctx context.Context, plan *models.CommissionPlan) (*models.CommissionPlan, error)
	FindPlan(ctx context.Context, planID uuid.UUID) (*models.CommissionPlan, error)
	MaxPlanVersion(ctx context.Context, name string) (int, error)
	UpdatePlan(ctx context.Context, planID uuid.UUID, updates map[string]any) error
	ActivePlans(ctx context.Context) ([]models.CommissionPlan, error)

	ActiveRate(ctx context.Context, planID uuid.UUID, level int) (*models.CommissionRate, error)
	InsertRate(ctx context.Context, rate *models.CommissionRate) (*models.CommissionRate, error)
	DeactivateRate(ctx context.Context, rateID uuid.UUID) error
	ActiveRates(ctx context.Context) ([]models.CommissionRate, error)

	InsertAssignment(ctx context.Context, assignment *models.UserCommissionPlan) (*models.UserCommissionPlan, error)
	ActiveAssignmentsByUser(ctx context.Context, userID uuid.UUID) ([]models.UserCommissionPlan, error)
	UpdateAssignment(ctx context.Context, assignmentID uuid.UUID, updates map[string]any) error
	ActiveAssignments(ctx context.Context) ([]models.UserCommissionPlan, error)

	FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
}
