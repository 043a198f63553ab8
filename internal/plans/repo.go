package plans

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a plan repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreatePlan(ctx context.Context, plan *models.CommissionPlan) (*models.CommissionPlan, error) {
	if err := r.db.WithContext(ctx).Create(plan).Error; err != nil {
		return nil, err
	}
	return plan, nil
}

func (r *repository) FindPlan(ctx context.Context, planID uuid.UUID) (*models.CommissionPlan, error) {
	var plan models.CommissionPlan
	err := r.db.WithContext(ctx).
		Where("id = ?", planID).
		First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *repository) MaxPlanVersion(ctx context.Context, name string) (int, error) {
	var version int
	err := r.db.WithContext(ctx).
		Model(&models.CommissionPlan{}).
		Where("name = ?", name).
		Select("COALESCE(MAX(version), 0)").
		Scan(&version).Error
	if err != nil {
		return 0, err
	}
	return version, nil
}

func (r *repository) UpdatePlan(ctx context.Context, planID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.CommissionPlan{}).
		Where("id = ?", planID).
		Updates(updates).Error
}

func (r *repository) ActivePlans(ctx context.Context) ([]models.CommissionPlan, error) {
	var plansList []models.CommissionPlan
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Find(&plansList).Error
	if err != nil {
		return nil, err
	}
	return plansList, nil
}

func (r *repository) ActiveRate(ctx context.Context, planID uuid.UUID, level int) (*models.CommissionRate, error) {
	var rate models.CommissionRate
	err := r.db.WithContext(ctx).
		Where("plan_id = ? AND distributor_level = ? AND is_active = ?", planID, level, true).
		First(&rate).Error
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

func (r *repository) InsertRate(ctx context.Context, rate *models.CommissionRate) (*models.CommissionRate, error) {
	if err := r.db.WithContext(ctx).Create(rate).Error; err != nil {
		return nil, err
	}
	return rate, nil
}

func (r *repository) DeactivateRate(ctx context.Context, rateID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.CommissionRate{}).
		Where("id = ?", rateID).
		Update("is_active", false).Error
}

func (r *repository) ActiveRates(ctx context.Context) ([]models.CommissionRate, error) {
	var rates []models.CommissionRate
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Find(&rates).Error
	if err != nil {
		return nil, err
	}
	return rates, nil
}

func (r *repository) InsertAssignment(ctx context.Context, assignment *models.UserCommissionPlan) (*models.UserCommissionPlan, error) {
	if err := r.db.WithContext(ctx).Create(assignment).Error; err != nil {
		return nil, err
	}
	return assignment, nil
}

func (r *repository) ActiveAssignmentsByUser(ctx context.Context, userID uuid.UUID) ([]models.UserCommissionPlan, error) {
	var assignments []models.UserCommissionPlan
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("assigned_at ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *repository) UpdateAssignment(ctx context.Context, assignmentID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.UserCommissionPlan{}).
		Where("id = ?", assignmentID).
		Updates(updates).Error
}

func (r *repository) ActiveAssignments(ctx context.Context) ([]models.UserCommissionPlan, error) {
	var assignments []models.UserCommissionPlan
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *repository) FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("id = ?", userID).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}
