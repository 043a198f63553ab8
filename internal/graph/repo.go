package graph

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an edge repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ActiveEdgeByDistributor(ctx context.Context, distributorID uuid.UUID) (*models.DistributorEdge, error) {
	var edge models.DistributorEdge
	err := r.db.WithContext(ctx).
		Where("distributor_id = ? AND is_active = ?", distributorID, true).
		First(&edge).Error
	if err != nil {
		return nil, err
	}
	return &edge, nil
}

func (r *repository) ActiveEdges(ctx context.Context) ([]models.DistributorEdge, error) {
	var edges []models.DistributorEdge
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at ASC").
		Find(&edges).Error
	if err != nil {
		return nil, err
	}
	return edges, nil
}

func (r *repository) ActiveEdgesByUplines(ctx context.Context, uplineIDs []uuid.UUID) ([]models.DistributorEdge, error) {
	if len(uplineIDs) == 0 {
		return nil, nil
	}
	var edges []models.DistributorEdge
	err := r.db.WithContext(ctx).
		Where("upline_id IN ? AND is_active = ?", uplineIDs, true).
		Find(&edges).Error
	if err != nil {
		return nil, err
	}
	return edges, nil
}

func (r *repository) InsertEdge(ctx context.Context, edge *models.DistributorEdge) (*models.DistributorEdge, error) {
	if err := r.db.WithContext(ctx).Create(edge).Error; err != nil {
		return nil, err
	}
	return edge, nil
}

func (r *repository) DeactivateEdge(ctx context.Context, edgeID uuid.UUID, detachedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.DistributorEdge{}).
		Where("id = ?", edgeID).
		Updates(map[string]any{
			"is_active":   false,
			"detached_at": detachedAt,
		}).Error
}

func (r *repository) UpdateEdgeLevel(ctx context.Context, edgeID uuid.UUID, level int) error {
	return r.db.WithContext(ctx).
		Model(&models.DistributorEdge{}).
		Where("id = ?", edgeID).
		Update("level", level).Error
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

func (r *repository) HasRole(ctx context.Context, userID uuid.UUID, role enums.UserRole) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.UserRoleAssignment{}).
		Where("user_id = ? AND role = ?", userID, role).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
