package graph

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
)

// Repository defines persistence operations for the distributor edge table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ActiveEdgeByDistributor(ctx context.Context, distributorID uuid.UUID) (*models.DistributorEdge, error)
	ActiveEdges(ctx context.Context) ([]models.DistributorEdge, error)
	ActiveEdgesByUplines(ctx context.Context, uplineIDs []uuid.UUID) ([]models.DistributorEdge, error)
	InsertEdge(ctx context.Context, edge *models.DistributorEdge) (*models.DistributorEdge, error)
	DeactivateEdge(ctx context.Context, edgeID uuid.UUID, detachedAt time.Time) error
	UpdateEdgeLevel(ctx context.Context, edgeID uuid.UUID, level int) error
	FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	HasRole(ctx context.Context, userID uuid.UUID, role enums.UserRole) (bool, error)
}
