package plans

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/rafaelcoron/uplevel-backend/pkg/db"
	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
	pkgerrors "github.com/rafaelcoron/uplevel-backend/pkg/errors"
	"github.com/rafaelcoron/uplevel-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service resolves rates and manages the plan catalog.
type Service interface {
	ActiveRate(ctx context.Context, userID uuid.UUID, level int, asOf time.Time) (*RateView, error)
	CreatePlan(ctx context.Context, input CreatePlanInput) (*models.CommissionPlan, error)
	SetRate(ctx context.Context, input SetRateInput) (*models.CommissionRate, error)
	AssignPlan(ctx context.Context, input AssignPlanInput) (*models.UserCommissionPlan, error)
	DeactivatePlan(ctx context.Context, input DeactivatePlanInput) error
}

// CreatePlanInput names a new plan. Reusing a name mints the next version.
type CreatePlanInput struct {
	Name    string
	Tags    []string
	ActorID uuid.UUID
}

// SetRateInput prices one level inside a plan. The previous active row for
// the (plan, level) pair is retired in the same transaction.
type SetRateInput struct {
	PlanID           uuid.UUID
	Level            int
	Percentage       decimal.Decimal
	MinTradingVolume *decimal.Decimal
	MaxCommission    *decimal.Decimal
	ActorID          uuid.UUID
}

// AssignPlanInput grants a plan to a user for a window. A zero AssignedAt
// means now; a nil ExpiresAt leaves the assignment open-ended.
type AssignPlanInput struct {
	UserID     uuid.UUID
	PlanID     uuid.UUID
	AssignedAt time.Time
	ExpiresAt  *time.Time
	ActorID    uuid.UUID
}

// DeactivatePlanInput retires a plan.
type DeactivatePlanInput struct {
	PlanID  uuid.UUID
	ActorID uuid.UUID
}

// ServiceParams groups dependencies for the plan service.
type ServiceParams struct {
	Repo   Repository
	Tx     txRunner
	Logger *logger.Logger
}

type service struct {
	repo Repository
	tx   txRunner
	logg *logger.Logger

	// Same discipline as the graph snapshot: mu serializes mutations and
	// cold priming, readers load the pointer lock-free.
	mu   sync.Mutex
	snap atomic.Pointer[registrySnapshot]
}

// NewService builds a plan service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("plan repository required")
	}
	if params.Tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &service{
		repo: params.Repo,
		tx:   params.Tx,
		logg: params.Logger,
	}, nil
}

func (s *service) ActiveRate(ctx context.Context, userID uuid.UUID, level int, asOf time.Time) (*RateView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if level < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "level must not be negative")
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	view := snap.resolve(userID, level, asOf)
	if view == nil {
		return nil, pkgerrors.New(pkgerrors.CodeRateNotFound, "no active rate for user at level")
	}
	return view, nil
}

func (s *service) CreatePlan(ctx context.Context, input CreatePlanInput) (*models.CommissionPlan, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan name required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var created *models.CommissionPlan
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		version, err := repo.MaxPlanVersion(ctx, name)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve plan version")
		}

		plan := &models.CommissionPlan{
			ID:        uuid.New(),
			Name:      name,
			Version:   version + 1,
			IsActive:  true,
			Tags:      pq.StringArray(input.Tags),
			CreatedBy: input.ActorID,
		}
		if _, err := repo.CreatePlan(ctx, plan); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_commission_plans_name_version") {
				return pkgerrors.New(pkgerrors.CodeConflict, "plan version already taken, retry")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert plan")
		}
		created = plan
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.refreshSnapshot(ctx)
	return created, nil
}

func (s *service) SetRate(ctx context.Context, input SetRateInput) (*models.CommissionRate, error) {
	if input.PlanID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan id required")
	}
	if input.Level < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "level must not be negative")
	}
	if input.Percentage.IsNegative() || input.Percentage.GreaterThan(oneHundred) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "percentage must be between 0 and 100")
	}
	if input.MinTradingVolume != nil && input.MinTradingVolume.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum trading volume must not be negative")
	}
	if input.MaxCommission != nil && input.MaxCommission.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "maximum commission must not be negative")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var created *models.CommissionRate
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		plan, err := repo.FindPlan(ctx, input.PlanID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plan")
		}
		if !plan.IsActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "plan is retired")
		}

		prior, err := repo.ActiveRate(ctx, input.PlanID, input.Level)
		if err == nil {
			if err := repo.DeactivateRate(ctx, prior.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retire prior rate")
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load prior rate")
		}

		rate := &models.CommissionRate{
			ID:               uuid.New(),
			PlanID:           input.PlanID,
			DistributorLevel: input.Level,
			Percentage:       input.Percentage,
			MinTradingVolume: input.MinTradingVolume,
			MaxCommission:    input.MaxCommission,
			IsActive:         true,
			CreatedBy:        input.ActorID,
		}
		if _, err := repo.InsertRate(ctx, rate); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_commission_rates_active_plan_level") {
				return pkgerrors.New(pkgerrors.CodeConflict, "rate changed concurrently, retry")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert rate")
		}
		created = rate
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.refreshSnapshot(ctx)
	return created, nil
}

func (s *service) AssignPlan(ctx context.Context, input AssignPlanInput) (*models.UserCommissionPlan, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.PlanID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	assignedAt := input.AssignedAt
	if assignedAt.IsZero() {
		assignedAt = time.Now().UTC()
	}
	if input.ExpiresAt != nil && !input.ExpiresAt.After(assignedAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expiry must be after assignment start")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var created *models.UserCommissionPlan
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindUser(ctx, input.UserID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
		}

		plan, err := repo.FindPlan(ctx, input.PlanID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plan")
		}
		if !plan.IsActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "plan is retired")
		}

		existing, err := repo.ActiveAssignmentsByUser(ctx, input.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignments")
		}
		for _, assignment := range existing {
			if !windowsOverlap(assignment.AssignedAt, assignment.ExpiresAt, assignedAt, input.ExpiresAt) {
				continue
			}
			if assignment.AssignedAt.Before(assignedAt) {
				// Trim so historical lookups inside the old window still
				// resolve the old plan.
				err = repo.UpdateAssignment(ctx, assignment.ID, map[string]any{"expires_at": assignedAt})
			} else {
				err = repo.UpdateAssignment(ctx, assignment.ID, map[string]any{"is_active": false})
			}
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close overlapping assignment")
			}
		}

		assignment := &models.UserCommissionPlan{
			ID:         uuid.New(),
			UserID:     input.UserID,
			PlanID:     input.PlanID,
			AssignedAt: assignedAt,
			ExpiresAt:  input.ExpiresAt,
			IsActive:   true,
			AssignedBy: input.ActorID,
		}
		if _, err := repo.InsertAssignment(ctx, assignment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert assignment")
		}
		created = assignment
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.refreshSnapshot(ctx)
	return created, nil
}

func (s *service) DeactivatePlan(ctx context.Context, input DeactivatePlanInput) error {
	if input.PlanID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "plan id required")
	}
	if input.ActorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		plan, err := repo.FindPlan(ctx, input.PlanID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plan")
		}
		if !plan.IsActive {
			return nil
		}
		if err := repo.UpdatePlan(ctx, input.PlanID, map[string]any{"is_active": false}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retire plan")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.refreshSnapshot(ctx)
	return nil
}

func windowsOverlap(aStart time.Time, aEnd *time.Time, bStart time.Time, bEnd *time.Time) bool {
	if aEnd != nil && !bStart.Before(*aEnd) {
		return false
	}
	if bEnd != nil && !aStart.Before(*bEnd) {
		return false
	}
	return true
}

func (s *service) loadSnapshot(ctx context.Context) (*registrySnapshot, error) {
	if snap := s.snap.Load(); snap != nil {
		return snap, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap := s.snap.Load(); snap != nil {
		return snap, nil
	}
	snap, err := s.buildSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	s.snap.Store(snap)
	return snap, nil
}

// refreshSnapshot rebuilds the registry view after a committed mutation.
// Caller holds s.mu. A failed rebuild clears the snapshot so the next read
// primes from the store.
func (s *service) refreshSnapshot(ctx context.Context) {
	snap, err := s.buildSnapshot(ctx)
	if err != nil {
		s.snap.Store(nil)
		s.logg.Error(ctx, "rate snapshot rebuild failed, cache invalidated", err)
		return
	}
	s.snap.Store(snap)
}

func (s *service) buildSnapshot(ctx context.Context) (*registrySnapshot, error) {
	plansList, err := s.repo.ActivePlans(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active plans")
	}
	rates, err := s.repo.ActiveRates(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active rates")
	}
	assignments, err := s.repo.ActiveAssignments(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active assignments")
	}
	return buildRegistrySnapshot(plansList, rates, assignments), nil
}
