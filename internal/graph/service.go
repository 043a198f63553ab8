package graph

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/rafaelcoron/uplevel-backend/pkg/db"
	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
	pkgerrors "github.com/rafaelcoron/uplevel-backend/pkg/errors"
	"github.com/rafaelcoron/uplevel-backend/pkg/logger"
	"github.com/rafaelcoron/uplevel-backend/pkg/outbox"
	"github.com/rafaelcoron/uplevel-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service answers upline-chain queries and manages edge placement.
type Service interface {
	UplineChain(ctx context.Context, userID uuid.UUID, maxDepth int) ([]UplineEntry, error)
	Attach(ctx context.Context, input AttachInput) (*models.DistributorEdge, error)
	Detach(ctx context.Context, input DetachInput) error
}

// AttachInput places a distributor under an upline. A nil UplineID attaches
// a master distributor at level zero.
type AttachInput struct {
	DistributorID uuid.UUID
	UplineID      *uuid.UUID
	ActorID       uuid.UUID
	ActorRole     string
}

// DetachInput deactivates a distributor's active edge.
type DetachInput struct {
	DistributorID uuid.UUID
	ActorID       uuid.UUID
	ActorRole     string
}

// ServiceParams groups dependencies for the graph service.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Outbox   outboxPublisher
	Logger   *logger.Logger
	MaxDepth int
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	logg     *logger.Logger
	maxDepth int

	// mu serializes mutations and cold-cache priming so a rebuilt snapshot
	// can never be overwritten by one built from older store state. Readers
	// stay lock-free on the atomic pointer.
	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
}

// NewService builds a graph service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("graph repository required")
	}
	if params.Tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.MaxDepth <= 0 {
		return nil, errors.New("max depth must be positive")
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		outbox:   params.Outbox,
		logg:     params.Logger,
		maxDepth: params.MaxDepth,
	}, nil
}

func (s *service) UplineChain(ctx context.Context, userID uuid.UUID, maxDepth int) ([]UplineEntry, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if maxDepth <= 0 || maxDepth > s.maxDepth {
		maxDepth = s.maxDepth
	}
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.chain(userID, maxDepth), nil
}

func (s *service) Attach(ctx context.Context, input AttachInput) (*models.DistributorEdge, error) {
	if input.DistributorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "distributor id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if input.UplineID != nil && *input.UplineID == input.DistributorID {
		return nil, pkgerrors.New(pkgerrors.CodeCycleDetected, "distributor cannot be its own upline")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var created *models.DistributorEdge
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindUser(ctx, input.DistributorID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "distributor not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load distributor")
		}

		if _, err := repo.ActiveEdgeByDistributor(ctx, input.DistributorID); err == nil {
			return pkgerrors.New(pkgerrors.CodeAlreadyAttached, "distributor already has an active upline")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active edge")
		}

		level := 0
		if input.UplineID != nil {
			uplineEdge, err := s.resolveUpline(ctx, repo, input.DistributorID, *input.UplineID)
			if err != nil {
				return err
			}
			level = uplineEdge.Level + 1
		} else {
			// Root placement is reserved for users holding the master
			// distributor role grant.
			eligible, err := repo.HasRole(ctx, input.DistributorID, enums.RoleMasterDistributor)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check master role")
			}
			if !eligible {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "root attachment requires the master distributor role")
			}
		}

		edge := &models.DistributorEdge{
			ID:            uuid.New(),
			DistributorID: input.DistributorID,
			UplineID:      input.UplineID,
			Level:         level,
			IsActive:      true,
			AttachedBy:    &input.ActorID,
		}
		if _, err := repo.InsertEdge(ctx, edge); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_distributor_edges_active_distributor") {
				return pkgerrors.New(pkgerrors.CodeAlreadyAttached, "distributor already has an active upline")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert edge")
		}

		if err := s.relevelDownline(ctx, repo, input.DistributorID, level); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventDistributorAttached,
			AggregateType: enums.AggregateDistributorEdge,
			AggregateID:   edge.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorID, Role: input.ActorRole},
			Data: payloads.DistributorAttachedEvent{
				EdgeID:        edge.ID,
				DistributorID: edge.DistributorID,
				UplineID:      edge.UplineID,
				Level:         edge.Level,
				AttachedBy:    edge.AttachedBy,
			},
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
			return err
		}

		created = edge
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.refreshSnapshot(ctx)
	return created, nil
}

func (s *service) Detach(ctx context.Context, input DetachInput) error {
	if input.DistributorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "distributor id required")
	}
	if input.ActorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		edge, err := repo.ActiveEdgeByDistributor(ctx, input.DistributorID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "distributor has no active upline")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active edge")
		}

		detachedAt := time.Now().UTC()
		if err := repo.DeactivateEdge(ctx, edge.ID, detachedAt); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate edge")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventDistributorDetached,
			AggregateType: enums.AggregateDistributorEdge,
			AggregateID:   edge.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorID, Role: input.ActorRole},
			Data: payloads.DistributorDetachedEvent{
				EdgeID:        edge.ID,
				DistributorID: edge.DistributorID,
				UplineID:      edge.UplineID,
				Level:         edge.Level,
				DetachedAt:    detachedAt,
			},
		}
		return s.outbox.EmitIfNotExists(ctx, tx, event)
	})
	if err != nil {
		return err
	}

	s.refreshSnapshot(ctx)
	return nil
}

// resolveUpline validates the upline's placement and rejects attachments
// that would close a cycle. The walk reads the store, not the snapshot, so
// the decision is made against committed truth inside the transaction.
func (s *service) resolveUpline(ctx context.Context, repo Repository, distributorID, uplineID uuid.UUID) (*models.DistributorEdge, error) {
	if _, err := repo.FindUser(ctx, uplineID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "upline not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load upline")
	}

	uplineEdge, err := repo.ActiveEdgeByDistributor(ctx, uplineID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "upline is not placed in the network")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load upline edge")
	}

	seen := map[uuid.UUID]struct{}{uplineID: {}}
	current := uplineEdge
	for current.UplineID != nil {
		ancestorID := *current.UplineID
		if ancestorID == distributorID {
			return nil, pkgerrors.New(pkgerrors.CodeCycleDetected, "attachment would create a cycle")
		}
		if _, dup := seen[ancestorID]; dup {
			break
		}
		seen[ancestorID] = struct{}{}

		ancestor, err := repo.ActiveEdgeByDistributor(ctx, ancestorID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "walk upline chain")
		}
		current = ancestor
	}
	return uplineEdge, nil
}

// relevelDownline walks the distributor's active downline breadth-first and
// rewrites any level that no longer equals its parent's level plus one.
func (s *service) relevelDownline(ctx context.Context, repo Repository, distributorID uuid.UUID, level int) error {
	levels := map[uuid.UUID]int{distributorID: level}
	seen := map[uuid.UUID]struct{}{distributorID: {}}
	frontier := []uuid.UUID{distributorID}

	for len(frontier) > 0 {
		edges, err := repo.ActiveEdgesByUplines(ctx, frontier)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load downline edges")
		}
		next := make([]uuid.UUID, 0, len(edges))
		for _, edge := range edges {
			if edge.UplineID == nil {
				continue
			}
			if _, dup := seen[edge.DistributorID]; dup {
				continue
			}
			want := levels[*edge.UplineID] + 1
			if edge.Level != want {
				if err := repo.UpdateEdgeLevel(ctx, edge.ID, want); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "relevel downline edge")
				}
			}
			levels[edge.DistributorID] = want
			seen[edge.DistributorID] = struct{}{}
			next = append(next, edge.DistributorID)
		}
		frontier = next
	}
	return nil
}

func (s *service) loadSnapshot(ctx context.Context) (*snapshot, error) {
	if snap := s.snap.Load(); snap != nil {
		return snap, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap := s.snap.Load(); snap != nil {
		return snap, nil
	}
	edges, err := s.repo.ActiveEdges(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active edges")
	}
	snap := buildSnapshot(edges)
	s.snap.Store(snap)
	return snap, nil
}

// refreshSnapshot rebuilds the adjacency view after a committed mutation.
// Caller holds s.mu. A failed rebuild clears the snapshot instead so the
// next read primes from the store rather than serving a stale view.
func (s *service) refreshSnapshot(ctx context.Context) {
	edges, err := s.repo.ActiveEdges(ctx)
	if err != nil {
		s.snap.Store(nil)
		s.logg.Error(ctx, "graph snapshot rebuild failed, cache invalidated", err)
		return
	}
	s.snap.Store(buildSnapshot(edges))
}
