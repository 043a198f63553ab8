package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/rafaelcoron/uplevel-backend/pkg/config"
	dbpkg "github.com/rafaelcoron/uplevel-backend/pkg/db"
	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
	pkgerrors "github.com/rafaelcoron/uplevel-backend/pkg/errors"
	"github.com/rafaelcoron/uplevel-backend/pkg/logger"
	"github.com/rafaelcoron/uplevel-backend/pkg/security"
)

const invalidCredentialMessage = "invalid credential"

// Service issues and verifies the machine credentials that guard the
// revenue-event intake.
type Service interface {
	Issue(ctx context.Context, params IssueParams) (*IssuedCredential, error)
	Verify(ctx context.Context, token string, scope enums.CredentialScope) (*models.ServiceCredential, error)
}

type credentialStore interface {
	Create(ctx context.Context, credential *models.ServiceCredential) error
	FindByKeyID(ctx context.Context, keyID string) (*models.ServiceCredential, error)
	TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error
}

// IssueParams describes the credential to mint.
type IssueParams struct {
	Name    string
	Scopes  []string
	ActorID uuid.UUID
}

// IssuedCredential carries the one-time bearer token next to the stored row.
// The secret half of Token is never recoverable after this response.
type IssuedCredential struct {
	Credential *models.ServiceCredential `json:"credential"`
	Token      string                    `json:"token"`
}

type service struct {
	store  credentialStore
	apiCfg config.APIKeyConfig
	logg   *logger.Logger
}

// ServiceParams bundles the dependencies required to build a credentials service.
type ServiceParams struct {
	Store     credentialStore
	APIKeyCfg config.APIKeyConfig
	Logger    *logger.Logger
}

// NewService constructs a credentials service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, errors.New("credential store is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &service{
		store:  params.Store,
		apiCfg: params.APIKeyCfg,
		logg:   params.Logger,
	}, nil
}

func (s *service) Issue(ctx context.Context, params IssueParams) (*IssuedCredential, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credential name required")
	}
	if params.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}
	if len(params.Scopes) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one scope required")
	}
	scopes := make(pq.StringArray, 0, len(params.Scopes))
	seen := make(map[enums.CredentialScope]bool, len(params.Scopes))
	for _, raw := range params.Scopes {
		scope, err := enums.ParseCredentialScope(strings.TrimSpace(raw))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid scope")
		}
		if seen[scope] {
			continue
		}
		seen[scope] = true
		scopes = append(scopes, scope.String())
	}

	keyID, secret, err := security.GenerateCredential()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate credential")
	}
	hash, err := security.HashSecret(secret, s.apiCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash secret")
	}

	credential := &models.ServiceCredential{
		ID:         uuid.New(),
		Name:       name,
		KeyID:      keyID,
		SecretHash: hash,
		Scopes:     scopes,
		IsActive:   true,
		CreatedBy:  params.ActorID,
	}
	if err := s.store.Create(ctx, credential); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_service_credentials_name") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "credential name already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store credential")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"credential_id": credential.ID.String(),
		"key_id":        keyID,
		"scopes":        []string(scopes),
	})
	s.logg.Info(logCtx, "service credential issued")

	return &IssuedCredential{
		Credential: credential,
		Token:      security.BuildToken(keyID, secret),
	}, nil
}

func (s *service) Verify(ctx context.Context, token string, scope enums.CredentialScope) (*models.ServiceCredential, error) {
	keyID, secret, err := security.SplitToken(strings.TrimSpace(token))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialMessage)
	}

	credential, err := s.store.FindByKeyID(ctx, keyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup credential")
	}

	valid, err := security.VerifySecret(secret, credential.SecretHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify secret")
	}
	if !valid || !credential.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialMessage)
	}

	if scope != "" && !hasScope(credential.Scopes, scope) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("credential lacks scope %s", scope))
	}

	// Usage stamps are best effort.
	now := time.Now().UTC()
	if err := s.store.TouchLastUsed(ctx, credential.ID, now); err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"key_id": keyID}), "failed to record credential use")
	} else {
		credential.LastUsedAt = &now
	}
	return credential, nil
}

func hasScope(scopes pq.StringArray, scope enums.CredentialScope) bool {
	for _, candidate := range scopes {
		if candidate == scope.String() {
			return true
		}
	}
	return false
}
