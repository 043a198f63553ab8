package credentials

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rafaelcoron/uplevel-backend/pkg/config"
	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
	pkgerrors "github.com/rafaelcoron/uplevel-backend/pkg/errors"
	"github.com/rafaelcoron/uplevel-backend/pkg/logger"
	"github.com/rafaelcoron/uplevel-backend/pkg/security"
)

type stubCredentialStore struct {
	byKey    map[string]models.ServiceCredential
	names    map[string]bool
	created  int
	touches  int
	touchErr error
}

func newStubCredentialStore() *stubCredentialStore {
	return &stubCredentialStore{
		byKey: make(map[string]models.ServiceCredential),
		names: make(map[string]bool),
	}
}

func (s *stubCredentialStore) Create(_ context.Context, credential *models.ServiceCredential) error {
	if s.names[credential.Name] {
		return errors.New(`duplicate key value violates unique constraint "ux_service_credentials_name"`)
	}
	s.names[credential.Name] = true
	s.byKey[credential.KeyID] = *credential
	s.created++
	return nil
}

func (s *stubCredentialStore) FindByKeyID(_ context.Context, keyID string) (*models.ServiceCredential, error) {
	credential, ok := s.byKey[keyID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := credential
	return &cp, nil
}

func (s *stubCredentialStore) TouchLastUsed(_ context.Context, id uuid.UUID, at time.Time) error {
	if s.touchErr != nil {
		return s.touchErr
	}
	s.touches++
	for key, credential := range s.byKey {
		if credential.ID == id {
			credential.LastUsedAt = &at
			s.byKey[key] = credential
		}
	}
	return nil
}

func (s *stubCredentialStore) deactivate(keyID string) {
	credential := s.byKey[keyID]
	credential.IsActive = false
	s.byKey[keyID] = credential
}

func newCredentialsService(t *testing.T, store *stubCredentialStore) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Store:     store,
		APIKeyCfg: config.APIKeyConfig{},
		Logger:    logger.New(logger.Options{ServiceName: "credentials-test"}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func issueCredential(t *testing.T, svc Service, scopes ...string) *IssuedCredential {
	t.Helper()
	issued, err := svc.Issue(context.Background(), IssueParams{
		Name:    "intake-" + uuid.NewString(),
		Scopes:  scopes,
		ActorID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return issued
}

func TestIssueMintsOneTimeToken(t *testing.T) {
	store := newStubCredentialStore()
	svc := newCredentialsService(t, store)

	issued, err := svc.Issue(context.Background(), IssueParams{
		Name:    "  billing-intake  ",
		Scopes:  []string{"events:write", "events:write", "recon:read"},
		ActorID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	keyID, secret, err := security.SplitToken(issued.Token)
	if err != nil {
		t.Fatalf("token does not split: %v", err)
	}
	if !strings.HasPrefix(keyID, "ulk_") {
		t.Fatalf("key id %q lacks prefix", keyID)
	}
	if issued.Credential.Name != "billing-intake" {
		t.Fatalf("expected trimmed name, got %q", issued.Credential.Name)
	}
	if got := []string(issued.Credential.Scopes); len(got) != 2 || got[0] != "events:write" || got[1] != "recon:read" {
		t.Fatalf("expected deduplicated scopes, got %v", got)
	}

	stored, ok := store.byKey[keyID]
	if !ok {
		t.Fatal("credential was not stored")
	}
	if !strings.HasPrefix(stored.SecretHash, "$argon2id$") {
		t.Fatalf("stored hash %q is not argon2id", stored.SecretHash)
	}
	if strings.Contains(stored.SecretHash, secret) {
		t.Fatal("secret must never be stored in the clear")
	}
	match, err := security.VerifySecret(secret, stored.SecretHash)
	if err != nil || !match {
		t.Fatalf("secret does not verify against stored hash: %v", err)
	}
}

func TestIssueValidatesInput(t *testing.T) {
	store := newStubCredentialStore()
	svc := newCredentialsService(t, store)

	cases := map[string]IssueParams{
		"empty name":    {Name: "  ", Scopes: []string{"events:write"}, ActorID: uuid.New()},
		"missing actor": {Name: "intake", Scopes: []string{"events:write"}},
		"no scopes":     {Name: "intake", ActorID: uuid.New()},
		"unknown scope": {Name: "intake", Scopes: []string{"mail:send"}, ActorID: uuid.New()},
	}
	for name, params := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Issue(context.Background(), params); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if store.created != 0 {
		t.Fatalf("invalid requests must not reach the store, got %d creates", store.created)
	}
}

func TestIssueRejectsDuplicateName(t *testing.T) {
	store := newStubCredentialStore()
	store.names["billing-intake"] = true
	svc := newCredentialsService(t, store)

	_, err := svc.Issue(context.Background(), IssueParams{
		Name:    "billing-intake",
		Scopes:  []string{"events:write"},
		ActorID: uuid.New(),
	})
	if !pkgerrors.Is(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestVerifyAcceptsIssuedToken(t *testing.T) {
	store := newStubCredentialStore()
	svc := newCredentialsService(t, store)
	issued := issueCredential(t, svc, "events:write")

	credential, err := svc.Verify(context.Background(), issued.Token, enums.ScopeEventsWrite)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if credential.ID != issued.Credential.ID {
		t.Fatalf("verified wrong credential %s", credential.ID)
	}
	if credential.LastUsedAt == nil {
		t.Fatal("expected last used stamp")
	}
	if store.touches != 1 {
		t.Fatalf("expected 1 usage stamp, got %d", store.touches)
	}

	if _, err := svc.Verify(context.Background(), issued.Token, ""); err != nil {
		t.Fatalf("verify without scope requirement: %v", err)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	store := newStubCredentialStore()
	svc := newCredentialsService(t, store)
	issued := issueCredential(t, svc, "events:write")
	keyID, _, err := security.SplitToken(issued.Token)
	if err != nil {
		t.Fatalf("split token: %v", err)
	}

	cases := map[string]string{
		"malformed":    "no-separator",
		"unknown key":  "ulk_unknown000.secretsecret",
		"wrong secret": keyID + ".wrongsecretwrongsecret",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Verify(context.Background(), token, ""); !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
				t.Fatalf("expected unauthorized, got %v", err)
			}
		})
	}

	store.deactivate(keyID)
	if _, err := svc.Verify(context.Background(), issued.Token, ""); !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for revoked credential, got %v", err)
	}
	if store.touches != 0 {
		t.Fatalf("rejected tokens must not stamp usage, got %d", store.touches)
	}
}

func TestVerifyEnforcesScope(t *testing.T) {
	store := newStubCredentialStore()
	svc := newCredentialsService(t, store)
	issued := issueCredential(t, svc, "recon:read")

	if _, err := svc.Verify(context.Background(), issued.Token, enums.ScopeEventsWrite); !pkgerrors.Is(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.Verify(context.Background(), issued.Token, enums.ScopeReconRead); err != nil {
		t.Fatalf("verify with granted scope: %v", err)
	}
}

func TestVerifySurvivesUsageStampFailure(t *testing.T) {
	store := newStubCredentialStore()
	svc := newCredentialsService(t, store)
	issued := issueCredential(t, svc, "events:write")
	store.touchErr = errors.New("disk full")

	credential, err := svc.Verify(context.Background(), issued.Token, enums.ScopeEventsWrite)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if credential.LastUsedAt != nil {
		t.Fatal("stamp failed, so the in-memory view must not claim one")
	}
}
