package organization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	dErrors "reliefpool/pkg/domain-errors"
	"reliefpool/pkg/domain"
	"reliefpool/pkg/platform/sentinel"
	"reliefpool/pkg/requestcontext"
)

// Service manages the org registry and the org-dashboard session tokens.
type Service struct {
	store      Store
	signingKey []byte
	tokenTTL   time.Duration
	logger     *slog.Logger
}

func NewService(store Store, signingKey string, tokenTTL time.Duration, logger *slog.Logger) *Service {
	return &Service{store: store, signingKey: []byte(signingKey), tokenTTL: tokenTTL, logger: logger}
}

// EnsureSeeded creates any seed organizations that do not exist yet, hashing
// their dashboard passwords. Existing orgs are left untouched.
func (s *Service) EnsureSeeded(ctx context.Context, seeds []SeedOrg) error {
	for _, seed := range seeds {
		_, err := s.store.GetByName(ctx, seed.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return fmt.Errorf("check organization %q: %w", seed.Name, err)
		}

		var hash string
		if seed.Password != "" {
			raw, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash password for %q: %w", seed.Name, err)
			}
			hash = string(raw)
		}

		org, err := s.store.Create(ctx, Organization{
			Name:          seed.Name,
			CauseType:     seed.CauseType,
			WalletAddress: seed.WalletAddress,
			NeedScore:     seed.NeedScore,
			PasswordHash:  hash,
			CreatedAt:     time.Now().UTC(),
		})
		if errors.Is(err, sentinel.ErrConflict) {
			// Raced with another instance seeding the same org.
			continue
		}
		if err != nil {
			return fmt.Errorf("seed organization %q: %w", seed.Name, err)
		}
		s.logger.InfoContext(ctx, "organization seeded", "org_id", int64(org.ID), "name", org.Name, "cause", org.CauseType)
	}
	return nil
}

// List returns all registered organizations.
func (s *Service) List(ctx context.Context) ([]Organization, error) {
	orgs, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list organizations")
	}
	return orgs, nil
}

// Login verifies dashboard credentials and issues a session token. Failures
// are indistinguishable between unknown org and wrong password.
func (s *Service) Login(ctx context.Context, name, password string) (string, Organization, error) {
	org, err := s.store.GetByName(ctx, name)
	if errors.Is(err, sentinel.ErrNotFound) {
		return "", Organization{}, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if err != nil {
		return "", Organization{}, dErrors.Wrap(err, dErrors.CodeInternal, "load organization")
	}
	if org.PasswordHash == "" {
		return "", Organization{}, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(org.PasswordHash), []byte(password)); err != nil {
		return "", Organization{}, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   fmt.Sprintf("%d", org.ID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", Organization{}, dErrors.Wrap(err, dErrors.CodeInternal, "sign session token")
	}

	s.logger.InfoContext(ctx, "organization logged in", "org_id", int64(org.ID), "name", org.Name)
	return token, org, nil
}

// Verify parses and validates a session token, returning the org ID.
func (s *Service) Verify(tokenString string) (domain.OrgID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil || !token.Valid {
		return 0, dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return 0, dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}
	var id int64
	if _, err := fmt.Sscanf(claims.Subject, "%d", &id); err != nil || id <= 0 {
		return 0, dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}
	return domain.OrgID(id), nil
}

// Current returns the org for the authenticated request context.
func (s *Service) Current(ctx context.Context) (Organization, error) {
	id := domain.OrgID(requestcontext.OrgID(ctx))
	if id.IsNil() {
		return Organization{}, dErrors.New(dErrors.CodeUnauthorized, "not authenticated")
	}
	org, err := s.store.GetByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Organization{}, dErrors.New(dErrors.CodeUnauthorized, "organization no longer exists")
	}
	if err != nil {
		return Organization{}, dErrors.Wrap(err, dErrors.CodeInternal, "load organization")
	}
	return org, nil
}
