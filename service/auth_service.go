package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ggurbet/onchainsurveys/core"
	"github.com/ggurbet/onchainsurveys/ports"
)

// ErrInvalidEmail is returned when a first registration does not carry a usable address
var ErrInvalidEmail = errors.New("a valid email is required for first registration")

// AuthService handles authentication business logic on the server
type AuthService struct {
	tokenizer ports.Tokenizer
	store     ports.Store
	users     ports.UserStore
	eventPub  ports.EventPublisher
	keys      ports.KeyResolver
	verifier  ports.SignatureVerifier
	logger    *slog.Logger
	now       func() time.Time

	tokenTTL         time.Duration
	requireSignature bool
}

// AuthServiceOption configures an AuthService
type AuthServiceOption func(*AuthService)

// WithTokenTTL sets the lifetime of issued session tokens
func WithTokenTTL(ttl time.Duration) AuthServiceOption {
	return func(s *AuthService) { s.tokenTTL = ttl }
}

// WithSignatureVerification checks register signatures. When required, a register
// call without a signature is rejected; otherwise only provided signatures are checked.
// Without this option the key resolver verifies if it implements ports.SignatureVerifier.
func WithSignatureVerification(verifier ports.SignatureVerifier, required bool) AuthServiceOption {
	return func(s *AuthService) {
		s.verifier = verifier
		s.requireSignature = required
	}
}

// WithLogger sets the service logger
func WithLogger(logger *slog.Logger) AuthServiceOption {
	return func(s *AuthService) { s.logger = logger }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) AuthServiceOption {
	return func(s *AuthService) { s.now = now }
}

// NewAuthService creates a new authentication service
func NewAuthService(
	tokenizer ports.Tokenizer,
	store ports.Store,
	users ports.UserStore,
	eventPub ports.EventPublisher,
	keys ports.KeyResolver,
	opts ...AuthServiceOption,
) *AuthService {
	s := &AuthService{
		tokenizer: tokenizer,
		store:     store,
		users:     users,
		eventPub:  eventPub,
		keys:      keys,
		logger:    slog.Default(),
		now:       time.Now,
		tokenTTL:  24 * time.Hour,
	}
	// Provided signatures are checked by default when the resolver can verify them.
	if verifier, ok := keys.(ports.SignatureVerifier); ok {
		s.verifier = verifier
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "auth_service"))
	return s
}

// Register resolves the identity behind publicKey, creating it on first sight, and issues
// a session token. message is the signed challenge: an email for first registrations,
// a timestamped challenge for returning users.
func (s *AuthService) Register(ctx context.Context, publicKey, message string, signature []byte) (*core.RegistrationResult, error) {
	canonical, accountHash, err := s.keys.Resolve(publicKey)
	if err != nil {
		return nil, err
	}

	if len(signature) > 0 || s.requireSignature {
		if s.verifier == nil || !s.verifier.Verify(canonical, message, signature) {
			s.logger.Warn("register signature rejected", slog.String("key", core.ShortKey(canonical)))
			return nil, core.ErrSignatureInvalid
		}
	}

	user, err := s.users.FindByPublicKey(ctx, canonical)
	created := false
	switch {
	case errors.Is(err, core.ErrUserNotFound):
		email, err := firstRegistrationEmail(message)
		if err != nil {
			return nil, err
		}
		user, created, err = s.users.Register(ctx, &core.User{
			ID:          uuid.NewString(),
			PublicKey:   canonical,
			AccountHash: accountHash,
			Email:       email,
			CreatedAt:   s.now().UTC(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to register user: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}

	log := s.logger.With(slog.String("user_id", user.ID), slog.String("key", core.ShortKey(canonical)))
	if created {
		log.Info("user registered")
		if err := s.eventPub.PublishRegistered(ctx, user); err != nil {
			log.Warn("failed to publish registration event", slog.Any("error", err))
		}
	} else {
		log.Info("known user authenticated")
		if err := s.eventPub.PublishLogin(ctx, user.ID, user.PublicKey); err != nil {
			log.Warn("failed to publish login event", slog.Any("error", err))
		}
	}

	return &core.RegistrationResult{
		Success:           true,
		UserID:            user.ID,
		Token:             token,
		AlreadyRegistered: !created,
	}, nil
}

func firstRegistrationEmail(message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" || core.IsReturningChallenge(message) {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(message)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEmail, err)
	}
	return addr.Address, nil
}

// Login issues a session token for a previously registered key
func (s *AuthService) Login(ctx context.Context, publicKey string) (*core.LoginResult, error) {
	canonical, _, err := s.keys.Resolve(publicKey)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByPublicKey(ctx, canonical)
	if err != nil {
		return nil, err
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}

	if err := s.eventPub.PublishLogin(ctx, user.ID, user.PublicKey); err != nil {
		s.logger.Warn("failed to publish login event", slog.Any("error", err))
	}

	return &core.LoginResult{
		Success:           true,
		UserID:            user.ID,
		Token:             token,
		AlreadyRegistered: true,
	}, nil
}

func (s *AuthService) issueToken(user *core.User) (string, error) {
	now := s.now()
	token, err := s.tokenizer.ClaimsToToken(&core.AuthClaims{
		TokenID:   uuid.NewString(),
		UserID:    user.ID,
		PublicKey: user.PublicKey,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.tokenTTL),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create token: %w", err)
	}
	return token, nil
}

// Logout invalidates a session token
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.tokenizer.TokenToClaims(token)
	if err != nil {
		return err
	}

	remaining := claims.ExpiresAt.Sub(s.now())
	if remaining < time.Minute {
		remaining = time.Minute
	}

	if err := s.store.InvalidateToken(ctx, claims.TokenID, remaining); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	// The token is already invalidated in the store; the event only fans out
	if err := s.eventPub.PublishLogout(ctx, claims.UserID, claims.TokenID); err != nil {
		s.logger.Warn("failed to publish logout event", slog.Any("error", err))
	}

	s.logger.Info("user logged out", slog.String("user_id", claims.UserID))
	return nil
}

// ValidateAccessToken parses token and checks it has not been revoked
func (s *AuthService) ValidateAccessToken(ctx context.Context, token string) (*core.AuthClaims, error) {
	claims, err := s.tokenizer.TokenToClaims(token)
	if err != nil {
		return nil, err
	}

	if s.now().After(claims.ExpiresAt) {
		return nil, core.ErrTokenExpired
	}

	invalidated, err := s.store.IsTokenInvalidated(ctx, claims.TokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token invalidation: %w", err)
	}
	if invalidated {
		return nil, core.ErrTokenInvalidated
	}

	return claims, nil
}
