// Package service contains application services for authentication, the book
// catalog and the exchange workflow.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/and161185/bookswap/internal/crypto"
	"github.com/and161185/bookswap/internal/errs"
	"github.com/and161185/bookswap/internal/limiter"
	"github.com/and161185/bookswap/internal/model"
	"github.com/and161185/bookswap/internal/repository"
)

// AuthService defines registration, login and session operations.
type AuthService interface {
	// Register creates a new user with a bcrypt password hash.
	Register(ctx context.Context, email, password, name string) (*model.User, error)
	// Login applies rate-limiting, checks credentials and issues a session token.
	Login(ctx context.Context, email, password, ip string) (model.Session, model.User, error)
	// ParseSession verifies a session token and returns its claim.
	ParseSession(token string) (model.Claim, error)
	// Info returns a user by id.
	Info(ctx context.Context, userID uuid.UUID) (*model.User, error)
}

type AuthServiceImpl struct {
	users      repository.UserRepository
	signKey    []byte
	sessionTTL time.Duration
	lim        limiter.Limiter
	log        *zap.Logger
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, signKey []byte, sessionTTL time.Duration, lim limiter.Limiter, log *zap.Logger) *AuthServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthServiceImpl{users: users, signKey: signKey, sessionTTL: sessionTTL, lim: lim, log: log}
}

// sessionClaims is the JWT body: the public claim plus registered timestamps.
type sessionClaims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// Register creates a new user record. Emails are unique.
func (s *AuthServiceImpl) Register(ctx context.Context, email, password, name string) (*model.User, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if email == "" || password == "" || name == "" {
		return nil, fmt.Errorf("empty email/password/name: %w", errs.ErrValidation)
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	hash, err := pkgcrypto.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		ID:       uid,
		Username: name,
		Email:    email,
		PwdHash:  hash,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			return nil, fmt.Errorf("email %q: %w", email, err)
		}
		return nil, err
	}
	return u, nil
}

// Login authenticates with rate limiting by (email, ip).
// Unknown emails fail with ErrNotFound, wrong passwords with ErrUnauthorized.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password, ip string) (model.Session, model.User, error) {
	ipHash := limiter.HashIP(ip)

	allowed, retry, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return model.Session{}, model.User{}, err
	}
	if !allowed {
		s.log.Info("login locked", zap.Duration("retry_after", retry))
		return model.Session{}, model.User{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Session{}, model.User{}, err
	}
	if err != nil || !pkgcrypto.VerifyPassword(u.PwdHash, password) {
		blocked, _, ferr := s.lim.Failure(ctx, email, ipHash)
		if ferr != nil {
			s.log.Warn("limiter failure not recorded", zap.Error(ferr))
		}
		if blocked {
			return model.Session{}, model.User{}, errs.ErrRateLimited
		}
		if err != nil {
			return model.Session{}, model.User{}, fmt.Errorf("user: %w", errs.ErrNotFound)
		}
		return model.Session{}, model.User{}, fmt.Errorf("wrong credentials: %w", errs.ErrUnauthorized)
	}

	if err := s.lim.Success(ctx, email, ipHash); err != nil {
		s.log.Warn("limiter reset failed", zap.Error(err))
	}

	sess, err := s.issueSession(*u)
	if err != nil {
		return model.Session{}, model.User{}, err
	}
	u.PwdHash = ""
	return sess, *u, nil
}

// issueSession creates a signed HS256 JWT carrying the user's claim.
func (s *AuthServiceImpl) issueSession(u model.User) (model.Session, error) {
	now := time.Now()
	exp := now.Add(s.sessionTTL)
	claims := sessionClaims{
		ID:    u.ID.String(),
		Email: u.Email,
		Name:  u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	if err != nil {
		return model.Session{}, err
	}
	return model.Session{Token: signed, ExpiresAt: exp}, nil
}

// ParseSession verifies signature (HS256 only) and expiry.
func (s *AuthServiceImpl) ParseSession(token string) (model.Claim, error) {
	if token == "" {
		return model.Claim{}, fmt.Errorf("no session: %w", errs.ErrUnauthorized)
	}
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.signKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return model.Claim{}, fmt.Errorf("%v: %w", err, errs.ErrUnauthorized)
	}
	id, err := uuid.FromString(claims.ID)
	if err != nil {
		return model.Claim{}, fmt.Errorf("bad subject: %w", errs.ErrUnauthorized)
	}
	return model.Claim{ID: id, Email: claims.Email, Name: claims.Name}, nil
}

// Info returns the user without its password hash.
func (s *AuthServiceImpl) Info(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.PwdHash = ""
	return u, nil
}
