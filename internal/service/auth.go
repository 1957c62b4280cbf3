package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"flowchart/internal/domain"
	"flowchart/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned for unknown users or wrong passwords
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned for bearer tokens that fail verification
	ErrInvalidToken = errors.New("invalid token")
)

// tokenIssuer is the iss claim of store tokens
const tokenIssuer = "flowchart-store"

// AuthService issues and verifies store login tokens
type AuthService struct {
	repo   repository.Repository
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewAuthService creates an auth service signing tokens with secret
func NewAuthService(repo repository.Repository, secret string, ttl time.Duration) *AuthService {
	return &AuthService{
		repo:   repo,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Register creates a user or resets its password
func (s *AuthService) Register(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.repo.UpsertUser(ctx, domain.User{Email: email, PasswordHash: string(hash)})
}

// Login checks credentials and returns a signed token
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)

	user, err := s.repo.GetUser(ctx, email)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Verify checks a bearer token and returns the email it was issued to
func (s *AuthService) Verify(tokenString string) (string, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return "", fmt.Errorf("%w: missing token", ErrInvalidToken)
	}

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Method.Alg())
		}
		return s.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
