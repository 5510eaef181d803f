package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/geocoder89/todotask/internal/auth"
	"github.com/geocoder89/todotask/internal/domain/user"
	"github.com/geocoder89/todotask/internal/security"
)

const MinPasswordLength = 8

// UserStore is the persistence the auth flows need. Implementations are
// bound to one transaction for the duration of a request.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id int64) (user.User, error)
	Create(ctx context.Context, email, passwordHash string) (user.User, error)
}

type TokenCodec interface {
	GeneratePair(userID int64) (auth.TokenPair, error)
	ParseUserID(token string) (int64, error)
}

// HashMetrics receives password hashing timings.
type HashMetrics interface {
	ObservePasswordHash(op string, d time.Duration)
}

type Option func(*AuthService)

func WithLogger(log *slog.Logger) Option {
	return func(s *AuthService) {
		if log != nil {
			s.log = log
		}
	}
}

func WithHashMetrics(m HashMetrics) Option {
	return func(s *AuthService) {
		s.metrics = m
	}
}

// WithPasswordHasher swaps the argon2id implementation, e.g. for cheaper test params.
func WithPasswordHasher(hash func(plain string) (string, error), check func(hash, plain string) error) Option {
	return func(s *AuthService) {
		s.hash = hash
		s.check = check
	}
}

// AuthService validates credentials, creates users and issues tokens.
// It is built per request around a store that borrows the request transaction.
type AuthService struct {
	users   UserStore
	tokens  TokenCodec
	log     *slog.Logger
	metrics HashMetrics
	hash    func(plain string) (string, error)
	check   func(hash, plain string) error
}

func NewAuthService(users UserStore, tokens TokenCodec, opts ...Option) *AuthService {
	s := &AuthService{
		users:  users,
		tokens: tokens,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		hash:   security.HashPassword,
		check:  security.CheckPassword,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *AuthService) HashPassword(password string) (string, error) {
	start := time.Now()
	hash, err := s.hash(password)
	s.observe("hash", start)

	return hash, err
}

// VerifyPassword returns nil when password matches hash. Both a mismatch and
// a corrupt hash come back as *VerificationError.
func (s *AuthService) VerifyPassword(password, hash string) error {
	start := time.Now()
	err := s.check(hash, password)
	s.observe("verify", start)

	if err != nil {
		return &VerificationError{Err: err}
	}

	return nil
}

func (s *AuthService) observe(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObservePasswordHash(op, time.Since(start))
	}
}

// CheckPasswordStrength enforces the only rule: at least MinPasswordLength characters.
func CheckPasswordStrength(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrWeakPassword
	}

	return nil
}

// ValidateEmail requires an "@" and a "." somewhere after the last "@".
func ValidateEmail(email string) error {
	at := strings.LastIndex(email, "@")

	if at < 0 || !strings.Contains(email[at+1:], ".") {
		return ErrInvalidEmail
	}

	return nil
}

// GetUserByEmail returns nil, nil when no user has this exact email.
func (s *AuthService) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	u, err := s.users.GetByEmail(ctx, email)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return &u, nil
}

func (s *AuthService) GetUserByID(ctx context.Context, id int64) (*user.User, error) {
	u, err := s.users.GetByID(ctx, id)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("get user by id: %w", err)
	}

	return &u, nil
}

// CreateUser checks, in order, email syntax, uniqueness and password strength,
// then hashes the password and stores the user.
func (s *AuthService) CreateUser(ctx context.Context, email, password string) (user.User, error) {
	if err := ValidateEmail(email); err != nil {
		return user.User{}, err
	}

	existing, err := s.GetUserByEmail(ctx, email)

	if err != nil {
		return user.User{}, err
	}

	if existing != nil {
		return user.User{}, ErrDuplicateEmail
	}

	if err := CheckPasswordStrength(password); err != nil {
		return user.User{}, err
	}

	hash, err := s.HashPassword(password)

	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.users.Create(ctx, email, hash)

	if err != nil {
		// lost the race with a concurrent registration
		if errors.Is(err, user.ErrEmailTaken) {
			return user.User{}, ErrDuplicateEmail.with(err)
		}

		return user.User{}, fmt.Errorf("create user: %w", err)
	}

	s.log.InfoContext(ctx, "user registered", "user_id", created.ID)

	return created, nil
}

func (s *AuthService) GenerateToken(userID int64) (auth.TokenPair, error) {
	pair, err := s.tokens.GeneratePair(userID)

	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("generate token: %w", err)
	}

	return pair, nil
}

func (s *AuthService) GetUserIDFromAccessToken(token string) (int64, error) {
	id, err := s.tokens.ParseUserID(token)

	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return 0, ErrExpiredToken.with(err)
		}

		return 0, ErrMalformedToken.with(err)
	}

	return id, nil
}

// Login looks the user up, verifies the password and issues a token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (auth.TokenPair, error) {
	u, err := s.GetUserByEmail(ctx, email)

	if err != nil {
		return auth.TokenPair{}, err
	}

	if u == nil {
		s.log.DebugContext(ctx, "login rejected", "reason", KindUserNotFound)
		return auth.TokenPair{}, ErrUserNotFound
	}

	if err := s.VerifyPassword(password, u.PasswordHash); err != nil {
		s.log.DebugContext(ctx, "login rejected", "reason", KindWrongPassword, "user_id", u.ID)

		if errors.Is(err, security.ErrInvalidHash) || errors.Is(err, security.ErrIncompatibleHash) {
			s.log.WarnContext(ctx, "stored password hash is unreadable", "user_id", u.ID)
		}

		return auth.TokenPair{}, ErrWrongPassword.with(err)
	}

	pair, err := s.GenerateToken(u.ID)

	if err != nil {
		return auth.TokenPair{}, err
	}

	s.log.InfoContext(ctx, "user logged in", "user_id", u.ID)

	return pair, nil
}
