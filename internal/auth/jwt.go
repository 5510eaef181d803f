package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const TokenTypeBearer = "Bearer"

var (
	ErrMalformedToken       = errors.New("malformed token")
	ErrExpiredToken         = errors.New("token expired")
	ErrUnsupportedAlgorithm = errors.New("unsupported jwt algorithm")
	ErrEmptySecret          = errors.New("jwt secret is empty")
)

// Claims is the whole signed payload: {"user_id": <int>, "exp": <unix>}.
// UserID is a pointer so a token without the claim can be told apart from user 0.
type Claims struct {
	UserID *int64 `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken           string    `json:"access_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshToken          string    `json:"refresh_token"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	TokenType             string    `json:"token_type"`
}

type Manager struct {
	secret     []byte
	method     *jwt.SigningMethodHMAC
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type Option func(*Manager)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager builds a token codec for an HMAC algorithm (HS256, HS384, HS512).
func NewManager(secret, algorithm string, accessTTL, refreshTTL time.Duration, opts ...Option) (*Manager, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}

	m := &Manager{
		secret:     []byte(secret),
		method:     method,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

func (m *Manager) Algorithm() string {
	return m.method.Alg()
}

// GeneratePair signs an access and a refresh token for userID.
// Both expiries are computed from the same instant.
func (m *Manager) GeneratePair(userID int64) (TokenPair, error) {
	now := m.now().UTC()

	access, accessExp, err := m.sign(userID, now.Add(m.accessTTL))

	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, refreshExp, err := m.sign(userID, now.Add(m.refreshTTL))

	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:           access,
		AccessTokenExpiresAt:  accessExp,
		RefreshToken:          refresh,
		RefreshTokenExpiresAt: refreshExp,
		TokenType:             TokenTypeBearer,
	}, nil
}

func (m *Manager) sign(userID int64, expiresAt time.Time) (string, time.Time, error) {
	// exp is serialised with second precision; report the value actually signed
	exp := jwt.NewNumericDate(expiresAt)

	claims := Claims{
		UserID: &userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: exp,
		},
	}

	raw, err := jwt.NewWithClaims(m.method, claims).SignedString(m.secret)

	if err != nil {
		return "", time.Time{}, err
	}

	return raw, exp.Time.UTC(), nil
}

// ParseUserID verifies the signature and returns the user_id claim.
// Any decoding or signature problem, or a payload without user_id/exp,
// yields ErrMalformedToken; a well formed token past its exp yields ErrExpiredToken.
func (m *Manager) ParseUserID(tokenStr string) (int64, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{m.method.Alg()}),
		// expiry is judged below so the payload shape is checked first
		jwt.WithoutClaimsValidation(),
	)

	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	if claims.UserID == nil || claims.ExpiresAt == nil {
		return 0, ErrMalformedToken
	}

	if m.now().After(claims.ExpiresAt.Time) {
		return 0, ErrExpiredToken
	}

	return *claims.UserID, nil
}
