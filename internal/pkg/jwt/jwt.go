package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the fixed validity window of a session token.
const DefaultTTL = 3 * 24 * time.Hour

// DevSecret is used when no secret is configured outside production.
const DevSecret = "dvinyl-dev-secret-change-me"

// IssuedAtLeeway is how far in the future an iat may lie.
const IssuedAtLeeway = time.Second

var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT payload.
type Claims struct {
	UserID string `json:"id"`
	jwtlib.RegisteredClaims
}

// IssuedAtTime returns iat, or the zero time when the claim is missing.
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// Service signs and verifies session tokens with a server-held secret.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Service)

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now for signing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(secret string, opts ...Option) (*Service, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	s := &Service{secret: []byte(secret), ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) TTL() time.Duration { return s.ttl }

// Sign creates a signed JWT token for the given user ID.
func (s *Service) Sign(userID string) (string, error) {
	return s.SignSince(userID, time.Time{})
}

// SignSince is Sign with iat raised to since when since is later than now.
// A credential change rounds last_change up to the next second, so a login in
// that same second needs iat on the boundary to stay valid. Parse tolerates
// IssuedAtLeeway of clock drift for this.
func (s *Service) SignSince(userID string, since time.Time) (string, error) {
	if userID == "" {
		return "", errors.New("jwt subject is empty")
	}
	now := s.now()
	iat := now
	if since.After(iat) {
		iat = since
	}
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwtlib.NewNumericDate(iat),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse validates a token string and returns the claims. It does not check
// that the subject still exists.
func (s *Service) Parse(tokenStr string) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(s.now),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithIssuedAt(),
		jwtlib.WithLeeway(IssuedAtLeeway),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
