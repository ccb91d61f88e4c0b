// Package videotoken mints and checks the short-lived capability tokens the
// video server accepts instead of re-checking rentals.
//
// A token is an HS256 JWT binding a movie, the resolved video path and the
// viewer. Verify checks only the signature, the expiry and (when configured)
// the revocation blocklist; it never consults rentals, so a token stays valid
// for its whole TTL even if the rental ends meanwhile.
package videotoken

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"github.com/foozao/lao-cinema-sub007/internal/identity"
	"github.com/foozao/lao-cinema-sub007/internal/metrics"
)

// DefaultTTL is the token lifetime when none is configured.
const DefaultTTL = 15 * time.Minute

// MinSecretLength is the shortest accepted signing secret, in bytes.
const MinSecretLength = 32

const (
	issuer  = "lao-cinema"
	keyInfo = "video-token/v1"
)

// ErrInvalidToken is the only verification failure callers see. Expired,
// tampered, malformed and revoked tokens are deliberately indistinguishable.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the signed payload.
type Claims struct {
	MovieID   string `json:"mid"`
	VideoPath string `json:"vp"`
	jwt.RegisteredClaims
}

// Token is a minted token.
type Token struct {
	Value     string
	ID        string
	ExpiresAt time.Time
}

// Blocklist records revoked token ids until their natural expiry.
type Blocklist interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Service issues and verifies tokens.
type Service struct {
	key       []byte
	ttl       time.Duration
	now       func() time.Time
	blocklist Blocklist
}

// Option configures a Service.
type Option func(*Service)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithBlocklist enables revocation checks in Verify.
func WithBlocklist(b Blocklist) Option { return func(s *Service) { s.blocklist = b } }

// New derives the signing key from secret. secret must be at least
// MinSecretLength bytes.
func New(secret string, opts ...Option) (*Service, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("videotoken: secret must be at least %d bytes", MinSecretLength)
	}
	key, err := deriveKey(secret)
	if err != nil {
		return nil, err
	}
	s := &Service{key: key, ttl: DefaultTTL, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func deriveKey(secret string) ([]byte, error) {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("videotoken: derive key: %w", err)
	}
	return key, nil
}

// TTL returns the configured lifetime.
func (s *Service) TTL() time.Duration { return s.ttl }

// Issue mints a token for movieID and videoPath on behalf of viewer. Call it
// only after access was granted for the same movie and viewer.
func (s *Service) Issue(movieID string, viewer identity.Identity, videoPath string) (Token, error) {
	if movieID == "" || videoPath == "" || viewer.IsZero() {
		return Token{}, errors.New("videotoken: movie, path and viewer are required")
	}
	now := s.now()
	exp := now.Add(s.ttl)
	id := uuid.NewString()

	claims := Claims{
		MovieID:   movieID,
		VideoPath: videoPath,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   viewer.String(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	value, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return Token{}, fmt.Errorf("videotoken: sign: %w", err)
	}
	metrics.VideoTokensIssued.Inc()
	return Token{Value: value, ID: id, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify returns the claims of a valid token or ErrInvalidToken. A token is
// already invalid at its exact expiry instant. Errors other than
// ErrInvalidToken mean the blocklist could not be consulted.
func (s *Service) Verify(ctx context.Context, value string) (*Claims, error) {
	claims, err := s.parse(value)
	if err != nil {
		metrics.VideoTokenVerifications.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidToken
	}
	if s.blocklist != nil {
		revoked, err := s.blocklist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("videotoken: blocklist: %w", err)
		}
		if revoked {
			metrics.VideoTokenVerifications.WithLabelValues("invalid").Inc()
			return nil, ErrInvalidToken
		}
	}
	metrics.VideoTokenVerifications.WithLabelValues("valid").Inc()
	return claims, nil
}

func (s *Service) parse(value string) (*Claims, error) {
	if value == "" {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(value, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return s.key, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.MovieID == "" || claims.VideoPath == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Revoke blocklists a token until its expiry. A token that does not verify
// is reported as ErrInvalidToken; revoking without a blocklist is an error.
func (s *Service) Revoke(ctx context.Context, value string) error {
	if s.blocklist == nil {
		return ErrRevocationDisabled
	}
	claims, err := s.parse(value)
	if err != nil {
		return ErrInvalidToken
	}
	return s.blocklist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

// ErrRevocationDisabled is returned by Revoke when no blocklist is wired.
var ErrRevocationDisabled = errors.New("videotoken: revocation disabled")

// RevocationEnabled reports whether a blocklist is configured.
func (s *Service) RevocationEnabled() bool { return s.blocklist != nil }
