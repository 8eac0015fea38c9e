package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultSessionTTL = 24 * time.Hour

// JWTService emite y valida tokens de sesión firmados (HS256).
type JWTService struct {
	secret  []byte
	ttl     time.Duration
	issuer  string
	revoked RevocationStore
	now     func() time.Time
}

// Claims afirma la identidad del llamador; userId es el email de la cuenta.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

var (
	ErrJWTInvalid = errors.New("jwt invalid")
	ErrJWTExpired = errors.New("jwt expired")
	ErrJWTRevoked = errors.New("jwt revoked")
)

func NewJWTService(secret string, ttl time.Duration) *JWTService {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &JWTService{
		secret:  []byte(secret),
		ttl:     ttl,
		issuer:  "dado-auth",
		revoked: NewMemoryRevocationStore(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func NewJWTServiceWithStore(secret string, ttl time.Duration, store RevocationStore) *JWTService {
	svc := NewJWTService(secret, ttl)
	if store != nil {
		svc.revoked = store
	}
	return svc
}

// IssueSession firma un token para userID con expiración y jti propios.
func (s *JWTService) IssueSession(userID string) (string, error) {
	if len(s.secret) == 0 || strings.TrimSpace(userID) == "" {
		return "", ErrJWTInvalid
	}
	now := s.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ParseSession valida firma, emisor, expiración y lista de revocación.
func (s *JWTService) ParseSession(ctx context.Context, tokenString string) (Claims, error) {
	if len(s.secret) == 0 {
		return Claims{}, ErrJWTInvalid
	}
	if strings.TrimSpace(tokenString) == "" {
		return Claims{}, ErrJWTInvalid
	}
	claims, err := s.parseToken(tokenString)
	if err != nil {
		return Claims{}, err
	}
	if !s.isValidClaims(claims) {
		return Claims{}, ErrJWTInvalid
	}
	if s.revoked != nil {
		revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return Claims{}, err
		}
		if revoked {
			return Claims{}, ErrJWTRevoked
		}
	}
	return claims, nil
}

// Revoke invalida el token descrito por claims durante el resto de su vida.
func (s *JWTService) Revoke(ctx context.Context, claims Claims) error {
	if claims.ID == "" || s.revoked == nil {
		return ErrJWTInvalid
	}
	ttl := s.ttl
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Time.Sub(s.now())
	}
	if ttl <= 0 {
		return nil
	}
	return s.revoked.Revoke(ctx, claims.ID, ttl)
}

func (s *JWTService) parseToken(tokenString string) (Claims, error) {
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrJWTExpired
		}
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}

func (s *JWTService) isValidClaims(claims Claims) bool {
	if strings.TrimSpace(claims.UserID) == "" {
		return false
	}
	if claims.Subject != claims.UserID {
		return false
	}
	if strings.TrimSpace(claims.ID) == "" {
		return false
	}
	return strings.TrimSpace(claims.Issuer) == s.issuer
}
