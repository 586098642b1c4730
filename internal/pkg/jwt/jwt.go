package jwt

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrRevokedToken = errors.New("token revoked")
)

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type Service struct {
	secretKey     []byte
	tokenDuration time.Duration

	mu sync.Mutex
	// token id -> expiry; entries are dropped once the token would have expired anyway
	revoked map[string]time.Time
}

func NewService(secretKey string, tokenDuration time.Duration) *Service {
	return &Service{
		secretKey:     []byte(secretKey),
		tokenDuration: tokenDuration,
		revoked:       make(map[string]time.Time),
	}
}

func (s *Service) TokenDuration() time.Duration {
	return s.tokenDuration
}

func (s *Service) GenerateToken(email string) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenDuration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := ParseHS256(tokenString, s.secretKey)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	_, revoked := s.revoked[revocationKey(tokenString, claims)]
	s.mu.Unlock()
	if revoked {
		return nil, ErrRevokedToken
	}
	return claims, nil
}

// Revoke makes tokenString fail validation until it expires. Tokens that are already
// expired or invalid need nothing and are ignored.
func (s *Service) Revoke(tokenString string) {
	claims, err := ParseHS256(tokenString, s.secretKey)
	if err != nil {
		return
	}
	expiresAt := time.Now().Add(s.tokenDuration)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, exp := range s.revoked {
		if !exp.After(now) {
			delete(s.revoked, key)
		}
	}
	s.revoked[revocationKey(tokenString, claims)] = expiresAt
}

func revocationKey(tokenString string, claims *Claims) string {
	if claims.ID != "" {
		return claims.ID
	}
	return tokenString
}

// ParseHS256 validates an HMAC-signed token against secret. Extra parser options
// (issuer, audience) are applied on top of the signature and expiry checks.
func ParseHS256(tokenString string, secret []byte, opts ...jwt.ParserOption) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

type ParserOption = jwt.ParserOption

func WithIssuer(issuer string) ParserOption {
	return jwt.WithIssuer(issuer)
}
