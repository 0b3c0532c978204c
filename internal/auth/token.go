package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const defaultCookieTTL = 365 * 24 * time.Hour

// CookieSigner issues and validates the signed browser session cookie.
type CookieSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCookieSigner builds a signer. A zero ttl keeps the cookie for a year.
func NewCookieSigner(secret string, ttl time.Duration) *CookieSigner {
	if ttl <= 0 {
		ttl = defaultCookieTTL
	}
	return &CookieSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Claims describes the cookie payload.
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Sign returns the cookie value for session id sid and its expiry.
func (s *CookieSigner) Sign(sid string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := &Claims{
		SessionID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	value, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return value, expiresAt, nil
}

// Parse validates a cookie value and returns its claims.
func (s *CookieSigner) Parse(value string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(value, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.SessionID == "" {
		return nil, errors.New("invalid session cookie")
	}
	return claims, nil
}
