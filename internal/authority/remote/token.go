package remote

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokenIssuer is the issuer claim of every token the client signs.
const tokenIssuer = "graylogic-driver"

// tokenSource signs short-lived HS256 bearer tokens and reuses each one
// until it is close to expiry.
type tokenSource struct {
	secret  []byte
	subject string

	mu      sync.Mutex
	current string
	expires time.Time
	now     func() time.Time
}

func (s *tokenSource) token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if s.now != nil {
		now = s.now()
	}
	if s.current != "" && now.Add(tokenRefreshBeforeExpiry).Before(s.expires) {
		return s.current, nil
	}

	expires := now.Add(tokenTTL)
	signed, err := SignToken(s.secret, s.subject, now, expires)
	if err != nil {
		return "", err
	}
	s.current, s.expires = signed, expires
	return signed, nil
}

// SignToken creates an HS256 token for subject valid from now until expires.
func SignToken(secret []byte, subject string, now, expires time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(expires),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("signing authority token: %w", err)
	}
	return signed, nil
}
