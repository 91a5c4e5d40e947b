package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims carried by access and refresh tokens. SessionID ties a refresh
// token to a sessions row so logout can revoke it.
type Claims struct {
	UserID    int    `json:"uid"`
	Portal    string `json:"portal"`
	Role      string `json:"role"`
	Type      string `json:"typ"`
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 tokens.
type Tokens struct {
	secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	now        func() time.Time
}

func NewTokens(secret string, accessTTL, refreshTTL time.Duration) *Tokens {
	return &Tokens{
		secret:     []byte(secret),
		AccessTTL:  accessTTL,
		RefreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// Subject identifies the user a token is minted for.
type Subject struct {
	UserID   int
	Username string
	Portal   string
	Role     string
}

// IssueAccess mints a short-lived access token.
func (t *Tokens) IssueAccess(s Subject) (string, error) {
	return t.sign(s, TokenTypeAccess, "", t.AccessTTL)
}

// IssueRefresh mints a refresh token bound to sessionID.
func (t *Tokens) IssueRefresh(s Subject, sessionID string) (string, error) {
	return t.sign(s, TokenTypeRefresh, sessionID, t.RefreshTTL)
}

func (t *Tokens) sign(s Subject, typ, sid string, ttl time.Duration) (string, error) {
	now := t.now()
	claims := Claims{
		UserID:    s.UserID,
		Portal:    s.Portal,
		Role:      s.Role,
		Type:      typ,
		SessionID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse verifies signature, expiry and token type.
func (t *Tokens) Parse(tokenStr, wantType string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Type != wantType {
		return nil, fmt.Errorf("%w: expected %s token", ErrInvalidToken, wantType)
	}
	return claims, nil
}

// ErrInvalidToken is returned for malformed, expired or wrong-type tokens.
var ErrInvalidToken = errors.New("invalid or expired token")
