package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/talkincode/storefront/internal/domain"
)

const tokenIssuer = "storefront"

// Claims is the identity carried by an access token.
type Claims struct {
	UserID int64    `json:"uid,string"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// TokenMaker signs and verifies HS256 access tokens.
type TokenMaker struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenMaker(secret string, ttl time.Duration) *TokenMaker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenMaker{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (m *TokenMaker) TTL() time.Duration {
	return m.ttl
}

// Issue returns a signed token for the user and its expiry time.
func (m *TokenMaker) Issue(u *domain.User) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.ttl)
	claims := &Claims{
		UserID: u.ID,
		Email:  u.Email,
		Roles:  u.RoleList(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, exp, nil
}

// Parse validates the signature and time claims of a token.
func (m *TokenMaker) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	t, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		var verr *jwt.ValidationError
		if errors.As(err, &verr) && verr.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, fmt.Errorf("token expired: %w", domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("invalid token: %w", domain.ErrUnauthorized)
	}
	if !t.Valid || claims.UserID == 0 || claims.Issuer != tokenIssuer {
		return nil, fmt.Errorf("invalid token claims: %w", domain.ErrUnauthorized)
	}
	return claims, nil
}
