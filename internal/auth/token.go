package auth

import (
	"fmt"
	"github.com/golang-jwt/jwt/v4"
	"github.com/rookgm/reviewmart/internal/models"
	"strconv"
	"time"
)

const tokenTTL = 24 * time.Hour

type claims struct {
	jwt.RegisteredClaims
	UserID uint64 `json:"uid"`
	Role   string `json:"role,omitempty"`
}

// Token creates and verifies HS256 signed caller tokens
type Token struct {
	key []byte
	now func() time.Time
}

// NewAuthToken creates new Token instance
func NewAuthToken(key []byte) *Token {
	return &Token{key: key, now: time.Now}
}

// CreateToken returns signed token for caller
func (t *Token) CreateToken(payload models.TokenPayload) (string, error) {
	now := t.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(payload.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
		UserID: payload.UserID,
		Role:   payload.Role,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.key)
}

// VerifyToken checks token signature and expiration and returns its payload
func (t *Token) VerifyToken(tokenString string) (*models.TokenPayload, error) {
	c := claims{}
	token, err := jwt.ParseWithClaims(tokenString, &c, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.key, nil
	})
	if err != nil || !token.Valid {
		return nil, models.ErrInvalidToken
	}

	if c.UserID == 0 {
		return nil, models.ErrInvalidToken
	}

	role := c.Role
	if role == "" {
		role = models.RoleUser
	}

	return &models.TokenPayload{UserID: c.UserID, Role: role}, nil
}
