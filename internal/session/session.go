package session

import (
	"time"

	givebridge_errors "givebridge/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried in a portal access token.
type Claims struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

// Issue signs an access token for the given claims. Used by the dev server;
// the production portal issues its own tokens with the same claim set.
func Issue(claims Claims, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.UserID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Parse verifies the token signature and returns its claims.
func Parse(tokenString string, secret []byte) (Claims, error) {
	if tokenString == "" {
		return Claims{}, givebridge_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, givebridge_errors.ErrUnauthorized
		}
		return secret, nil
	})
	if err != nil {
		return Claims{}, givebridge_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, givebridge_errors.ErrUnauthorized
	}

	return *claims, nil
}

// Identity decodes the claims without verifying the signature. The client
// only needs its own id and role out of the token it was handed; the server
// is the one enforcing authenticity.
func Identity(tokenString string) (Claims, error) {
	if tokenString == "" {
		return Claims{}, givebridge_errors.ErrUnauthorized
	}

	var claims Claims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, &claims); err != nil {
		return Claims{}, givebridge_errors.ErrUnauthorized
	}
	return claims, nil
}
