package api

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "mathquiz"

var ErrInvalidToken = errors.New("invalid token")

// TokenIssuer signs HS256 tokens whose jti is the server-side session token,
// so revoking the session revokes the JWT.
type TokenIssuer struct {
	secret []byte
}

func NewTokenIssuer(secret string) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &TokenIssuer{secret: []byte(secret)}, nil
}

func (i *TokenIssuer) Issue(profileID uint, sessionToken string, issuedAt, expiresAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   strconv.FormatUint(uint64(profileID), 10),
		ID:        sessionToken,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Parse validates the signature and expiry and returns the profile id and
// session token carried by the token.
func (i *TokenIssuer) Parse(raw string) (uint, string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return 0, "", ErrInvalidToken
	}
	profileID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || profileID == 0 || claims.ID == "" {
		return 0, "", ErrInvalidToken
	}
	return uint(profileID), claims.ID, nil
}
