// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package httpapi

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/taibuivan/yomira/internal/sessionstore"
)

// bearerClaims carries the confirmed session-token key/password pair a
// [sessionstore.Token] hands back on login, so a browser client can store
// one opaque value instead of two. The core's own authentication path
// (authstrategies.Strategies.Bearer) never looks at a JWT: it parses the
// raw "<key>:<password>" form directly. This wrapper exists only so this
// adapter's clients get a single signed bearer value.
type bearerClaims struct {
	Key      string `json:"key"`
	Password string `json:"pwd"`
	jwt.RegisteredClaims
}

// JWTIssuer wraps a [sessionstore.Token] into a signed JWT and back.
type JWTIssuer struct {
	secret []byte
}

// NewJWTIssuer constructs a [JWTIssuer] signing with the given secret.
func NewJWTIssuer(secret string) *JWTIssuer {
	return &JWTIssuer{secret: []byte(secret)}
}

// Issue wraps token into a signed JWT expiring alongside the session token.
func (j *JWTIssuer) Issue(token sessionstore.Token) (string, error) {
	claims := bearerClaims{
		Key:      token.Key,
		Password: token.Password,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   token.UserID,
			IssuedAt:  jwt.NewNumericDate(token.Issued),
			ExpiresAt: jwt.NewNumericDate(token.Expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("httpapi: sign bearer jwt: %w", err)
	}
	return signed, nil
}

// Parse recovers the "<key>:<password>" credential the core's
// [authstrategies.Strategies.Bearer] expects, from a JWT minted by Issue.
func (j *JWTIssuer) Parse(tokenStr string) (credential string, err error) {
	claims := &bearerClaims{}
	_, err = jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("httpapi: unexpected signing method %v", t.Header["alg"])
		}
		return j.secret, nil
	}, jwt.WithExpirationRequired(), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		return "", err
	}
	if claims.Key == "" || claims.Password == "" {
		return "", fmt.Errorf("httpapi: bearer jwt missing key/password")
	}
	return claims.Key + ":" + claims.Password, nil
}
