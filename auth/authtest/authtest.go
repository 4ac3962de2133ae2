// Package authtest issues access tokens the way the hosted auth service does,
// for handler tests.
package authtest

import (
	"testing"
	"time"

	"github.com/glowface/api/auth"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Secret is the signing key used by New and Bearer
const Secret = "authtest-signing-secret"

// New returns an Auth verifying tokens signed with Secret
func New(t *testing.T) *auth.Auth {
	t.Helper()
	a, err := auth.New(auth.Options{
		Logger:        zap.NewNop(),
		JWTSigningKey: Secret,
	})
	require.NoError(t, err)
	return a
}

// Bearer returns an Authorization header value for userID
func Bearer(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   userID,
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		},
		Role: "authenticated",
	})
	signed, err := token.SignedString([]byte(Secret))
	require.NoError(t, err)
	return "Bearer " + signed
}
