package session

import (
	"testing"
	"time"

	givebridge_errors "givebridge/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func TestIssueParseRoundtrip(t *testing.T) {
	token, err := Issue(Claims{
		UserID:    "usr-donor",
		Role:      "DONOR",
		FirstName: "Dana",
		Email:     "donor@givebridge.org",
	}, secret, time.Hour)
	require.NoError(t, err)

	claims, err := Parse(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "usr-donor", claims.UserID)
	assert.Equal(t, "DONOR", claims.Role)
	assert.Equal(t, "usr-donor", claims.Subject)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := Issue(Claims{UserID: "usr-admin"}, secret, time.Hour)
	require.NoError(t, err)

	_, err = Parse(token, []byte("other-secret"))
	assert.ErrorIs(t, err, givebridge_errors.ErrUnauthorized)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token, err := Issue(Claims{UserID: "usr-admin"}, secret, -time.Minute)
	require.NoError(t, err)

	_, err = Parse(token, secret)
	assert.ErrorIs(t, err, givebridge_errors.ErrUnauthorized)
}

func TestIdentityDecodesWithoutSecret(t *testing.T) {
	token, err := Issue(Claims{UserID: "usr-student", Role: "STUDENT"}, secret, time.Hour)
	require.NoError(t, err)

	claims, err := Identity(token)
	require.NoError(t, err)
	assert.Equal(t, "usr-student", claims.UserID)
	assert.Equal(t, "STUDENT", claims.Role)
}

func TestIdentityRejectsGarbage(t *testing.T) {
	_, err := Identity("not.a.token")
	assert.ErrorIs(t, err, givebridge_errors.ErrUnauthorized)
}
