package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/circle-rides/pkg/domain"
)

var testSecret = []byte("test-secret-key-at-least-32-bytes!")

func TestTokenVerifier_RoundTrip(t *testing.T) {
	v, err := NewTokenVerifier(testSecret, "idp")
	require.NoError(t, err)

	userID := uuid.New()
	token, err := IssueAccessToken(testSecret, "idp", userID, time.Minute)
	require.NoError(t, err)

	got, err := v.UserID(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestTokenVerifier_Rejects(t *testing.T) {
	v, err := NewTokenVerifier(testSecret, "idp")
	require.NoError(t, err)
	userID := uuid.New()

	expired, err := IssueAccessToken(testSecret, "idp", userID, -time.Minute)
	require.NoError(t, err)
	wrongIssuer, err := IssueAccessToken(testSecret, "other", userID, time.Minute)
	require.NoError(t, err)
	wrongSecret, err := IssueAccessToken([]byte("another-secret"), "idp", userID, time.Minute)
	require.NoError(t, err)

	noExpiry := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: userID.String(), Issuer: "idp"})
	noExpiryToken, err := noExpiry.SignedString(testSecret)
	require.NoError(t, err)

	badSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "not-a-uuid",
		Issuer:    "idp",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	badSubjectToken, err := badSubject.SignedString(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expired},
		{"wrong issuer", wrongIssuer},
		{"wrong secret", wrongSecret},
		{"missing expiry", noExpiryToken},
		{"bad subject", badSubjectToken},
		{"garbage", "not.a.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.UserID(tt.token)
			assert.ErrorIs(t, err, domain.ErrInvalidToken)
		})
	}
}

func TestTokenVerifier_NoIssuerCheck(t *testing.T) {
	v, err := NewTokenVerifier(testSecret, "")
	require.NoError(t, err)

	token, err := IssueAccessToken(testSecret, "anyone", uuid.New(), time.Minute)
	require.NoError(t, err)

	_, err = v.UserID(token)
	assert.NoError(t, err)
}

func TestNewTokenVerifier_RequiresSecret(t *testing.T) {
	_, err := NewTokenVerifier(nil, "")
	assert.Error(t, err)
}
