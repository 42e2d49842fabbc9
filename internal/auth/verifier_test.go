package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://tenant.example.com/"
	testAudience = "https://api.playroom.test"
	testClientID = "client-123"
	testKID      = "test-key"
)

func newTestKey(t *testing.T) (*rsa.PrivateKey, jwt.Keyfunc) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	enc := base64.RawURLEncoding
	set := map[string]interface{}{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": testKID,
			"alg": "RS256",
			"use": "sig",
			"n":   enc.EncodeToString(key.PublicKey.N.Bytes()),
			"e":   enc.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		}},
	}
	raw, err := json.Marshal(set)
	require.NoError(t, err)
	jwks, err := keyfunc.NewJSON(raw)
	require.NoError(t, err)
	return key, jwks.Keyfunc
}

func sign(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKID
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"sub":   "auth0|parent-1",
		"email": "parent@example.com",
		"iss":   testIssuer,
		"aud":   []string{testAudience, testIssuer + "userinfo"},
		"iat":   now.Add(-time.Minute).Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
}

func TestVerify_Valid(t *testing.T) {
	key, kf := newTestKey(t)
	v := NewVerifier(testIssuer, []string{testAudience, testClientID}, "", kf)

	id, err := v.Verify(sign(t, key, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "auth0|parent-1", Email: "parent@example.com"}, id)
}

func TestVerify_ClientIDAudienceAndCustomEmailClaim(t *testing.T) {
	key, kf := newTestKey(t)
	const claim = "https://playroom.test/email"
	v := NewVerifier(testIssuer, []string{testAudience, testClientID}, claim, kf)

	claims := validClaims()
	claims["aud"] = testClientID
	delete(claims, "email")
	claims[claim] = "custom@example.com"

	id, err := v.Verify(sign(t, key, claims))
	require.NoError(t, err)
	assert.Equal(t, "custom@example.com", id.Email)
}

func TestVerify_Rejects(t *testing.T) {
	key, kf := newTestKey(t)
	v := NewVerifier(testIssuer, []string{testAudience}, "", kf)

	tests := []struct {
		name   string
		mutate func(jwt.MapClaims)
	}{
		{"wrong audience", func(c jwt.MapClaims) { c["aud"] = "someone-else" }},
		{"wrong issuer", func(c jwt.MapClaims) { c["iss"] = "https://evil.example.com/" }},
		{"expired", func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Minute).Unix() }},
		{"missing exp", func(c jwt.MapClaims) { delete(c, "exp") }},
		{"missing iat", func(c jwt.MapClaims) { delete(c, "iat") }},
		{"missing sub", func(c jwt.MapClaims) { delete(c, "sub") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			tt.mutate(claims)
			_, err := v.Verify(sign(t, key, claims))
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerify_RejectsOtherKeysAndAlgorithms(t *testing.T) {
	_, kf := newTestKey(t)
	other, _ := newTestKey(t)
	v := NewVerifier(testIssuer, []string{testAudience}, "", kf)

	_, err := v.Verify(sign(t, other, validClaims()))
	assert.ErrorIs(t, err, ErrInvalidToken)

	hs := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
	hs.Header["kid"] = testKID
	s, err := hs.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = v.Verify(s)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{UserID: "auth0|x", Email: "x@example.com"})
	id, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "auth0|x", id.UserID)
}
