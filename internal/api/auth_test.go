package api

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
)

func signHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestBearerToken(t *testing.T) {
	token, err := bearerToken("  Bearer header.payload.signature ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "header.payload.signature" {
		t.Fatalf("unexpected token content: %s", token)
	}
	if _, err := bearerToken(""); err != errMissingAuthorization {
		t.Fatalf("expected missing header error, got %v", err)
	}
	for _, bad := range []string{"Basic abc", "Bearer ", "Bearer a.b", "Bearer a.b.c.d"} {
		if _, err := bearerToken(bad); err != errBadAuthorization {
			t.Fatalf("expected bad auth header for %q, got %v", bad, err)
		}
	}
}

func TestUserIDFromBearerHS256(t *testing.T) {
	auth := NewAuth("test-secret", nil)
	signed := signHS256(t, "test-secret", jwt.MapClaims{
		"sub": "user-123",
		"exp": time.Now().Add(5 * time.Minute).Unix(),
		"iat": time.Now().Add(-time.Minute).Unix(),
	})

	userID, err := auth.UserIDFromAuthHeader("Bearer " + signed)
	if err != nil {
		t.Fatalf("unexpected error verifying token: %v", err)
	}
	if userID != "user-123" {
		t.Fatalf("unexpected user id: %s", userID)
	}
}

func TestUserIDFromBearerRejects(t *testing.T) {
	auth := NewAuth("test-secret", nil)
	cases := map[string]string{
		"expired": signHS256(t, "test-secret", jwt.MapClaims{
			"sub": "u", "exp": time.Now().Add(-time.Minute).Unix(),
		}),
		"no expiry":    signHS256(t, "test-secret", jwt.MapClaims{"sub": "u"}),
		"no subject":   signHS256(t, "test-secret", jwt.MapClaims{"exp": time.Now().Add(time.Minute).Unix()}),
		"wrong secret": signHS256(t, "other", jwt.MapClaims{"sub": "u", "exp": time.Now().Add(time.Minute).Unix()}),
	}
	for name, token := range cases {
		if _, err := auth.UserIDFromBearer(token); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestUserIDFromBearerRS256ViaJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	jwksJSON := fmt.Sprintf(`{"keys":[{"kty":"RSA","kid":"k1","alg":"RS256","use":"sig","n":%q,"e":%q}]}`,
		base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()))
	jwks, err := keyfunc.NewJSON([]byte(jwksJSON))
	if err != nil {
		t.Fatalf("jwks: %v", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": "remote-user",
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	token.Header["kid"] = "k1"
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	auth := NewAuth("", jwks)
	for i := 0; i < 2; i++ {
		userID, err := auth.UserIDFromBearer(signed)
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if userID != "remote-user" {
			t.Fatalf("unexpected user id %s", userID)
		}
	}
	if _, ok := auth.keyCache.Load("k1"); !ok {
		t.Fatal("expected key to be cached")
	}

	hs := signHS256(t, "whatever", jwt.MapClaims{"sub": "u", "exp": time.Now().Add(time.Minute).Unix()})
	if _, err := auth.UserIDFromBearer(hs); err == nil {
		t.Fatal("expected HS256 token to be rejected without a local secret")
	}
}
