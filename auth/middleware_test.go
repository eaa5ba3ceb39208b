// Package auth tests JWT middleware behavior for both verifier modes.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	testSecret = "super-secret-supabase-jwt-key"
	testIssuer = "https://project.supabase.co/auth/v1"
)

func newHMACTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	verifier, err := NewHMACVerifier(testSecret, testIssuer)
	if err != nil {
		t.Fatalf("failed to create verifier: %v", err)
	}
	return verifier
}

func signHMACToken(t *testing.T, secret, subject string, expiresIn time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   testIssuer,
		"sub":   subject,
		"email": subject + "@example.com",
		"aud":   "authenticated",
		"exp":   now.Add(expiresIn).Unix(),
		"iat":   now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return tokenString
}

func newProtectedRouter(verifier *Verifier, cfg MiddlewareConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware(verifier, cfg))
	router.GET("/protected", func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c.Request.Context())
		if !ok || claims.Subject == "" {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sub": claims.Subject})
	})
	router.GET("/open", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func get(router *gin.Engine, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestMiddlewareMissingToken(t *testing.T) {
	t.Setenv("AUTH_DISABLED", "false")
	router := newProtectedRouter(newHMACTestVerifier(t), MiddlewareConfig{})

	resp := get(router, "/protected", "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
	if want := "Missing Authorization header"; !jsonErrorIs(t, resp, want) {
		t.Fatalf("expected %q, got %s", want, resp.Body.String())
	}
}

func TestMiddlewareMalformedHeader(t *testing.T) {
	t.Setenv("AUTH_DISABLED", "false")
	router := newProtectedRouter(newHMACTestVerifier(t), MiddlewareConfig{})

	resp := get(router, "/protected", "Token abc")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestMiddlewareWrongSecret(t *testing.T) {
	t.Setenv("AUTH_DISABLED", "false")
	router := newProtectedRouter(newHMACTestVerifier(t), MiddlewareConfig{})

	tokenString := signHMACToken(t, "not-the-secret", "user-123", 10*time.Minute)
	resp := get(router, "/protected", "Bearer "+tokenString)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
	if want := "Invalid token"; !jsonErrorIs(t, resp, want) {
		t.Fatalf("expected %q, got %s", want, resp.Body.String())
	}
}

func TestMiddlewareExpiredToken(t *testing.T) {
	t.Setenv("AUTH_DISABLED", "false")
	router := newProtectedRouter(newHMACTestVerifier(t), MiddlewareConfig{})

	tokenString := signHMACToken(t, testSecret, "user-123", -time.Hour)
	resp := get(router, "/protected", "Bearer "+tokenString)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", resp.Code)
	}
}

func TestMiddlewareValidToken(t *testing.T) {
	t.Setenv("AUTH_DISABLED", "false")
	router := newProtectedRouter(newHMACTestVerifier(t), MiddlewareConfig{})

	tokenString := signHMACToken(t, testSecret, "user-123", 10*time.Minute)
	resp := get(router, "/protected", "Bearer "+tokenString)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestMiddlewarePublicPathSkipsAuth(t *testing.T) {
	t.Setenv("AUTH_DISABLED", "false")
	cfg := MiddlewareConfig{PublicPaths: map[string]bool{"/open": true}}
	router := newProtectedRouter(newHMACTestVerifier(t), cfg)

	resp := get(router, "/open", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected public path to bypass auth, got %d", resp.Code)
	}
}

func TestMiddlewareOnAuthenticatedHook(t *testing.T) {
	t.Setenv("AUTH_DISABLED", "false")

	var hookedSubject string
	cfg := MiddlewareConfig{
		OnAuthenticated: func(c *gin.Context, claims *Claims) error {
			hookedSubject = claims.Subject
			return nil
		},
	}
	router := newProtectedRouter(newHMACTestVerifier(t), cfg)

	tokenString := signHMACToken(t, testSecret, "user-hooked", 10*time.Minute)
	resp := get(router, "/protected", "Bearer "+tokenString)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if hookedSubject != "user-hooked" {
		t.Fatalf("expected hook to see subject, got %q", hookedSubject)
	}
}

func TestMiddlewareHookFailureIsNotFatal(t *testing.T) {
	t.Setenv("AUTH_DISABLED", "false")

	cfg := MiddlewareConfig{
		OnAuthenticated: func(c *gin.Context, claims *Claims) error {
			return errors.New("db offline")
		},
	}
	router := newProtectedRouter(newHMACTestVerifier(t), cfg)

	tokenString := signHMACToken(t, testSecret, "user-123", 10*time.Minute)
	resp := get(router, "/protected", "Bearer "+tokenString)
	if resp.Code != http.StatusOK {
		t.Fatalf("hook failure must not reject the request, got %d", resp.Code)
	}
}

func TestMiddlewareDisabledInjectsLocalClaims(t *testing.T) {
	t.Setenv("AUTH_DISABLED", "false")
	router := newProtectedRouter(nil, MiddlewareConfig{DisableAuth: true})

	resp := get(router, "/protected", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with auth disabled, got %d", resp.Code)
	}
}

func TestJWKSVerifierValidToken(t *testing.T) {
	t.Setenv("AUTH_DISABLED", "false")
	verifier, key := newJWKSTestVerifier(t)

	tokenString := signRSAToken(t, key, "test-key", verifier.issuer, verifier.audience)
	router := newProtectedRouter(verifier, MiddlewareConfig{})

	resp := get(router, "/protected", "Bearer "+tokenString)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestJWKSVerifierRejectsUnknownKey(t *testing.T) {
	t.Setenv("AUTH_DISABLED", "false")
	verifier, _ := newJWKSTestVerifier(t)

	badKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to create key: %v", err)
	}
	tokenString := signRSAToken(t, badKey, "other-key", verifier.issuer, verifier.audience)
	router := newProtectedRouter(verifier, MiddlewareConfig{})

	resp := get(router, "/protected", "Bearer "+tokenString)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown signing key, got %d", resp.Code)
	}
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	verifier := newHMACTestVerifier(t)

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": testIssuer,
		"exp": now.Add(10 * time.Minute).Unix(),
		"iat": now.Unix(),
	})
	tokenString, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	if _, err := verifier.Verify(tokenString); err == nil {
		t.Fatalf("expected rejection for token without sub")
	}
}

func TestVerifyExtractsClaims(t *testing.T) {
	verifier := newHMACTestVerifier(t)
	tokenString := signHMACToken(t, testSecret, "user-9", 10*time.Minute)

	claims, err := verifier.Verify(tokenString)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user-9" {
		t.Fatalf("expected subject user-9, got %q", claims.Subject)
	}
	if claims.Email != "user-9@example.com" {
		t.Fatalf("expected email claim, got %q", claims.Email)
	}
	if len(claims.Audience) != 1 || claims.Audience[0] != "authenticated" {
		t.Fatalf("expected audience [authenticated], got %v", claims.Audience)
	}
	if claims.ExpiresAt.Before(time.Now()) {
		t.Fatalf("expected future expiry, got %v", claims.ExpiresAt)
	}
}

func TestExtractBearerToken(t *testing.T) {
	token, ok := extractBearerToken("Bearer abc")
	if !ok || token != "abc" {
		t.Fatalf("expected token")
	}
	if _, ok := extractBearerToken("Bearer"); ok {
		t.Fatalf("expected invalid header")
	}
	if _, ok := extractBearerToken("Token abc"); ok {
		t.Fatalf("expected invalid scheme")
	}
	if _, ok := extractBearerToken(""); ok {
		t.Fatalf("expected empty header to be invalid")
	}
}

func TestClaimsFromContext(t *testing.T) {
	claims := &Claims{Subject: "user-1"}
	ctx := WithClaims(context.Background(), claims)
	got, ok := ClaimsFromContext(ctx)
	if !ok || got.Subject != "user-1" {
		t.Fatalf("expected claims from context")
	}
	if _, ok := ClaimsFromContext(context.Background()); ok {
		t.Fatalf("expected no claims on empty context")
	}
}

func jsonErrorIs(t *testing.T, resp *httptest.ResponseRecorder, want string) bool {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error == want
}

func newJWKSTestVerifier(t *testing.T) (*Verifier, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to create key: %v", err)
	}

	jwks := newJWKS(key, "test-key")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(server.Close)

	verifier, err := NewJWKSVerifier("https://example.supabase.co/", "authenticated", server.URL)
	if err != nil {
		t.Fatalf("failed to create verifier: %v", err)
	}
	return verifier, key
}

func signRSAToken(t *testing.T, key *rsa.PrivateKey, kid, issuer, audience string) string {
	t.Helper()
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": issuer,
		"aud": audience,
		"sub": "user-123",
		"exp": now.Add(10 * time.Minute).Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	tokenString, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return tokenString
}

type jwksPayload struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func newJWKS(key *rsa.PrivateKey, kid string) jwksPayload {
	n := base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes())
	e := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes())
	return jwksPayload{
		Keys: []jwk{
			{
				Kty: "RSA",
				Kid: kid,
				Use: "sig",
				Alg: "RS256",
				N:   n,
				E:   e,
			},
		},
	}
}
