// Package testing provides an in-process session-token issuer for testing
// the bridge. It runs an HTTP server serving JWKS and signs tokens that
// validate against it, standing in for the web tier's auth service.
//
// Example usage:
//
//	issuer := testing.NewSessionIssuer()
//	defer issuer.Close()
//
//	verifier, _ := jwtkit.NewSessionVerifier(ctx, jwtkit.VerifierConfig{
//		Issuer:  issuer.URL(),
//		JWKSURL: issuer.JWKSURL(),
//	})
//	token := issuer.CreateSessionToken("user-123")
package testing

import (
	"context"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	jwtkit "github.com/oradesk/bridgekit/jwt"
)

// SessionIssuer serves JWKS at /.well-known/jwks.json and signs session
// tokens with the matching private key.
type SessionIssuer struct {
	server   *httptest.Server
	signer   *jwtkit.RSASigner
	audience string
}

// NewSessionIssuer creates an issuer with the default bridge audience.
func NewSessionIssuer() *SessionIssuer {
	return NewSessionIssuerWithAudience("ora-bridge")
}

// NewSessionIssuerWithAudience creates an issuer with a specific audience claim.
func NewSessionIssuerWithAudience(audience string) *SessionIssuer {
	signer, err := jwtkit.NewRSASigner(2048, "test-key-1")
	if err != nil {
		panic("failed to create RSA signer: " + err.Error())
	}

	si := &SessionIssuer{signer: signer, audience: audience}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/jwks.json", si.handleJWKS)
	si.server = httptest.NewServer(mux)
	return si
}

// URL returns the issuer identifier (the base URL of the test server).
func (si *SessionIssuer) URL() string { return si.server.URL }

// JWKSURL returns the key-set endpoint for verifier configuration.
func (si *SessionIssuer) JWKSURL() string { return si.server.URL + "/.well-known/jwks.json" }

// Audience returns the audience configured for this issuer.
func (si *SessionIssuer) Audience() string { return si.audience }

// PublicKey exposes the signing key's public half, for pinned-key verifier
// configurations.
func (si *SessionIssuer) PublicKey() *rsa.PublicKey { return si.signer.PublicKey() }

// Close shuts down the test server.
func (si *SessionIssuer) Close() {
	if si.server != nil {
		si.server.Close()
	}
}

func (si *SessionIssuer) handleJWKS(w http.ResponseWriter, r *http.Request) {
	jwkKey := jwtkit.RSAPublicToJWK(si.signer.PublicKey(), si.signer.KID(), si.signer.Algorithm())
	jwtkit.ServeJWKS(w, r, jwtkit.JWKS{Keys: []jwtkit.JWK{jwkKey}})
}

// CreateSessionToken signs a session token for the given user.
func (si *SessionIssuer) CreateSessionToken(userID string) string {
	return si.CreateTokenWithClaims(userID, nil)
}

// CreateTokenWithClaims merges extra claims over the standard session set
// (sub, iss, aud, iat, exp) before signing.
func (si *SessionIssuer) CreateTokenWithClaims(userID string, extraClaims map[string]any) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iss": si.URL(),
		"aud": si.audience,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	for k, v := range extraClaims {
		claims[k] = v
	}
	token, err := si.signer.Sign(context.Background(), claims)
	if err != nil {
		panic("failed to sign token: " + err.Error())
	}
	return token
}

// CreateExpiredToken signs a token that has already expired, for testing
// lifetime rejection.
func (si *SessionIssuer) CreateExpiredToken(userID string) string {
	return si.CreateTokenWithClaims(userID, map[string]any{
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
}
