package jwtkit_test

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"testing"

	jwtkit "github.com/oradesk/bridgekit/jwt"
	bridgetesting "github.com/oradesk/bridgekit/testing"
)

func newVerifier(t *testing.T, issuer *bridgetesting.SessionIssuer) *jwtkit.SessionVerifier {
	t.Helper()
	v, err := jwtkit.NewSessionVerifier(context.Background(), jwtkit.VerifierConfig{
		Issuer:   issuer.URL(),
		Audience: issuer.Audience(),
		JWKSURL:  issuer.JWKSURL(),
	})
	if err != nil {
		t.Fatalf("NewSessionVerifier: %v", err)
	}
	return v
}

func TestVerifySessionToken(t *testing.T) {
	issuer := bridgetesting.NewSessionIssuer()
	defer issuer.Close()
	v := newVerifier(t, issuer)

	sub, err := v.VerifySessionToken(context.Background(), issuer.CreateSessionToken("user-42"))
	if err != nil {
		t.Fatalf("VerifySessionToken: %v", err)
	}
	if sub != "user-42" {
		t.Fatalf("expected subject user-42, got %q", sub)
	}
}

func TestVerifySessionToken_Expired(t *testing.T) {
	issuer := bridgetesting.NewSessionIssuer()
	defer issuer.Close()
	v := newVerifier(t, issuer)

	if _, err := v.VerifySessionToken(context.Background(), issuer.CreateExpiredToken("user-42")); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestVerifySessionToken_WrongAudience(t *testing.T) {
	issuer := bridgetesting.NewSessionIssuerWithAudience("someone-else")
	defer issuer.Close()

	v, err := jwtkit.NewSessionVerifier(context.Background(), jwtkit.VerifierConfig{
		Issuer:   issuer.URL(),
		Audience: "ora-bridge",
		JWKSURL:  issuer.JWKSURL(),
	})
	if err != nil {
		t.Fatalf("NewSessionVerifier: %v", err)
	}
	if _, err := v.VerifySessionToken(context.Background(), issuer.CreateSessionToken("user-42")); err == nil {
		t.Fatal("wrong-audience token accepted")
	}
}

func TestVerifySessionToken_ForeignSigner(t *testing.T) {
	issuer := bridgetesting.NewSessionIssuer()
	defer issuer.Close()
	other := bridgetesting.NewSessionIssuer()
	defer other.Close()

	v := newVerifier(t, issuer)
	// Same claims shape but signed under a key the JWKS does not carry.
	if _, err := v.VerifySessionToken(context.Background(), other.CreateSessionToken("user-42")); err == nil {
		t.Fatal("foreign-signed token accepted")
	}
}

func TestVerifySessionToken_Garbage(t *testing.T) {
	issuer := bridgetesting.NewSessionIssuer()
	defer issuer.Close()
	v := newVerifier(t, issuer)

	if _, err := v.VerifySessionToken(context.Background(), "not.a.jwt"); err == nil {
		t.Fatal("garbage token accepted")
	}
}

// With no JWKS URL configured, verification runs entirely against the
// pinned public key.
func TestVerifySessionToken_PinnedKeyOnly(t *testing.T) {
	issuer := bridgetesting.NewSessionIssuer()
	defer issuer.Close()

	der, err := x509.MarshalPKIXPublicKey(issuer.PublicKey())
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	v, err := jwtkit.NewSessionVerifier(context.Background(), jwtkit.VerifierConfig{
		Issuer:       issuer.URL(),
		Audience:     issuer.Audience(),
		PinnedRSAPEM: string(pubPEM),
	})
	if err != nil {
		t.Fatalf("NewSessionVerifier: %v", err)
	}
	sub, err := v.VerifySessionToken(context.Background(), issuer.CreateSessionToken("user-7"))
	if err != nil {
		t.Fatalf("pinned-key verify: %v", err)
	}
	if sub != "user-7" {
		t.Fatalf("expected subject user-7, got %q", sub)
	}
}
