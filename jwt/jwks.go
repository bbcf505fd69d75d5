package jwtkit

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
)

// JWK carries the RSA public-key fields a session verifier needs. The
// bridge never publishes keys in production; this exists so the in-process
// issuer can stand in for the web tier's JWKS endpoint.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Kid string `json:"kid,omitempty"`
	Alg string `json:"alg,omitempty"`
	N   string `json:"n"` // base64url
	E   string `json:"e"` // base64url
}

type JWKS struct {
	Keys []JWK `json:"keys"`
}

// RSAPublicToJWK builds the signing JWK for an RSA public key.
func RSAPublicToJWK(pub *rsa.PublicKey, kid, alg string) JWK {
	return JWK{
		Kty: "RSA",
		Use: "sig",
		Kid: kid,
		Alg: alg,
		N:   bigIntB64(pub.N),
		E:   bigIntB64(big.NewInt(int64(pub.E))),
	}
}

// ServeJWKS writes the key set with cache headers. The ETag is the content
// hash, so conditional GETs short-circuit until a key rotates.
func ServeJWKS(w http.ResponseWriter, r *http.Request, ks JWKS) {
	body, _ := json.Marshal(ks)
	sum := sha256.Sum256(body)
	etag := `"` + hex.EncodeToString(sum[:]) + `"`

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300, must-revalidate")
	w.Header().Set("ETag", etag)
	_, _ = w.Write(body)
}

// bigIntB64 encodes a big integer as base64url without padding. Leading
// zero bytes are stripped; RFC 7518 requires the minimal representation.
func bigIntB64(i *big.Int) string {
	b := i.Bytes()
	for len(b) > 0 && b[0] == 0x00 {
		b = b[1:]
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
