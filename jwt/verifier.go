package jwtkit

import (
	"context"
	"errors"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// VerifierConfig describes how to accept session tokens from the web tier
// (verify-only mode; the bridge never issues them).
type VerifierConfig struct {
	Issuer       string
	Audience     string
	JWKSURL      string
	PinnedRSAPEM string // optional PEM public key for degraded fallback
	Skew         time.Duration
}

// SessionVerifier validates web-tier session tokens against the issuer's
// JWKS, falling back to a pinned RSA key when the JWKS is unreachable.
// It implements core.SessionVerifier.
type SessionVerifier struct {
	cfg    VerifierConfig
	cache  *jwk.Cache
	pinKey any // *rsa.PublicKey when PinnedRSAPEM is set
}

// NewSessionVerifier registers the JWKS URL for background refresh. ctx
// bounds the cache's refresh goroutine lifetime.
func NewSessionVerifier(ctx context.Context, cfg VerifierConfig) (*SessionVerifier, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("jwtkit: verifier requires an issuer")
	}
	if cfg.JWKSURL == "" && cfg.PinnedRSAPEM == "" {
		return nil, errors.New("jwtkit: verifier requires a JWKS URL or a pinned key")
	}
	v := &SessionVerifier{cfg: cfg}
	if cfg.JWKSURL != "" {
		cache := jwk.NewCache(ctx)
		if err := cache.Register(cfg.JWKSURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
			return nil, err
		}
		v.cache = cache
	}
	if cfg.PinnedRSAPEM != "" {
		pub, err := gojwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PinnedRSAPEM))
		if err != nil {
			return nil, err
		}
		v.pinKey = pub
	}
	return v, nil
}

// VerifySessionToken validates signature, issuer, audience, and lifetime,
// and returns the session's user id (the subject claim).
func (v *SessionVerifier) VerifySessionToken(ctx context.Context, raw string) (string, error) {
	opts := []jwt.ParseOption{
		jwt.WithValidate(true),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithContext(ctx),
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}
	if v.cfg.Skew > 0 {
		opts = append(opts, jwt.WithAcceptableSkew(v.cfg.Skew))
	}

	if v.cache != nil {
		set, err := v.cache.Get(ctx, v.cfg.JWKSURL)
		if err == nil {
			tok, perr := jwt.ParseString(raw, append(opts,
				jwt.WithKeySet(set, jws.WithInferAlgorithmFromKey(true)))...)
			if perr == nil {
				return subjectOf(tok)
			}
			// A signature the key set rejects is final unless a pinned
			// key exists for rotation gaps.
			if v.pinKey == nil {
				return "", perr
			}
		} else if v.pinKey == nil {
			return "", err
		}
	}

	if v.pinKey != nil {
		tok, err := jwt.ParseString(raw, append(opts, jwt.WithKey(jwa.RS256, v.pinKey))...)
		if err != nil {
			return "", err
		}
		return subjectOf(tok)
	}
	return "", errors.New("jwtkit: no usable verification key")
}

func subjectOf(tok jwt.Token) (string, error) {
	sub := tok.Subject()
	if sub == "" {
		return "", errors.New("jwtkit: token has no subject")
	}
	return sub, nil
}
