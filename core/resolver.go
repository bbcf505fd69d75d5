package core

import (
	"context"
	"strings"

	"github.com/oradesk/bridgekit/keys"
)

// RequestHeaders carries the credential-bearing headers of one request.
// The transport adapter fills it; core stays transport-free.
type RequestHeaders struct {
	Authorization string // "Bearer ora_..." or "Bearer <session token>"
	LicenseKey    string // X-License-Key
	DeviceID      string // X-Device-ID
}

// ResolveCredential classifies the request into exactly one of the three
// bridge schemes. Schemes are tried in fixed order (API key prefix, then
// license-key header, then bearer session token) and the first header
// match wins; there is no fallback chaining between schemes.
func (s *Service) ResolveCredential(ctx context.Context, h RequestHeaders) (Credential, error) {
	bearer := bearerToken(h.Authorization)

	if bearer != "" && keys.IsAPIKey(bearer) {
		return s.resolveAPIKey(ctx, bearer)
	}

	if h.LicenseKey != "" {
		return s.resolveLicenseKey(ctx, h.LicenseKey, h.DeviceID)
	}

	if bearer != "" {
		return s.resolveSession(ctx, bearer)
	}

	return Credential{}, ErrAuthRequired
}

func (s *Service) resolveAPIKey(ctx context.Context, raw string) (Credential, error) {
	candidates, err := s.store.FindAPIKeysByPrefix(ctx, keys.LookupPrefix(raw))
	if err != nil {
		return Credential{}, err
	}
	var key *APIKey
	for i := range candidates {
		ok, verr := keys.VerifyKey(candidates[i].KeyHash, raw)
		if verr != nil {
			s.log.WithError(verr).WithField("api_key_id", candidates[i].ID).Warn("unreadable API key hash")
			continue
		}
		if ok {
			key = &candidates[i]
			break
		}
	}
	if key == nil {
		return Credential{}, ErrInvalidAPIKey
	}
	if key.ExpiresAt != nil && key.ExpiresAt.Before(s.now()) {
		return Credential{}, ErrAPIKeyExpired
	}
	if !key.IsActive {
		return Credential{}, ErrAPIKeyDisabled
	}

	scopes := key.Scopes
	if len(scopes) == 0 {
		scopes = DefaultAPIKeyScopes
	}

	// Best-effort usage accounting; never fails or delays the request.
	if s.usage != nil {
		s.usage.RecordAPIKeyUse(ctx, key.ID)
	}

	return Credential{
		Scheme:   SchemeAPIKey,
		APIKeyID: key.ID,
		UserID:   key.UserID,
		Scopes:   scopes,
	}, nil
}

// resolveLicenseKey yields the license id regardless of license status:
// a found-but-inactive license is a successful credential resolution, and
// the evaluator turns the status into a business verdict. The client needs
// the status detail, so rejecting here would lose it.
func (s *Service) resolveLicenseKey(ctx context.Context, licenseKey, deviceID string) (Credential, error) {
	if strings.TrimSpace(deviceID) == "" {
		return Credential{}, ErrMissingDeviceID
	}
	lic, err := s.store.FindLicenseByKey(ctx, licenseKey)
	if err != nil {
		return Credential{}, err
	}
	if lic == nil {
		return Credential{}, ErrInvalidLicenseKey
	}
	return Credential{
		Scheme:    SchemeLicenseKey,
		LicenseID: lic.ID,
		DeviceID:  deviceID,
		UserID:    lic.UserID,
	}, nil
}

func (s *Service) resolveSession(ctx context.Context, token string) (Credential, error) {
	if s.sessions == nil {
		return Credential{}, ErrInvalidSession
	}
	userID, err := s.sessions.VerifySessionToken(ctx, token)
	if err != nil {
		s.log.WithError(err).Debug("session token rejected")
		return Credential{}, ErrInvalidSession
	}
	return Credential{
		Scheme: SchemeSession,
		UserID: userID,
		Scopes: SessionScopes,
	}, nil
}

func bearerToken(authorization string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(authorization, prefix) {
		return ""
	}
	return strings.TrimSpace(authorization[len(prefix):])
}
