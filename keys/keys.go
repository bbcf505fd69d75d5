// Package keys generates and verifies bridge API keys and license keys.
//
// API keys are presented as "ora_<secret>". Only a lookup prefix and an
// argon2id hash of the full key are stored; resolution selects candidates
// by prefix and verifies the hash.
package keys

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

const (
	// APIKeyPrefix marks bridge API keys in Authorization headers.
	APIKeyPrefix = "ora_"

	// lookupPrefixLen covers "ora_" plus 8 secret characters, enough to
	// keep prefix collisions rare while never indexing the whole secret.
	lookupPrefixLen = 12

	apiKeySecretBytes  = 24
	licenseKeyGroupLen = 4
	licenseKeyGroups   = 3
)

// IsAPIKey reports whether a presented bearer value is shaped like a
// bridge API key.
func IsAPIKey(raw string) bool {
	return strings.HasPrefix(raw, APIKeyPrefix) && len(raw) > len(APIKeyPrefix)
}

// GenerateAPIKey returns a new raw key plus its stored form: the lookup
// prefix and the argon2id hash. The raw key is shown to the user once.
func GenerateAPIKey() (raw, prefix, hash string, err error) {
	buf := make([]byte, apiKeySecretBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", "", err
	}
	raw = APIKeyPrefix + base58.Encode(buf)
	hash, err = HashKey(raw)
	if err != nil {
		return "", "", "", err
	}
	return raw, LookupPrefix(raw), hash, nil
}

// LookupPrefix returns the indexed portion of a raw API key.
func LookupPrefix(raw string) string {
	if len(raw) < lookupPrefixLen {
		return raw
	}
	return raw[:lookupPrefixLen]
}

// GenerateLicenseKey returns a scratch-card style key, e.g.
// "ORA-8F2K-QJ4M-W7XP". The base58 alphabet keeps 0 and l out of keys
// users type by hand.
func GenerateLicenseKey() (string, error) {
	buf := make([]byte, licenseKeyGroupLen*licenseKeyGroups)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	enc := strings.ToUpper(base58.Encode(buf))
	need := licenseKeyGroupLen * licenseKeyGroups
	for len(enc) < need {
		enc += "X"
	}
	groups := make([]string, 0, licenseKeyGroups)
	for i := 0; i < licenseKeyGroups; i++ {
		groups = append(groups, enc[i*licenseKeyGroupLen:(i+1)*licenseKeyGroupLen])
	}
	return fmt.Sprintf("ORA-%s", strings.Join(groups, "-")), nil
}
