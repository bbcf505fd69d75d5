package core

import "time"

// License statuses as stored by the billing tier. The bridge only ever
// writes StatusExpired (trial expiry); everything else is read-only here.
const (
	StatusActive    = "active"
	StatusExpired   = "expired"
	StatusCancelled = "cancelled"
	StatusPastDue   = "past_due"
)

// UnlimitedDevices is the plan.MaxDevices sentinel for "no device cap".
const UnlimitedDevices = -1

// License is a subscription entitlement tied to one account and one plan.
type License struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	PlanID            string     `json:"plan_id"`
	Status            string     `json:"status"`
	IsTrial           bool       `json:"is_trial"`
	TrialEndsAt       *time.Time `json:"trial_ends_at,omitempty"`
	BillingCycle      string     `json:"billing_cycle"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end,omitempty"`
	AICallsUsed       int64      `json:"ai_calls_used"`
	TokensUsed        int64      `json:"tokens_used"`
	UsageLimitReached bool       `json:"usage_limit_reached"`
}

// Plan is the entitlement descriptor joined 1:1 from a license.
// Immutable from the bridge's perspective.
type Plan struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	MaxDevices     int            `json:"max_devices"` // -1 = unlimited
	MaxAgents      int            `json:"max_agents"`
	MonthlyAICalls int64          `json:"monthly_ai_calls"`
	MonthlyTokens  int64          `json:"monthly_tokens"`
	Features       map[string]any `json:"features,omitempty"`
}

// DeviceActivation is one row per (license, device). Rows are never
// hard-deleted by the bridge; IsActive is the liveness flag.
type DeviceActivation struct {
	ID              string    `json:"id"`
	LicenseID       string    `json:"license_id"`
	DeviceID        string    `json:"device_id"`
	IsActive        bool      `json:"is_active"`
	DeviceName      string    `json:"device_name"`
	DeviceType      string    `json:"device_type"`
	Platform        string    `json:"platform"`
	PlatformVersion string    `json:"platform_version"`
	AppVersion      string    `json:"app_version"`
	IPAddress       string    `json:"ip_address"`
	UserAgent       string    `json:"user_agent"`
	LastSeenAt      time.Time `json:"last_seen_at"`
}

// TokenWallet is a read-only balance snapshot surfaced in responses.
// Frozen wallets are reported, not enforced, at this layer.
type TokenWallet struct {
	UserID       string `json:"user_id"`
	TokenBalance int64  `json:"token_balance"`
	IsFrozen     bool   `json:"is_frozen"`
}

// APIKey is a bridge API key record. The raw secret is never stored;
// lookup goes through the prefix + hash scheme in the keys package.
type APIKey struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	KeyPrefix  string     `json:"key_prefix"`
	KeyHash    string     `json:"-"`
	Scopes     []string   `json:"scopes"`
	IsActive   bool       `json:"is_active"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	UsageCount int64      `json:"usage_count"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// Scheme identifies which credential variant resolved for a request.
type Scheme string

const (
	SchemeAPIKey     Scheme = "api_key"
	SchemeLicenseKey Scheme = "license_key"
	SchemeSession    Scheme = "session"
)

// Credential is the closed union produced by credential resolution.
// Exactly one of the optional blocks is populated, matching Scheme.
type Credential struct {
	Scheme Scheme

	// SchemeAPIKey
	APIKeyID string
	Scopes   []string

	// SchemeLicenseKey
	LicenseID string
	DeviceID  string

	// SchemeAPIKey and SchemeSession
	UserID string
}

// AuthContext is the immutable per-request identity passed down the call
// chain. Handlers read it; nothing mutates it after resolution.
type AuthContext struct {
	Credential Credential
	IPAddress  string
	UserAgent  string
}

// DeviceMetadata is the optional validate-request body. Missing fields are
// defaulted before any write.
type DeviceMetadata struct {
	DeviceName      string `json:"device_name"`
	DeviceType      string `json:"device_type"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version"`
	AppVersion      string `json:"app_version"`
}

// Defaults for absent device metadata (validation-only calls send no body).
const (
	DefaultDeviceName = "Unknown Device"
	DefaultDeviceType = "desktop"
	DefaultPlatform   = "unknown"
)

func (m DeviceMetadata) withDefaults() DeviceMetadata {
	if m.DeviceName == "" {
		m.DeviceName = DefaultDeviceName
	}
	if m.DeviceType == "" {
		m.DeviceType = DefaultDeviceType
	}
	if m.Platform == "" {
		m.Platform = DefaultPlatform
	}
	return m
}

// DefaultAPIKeyScopes applies when a stored key has no explicit scopes.
var DefaultAPIKeyScopes = []string{"read"}

// SessionScopes are granted to verified session tokens.
var SessionScopes = []string{"read", "write", "use_tokens"}
