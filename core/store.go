package core

import (
	"context"
	"time"
)

// RegisterOutcome reports the result of an atomic bounded device insert.
type RegisterOutcome struct {
	Registered bool
	// ActiveDevices is the active-row count observed by the store when
	// Registered is false (surfaced to the client for display).
	ActiveDevices int
}

// Store is the persistence collaborator. Implementations own atomicity:
// TryRegisterDevice must be a single conditional insert so the caller never
// performs a check-then-insert on a stale count. Lookup methods return
// (nil, nil) when the row does not exist.
type Store interface {
	// FindAPIKeysByPrefix returns candidate keys sharing a lookup prefix.
	// The caller verifies the secret against each candidate's hash.
	FindAPIKeysByPrefix(ctx context.Context, prefix string) ([]APIKey, error)

	// FindLicenseByKey resolves a raw license key to its license id.
	FindLicenseByKey(ctx context.Context, key string) (*License, error)

	// FindLicenseWithPlan loads a license joined with its plan.
	FindLicenseWithPlan(ctx context.Context, licenseID string) (*License, *Plan, error)

	// UpdateLicenseStatus sets the status column. Idempotent by contract;
	// racing writers of the same value are harmless.
	UpdateLicenseStatus(ctx context.Context, licenseID, status string) error

	// FindActivation looks up the (license, device) row.
	FindActivation(ctx context.Context, licenseID, deviceID string) (*DeviceActivation, error)

	// TouchActivation refreshes heartbeat fields on a known device:
	// is_active=true, last_seen_at=now, plus current name/version/address.
	TouchActivation(ctx context.Context, licenseID, deviceID string, meta DeviceMetadata, ipAddress string) error

	// TryRegisterDevice inserts a new activation only while the license's
	// active count is below maxDevices (maxDevices -1 = unlimited).
	TryRegisterDevice(ctx context.Context, licenseID, deviceID string, maxDevices int, meta DeviceMetadata, ipAddress, userAgent string) (RegisterOutcome, error)

	// CountActiveActivations returns the license's active device count.
	CountActiveActivations(ctx context.Context, licenseID string) (int, error)

	// ListActivations returns all activation rows for a license,
	// most recently seen first.
	ListActivations(ctx context.Context, licenseID string) ([]DeviceActivation, error)

	// DeactivateDevice clears is_active on the (license, device) row.
	// Returns false when no such row exists.
	DeactivateDevice(ctx context.Context, licenseID, deviceID string) (bool, error)

	// DeactivateStaleDevices clears is_active on rows not seen since the
	// cutoff and returns how many rows changed.
	DeactivateStaleDevices(ctx context.Context, seenBefore time.Time) (int64, error)

	// FindWallet loads the user's token wallet snapshot.
	FindWallet(ctx context.Context, userID string) (*TokenWallet, error)

	// Ping reports store reachability for health checks.
	Ping(ctx context.Context) error
}

// SessionVerifier validates web-tier session tokens opaquely and yields the
// session's user id.
type SessionVerifier interface {
	VerifySessionToken(ctx context.Context, token string) (userID string, err error)
}

// UsageRecorder schedules the best-effort API-key usage increment.
// Implementations must not block, and must never surface a failure to the
// request path.
type UsageRecorder interface {
	RecordAPIKeyUse(ctx context.Context, apiKeyID string)
}
