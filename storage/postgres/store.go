// Package pgstore implements core.Store against the bridge schema.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oradesk/bridgekit/core"
)

// Store provides licensing lookups/mutations against the bridge schema.
type Store struct {
	pg     *pgxpool.Pool
	schema string
}

func NewStore(pg *pgxpool.Pool, schema string) *Store {
	s := strings.TrimSpace(schema)
	if s == "" {
		s = "bridge"
	}
	return &Store{pg: pg, schema: s}
}

var _ core.Store = (*Store)(nil)

func (s *Store) apiKeysTable() string     { return s.schema + ".api_keys" }
func (s *Store) licensesTable() string    { return s.schema + ".licenses" }
func (s *Store) plansTable() string       { return s.schema + ".plans" }
func (s *Store) activationsTable() string { return s.schema + ".device_activations" }
func (s *Store) walletsTable() string     { return s.schema + ".token_wallets" }

func (s *Store) FindAPIKeysByPrefix(ctx context.Context, prefix string) ([]core.APIKey, error) {
	rows, err := s.pg.Query(ctx, `
		SELECT id, user_id, key_prefix, key_hash, scopes, is_active, expires_at, usage_count, last_used_at
		FROM `+s.apiKeysTable()+`
		WHERE key_prefix = $1`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.APIKey
	for rows.Next() {
		var k core.APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.KeyPrefix, &k.KeyHash, &k.Scopes, &k.IsActive, &k.ExpiresAt, &k.UsageCount, &k.LastUsedAt); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// IncrementAPIKeyUsage bumps the usage counter; called from the background
// worker, never from the request path.
func (s *Store) IncrementAPIKeyUsage(ctx context.Context, apiKeyID string) error {
	_, err := s.pg.Exec(ctx, `
		UPDATE `+s.apiKeysTable()+`
		SET usage_count = usage_count + 1, last_used_at = now()
		WHERE id = $1`, apiKeyID)
	return err
}

const licenseColumns = `l.id, l.user_id, l.plan_id, l.status, l.is_trial, l.trial_ends_at,
		l.billing_cycle, l.current_period_end, l.ai_calls_used, l.tokens_used, l.usage_limit_reached`

func scanLicense(row pgx.Row) (*core.License, error) {
	var lic core.License
	err := row.Scan(&lic.ID, &lic.UserID, &lic.PlanID, &lic.Status, &lic.IsTrial, &lic.TrialEndsAt,
		&lic.BillingCycle, &lic.CurrentPeriodEnd, &lic.AICallsUsed, &lic.TokensUsed, &lic.UsageLimitReached)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lic, nil
}

func (s *Store) FindLicenseByKey(ctx context.Context, key string) (*core.License, error) {
	row := s.pg.QueryRow(ctx, `
		SELECT `+licenseColumns+`
		FROM `+s.licensesTable()+` l
		WHERE l.license_key = $1`, key)
	return scanLicense(row)
}

// FindLicense loads the license row alone; used by the caching store so
// the plan read can be served from cache.
func (s *Store) FindLicense(ctx context.Context, licenseID string) (*core.License, error) {
	row := s.pg.QueryRow(ctx, `
		SELECT `+licenseColumns+`
		FROM `+s.licensesTable()+` l
		WHERE l.id = $1`, licenseID)
	return scanLicense(row)
}

// FindPlan loads a plan by id.
func (s *Store) FindPlan(ctx context.Context, planID string) (*core.Plan, error) {
	row := s.pg.QueryRow(ctx, `
		SELECT id, name, max_devices, max_agents, monthly_ai_calls, monthly_tokens, features
		FROM `+s.plansTable()+`
		WHERE id = $1`, planID)
	var p core.Plan
	var features []byte
	err := row.Scan(&p.ID, &p.Name, &p.MaxDevices, &p.MaxAgents, &p.MonthlyAICalls, &p.MonthlyTokens, &features)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(features) > 0 {
		if err := json.Unmarshal(features, &p.Features); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

func (s *Store) FindLicenseWithPlan(ctx context.Context, licenseID string) (*core.License, *core.Plan, error) {
	row := s.pg.QueryRow(ctx, `
		SELECT `+licenseColumns+`,
			p.id, p.name, p.max_devices, p.max_agents, p.monthly_ai_calls, p.monthly_tokens, p.features
		FROM `+s.licensesTable()+` l
		JOIN `+s.plansTable()+` p ON p.id = l.plan_id
		WHERE l.id = $1`, licenseID)
	var lic core.License
	var plan core.Plan
	var features []byte
	err := row.Scan(&lic.ID, &lic.UserID, &lic.PlanID, &lic.Status, &lic.IsTrial, &lic.TrialEndsAt,
		&lic.BillingCycle, &lic.CurrentPeriodEnd, &lic.AICallsUsed, &lic.TokensUsed, &lic.UsageLimitReached,
		&plan.ID, &plan.Name, &plan.MaxDevices, &plan.MaxAgents, &plan.MonthlyAICalls, &plan.MonthlyTokens, &features)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if len(features) > 0 {
		if err := json.Unmarshal(features, &plan.Features); err != nil {
			return nil, nil, err
		}
	}
	return &lic, &plan, nil
}

func (s *Store) UpdateLicenseStatus(ctx context.Context, licenseID, status string) error {
	_, err := s.pg.Exec(ctx, `
		UPDATE `+s.licensesTable()+`
		SET status = $2, updated_at = now()
		WHERE id = $1`, licenseID, status)
	return err
}

func (s *Store) FindActivation(ctx context.Context, licenseID, deviceID string) (*core.DeviceActivation, error) {
	row := s.pg.QueryRow(ctx, `
		SELECT id, license_id, device_id, is_active, device_name, device_type, platform,
			platform_version, app_version, ip_address, user_agent, last_seen_at
		FROM `+s.activationsTable()+`
		WHERE license_id = $1 AND device_id = $2`, licenseID, deviceID)
	var a core.DeviceActivation
	err := row.Scan(&a.ID, &a.LicenseID, &a.DeviceID, &a.IsActive, &a.DeviceName, &a.DeviceType,
		&a.Platform, &a.PlatformVersion, &a.AppVersion, &a.IPAddress, &a.UserAgent, &a.LastSeenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) TouchActivation(ctx context.Context, licenseID, deviceID string, meta core.DeviceMetadata, ipAddress string) error {
	_, err := s.pg.Exec(ctx, `
		UPDATE `+s.activationsTable()+`
		SET is_active = TRUE, last_seen_at = now(),
			device_name = $3, app_version = $4, platform_version = $5, ip_address = $6
		WHERE license_id = $1 AND device_id = $2`,
		licenseID, deviceID, meta.DeviceName, meta.AppVersion, meta.PlatformVersion, ipAddress)
	return err
}

// TryRegisterDevice performs the bounded insert as one statement: the quota
// count and the insert share the statement's snapshot, so the application
// never re-reads a stale count. Under READ COMMITTED, two concurrent inserts
// for different devices can still each snapshot before the other commits and
// briefly land one row over the cap; the next sweep or deactivation settles
// it. The unique (license_id, device_id) index backs the conflict arm, which
// covers both a same-device race and reactivation of a previously
// deactivated row; either way the device counts as registered.
func (s *Store) TryRegisterDevice(ctx context.Context, licenseID, deviceID string, maxDevices int, meta core.DeviceMetadata, ipAddress, userAgent string) (core.RegisterOutcome, error) {
	var inserted int
	var active int
	err := s.pg.QueryRow(ctx, `
		WITH active AS (
			SELECT count(*)::int AS n
			FROM `+s.activationsTable()+`
			WHERE license_id = $1 AND is_active
		), ins AS (
			INSERT INTO `+s.activationsTable()+`
				(id, license_id, device_id, is_active, device_name, device_type, platform,
				 platform_version, app_version, ip_address, user_agent, last_seen_at)
			SELECT gen_random_uuid(), $1, $2, TRUE, $3, $4, $5, $6, $7, $8, $9, now()
			FROM active
			WHERE $10 = -1 OR active.n < $10
			ON CONFLICT (license_id, device_id) DO UPDATE
				SET is_active = TRUE, last_seen_at = now(),
					device_name = EXCLUDED.device_name, device_type = EXCLUDED.device_type,
					platform = EXCLUDED.platform, platform_version = EXCLUDED.platform_version,
					app_version = EXCLUDED.app_version, ip_address = EXCLUDED.ip_address,
					user_agent = EXCLUDED.user_agent
			RETURNING 1
		)
		SELECT (SELECT count(*) FROM ins)::int, active.n FROM active`,
		licenseID, deviceID, meta.DeviceName, meta.DeviceType, meta.Platform,
		meta.PlatformVersion, meta.AppVersion, ipAddress, userAgent, maxDevices).
		Scan(&inserted, &active)
	if err != nil {
		return core.RegisterOutcome{}, err
	}
	if inserted == 0 {
		return core.RegisterOutcome{Registered: false, ActiveDevices: active}, nil
	}
	return core.RegisterOutcome{Registered: true, ActiveDevices: active + 1}, nil
}

func (s *Store) CountActiveActivations(ctx context.Context, licenseID string) (int, error) {
	var n int
	err := s.pg.QueryRow(ctx, `
		SELECT count(*)::int
		FROM `+s.activationsTable()+`
		WHERE license_id = $1 AND is_active`, licenseID).Scan(&n)
	return n, err
}

func (s *Store) ListActivations(ctx context.Context, licenseID string) ([]core.DeviceActivation, error) {
	rows, err := s.pg.Query(ctx, `
		SELECT id, license_id, device_id, is_active, device_name, device_type, platform,
			platform_version, app_version, ip_address, user_agent, last_seen_at
		FROM `+s.activationsTable()+`
		WHERE license_id = $1
		ORDER BY last_seen_at DESC`, licenseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.DeviceActivation
	for rows.Next() {
		var a core.DeviceActivation
		if err := rows.Scan(&a.ID, &a.LicenseID, &a.DeviceID, &a.IsActive, &a.DeviceName, &a.DeviceType,
			&a.Platform, &a.PlatformVersion, &a.AppVersion, &a.IPAddress, &a.UserAgent, &a.LastSeenAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) DeactivateDevice(ctx context.Context, licenseID, deviceID string) (bool, error) {
	tag, err := s.pg.Exec(ctx, `
		UPDATE `+s.activationsTable()+`
		SET is_active = FALSE
		WHERE license_id = $1 AND device_id = $2`, licenseID, deviceID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) DeactivateStaleDevices(ctx context.Context, seenBefore time.Time) (int64, error) {
	tag, err := s.pg.Exec(ctx, `
		UPDATE `+s.activationsTable()+`
		SET is_active = FALSE
		WHERE is_active AND last_seen_at < $1`, seenBefore)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) FindWallet(ctx context.Context, userID string) (*core.TokenWallet, error) {
	row := s.pg.QueryRow(ctx, `
		SELECT user_id, token_balance, is_frozen
		FROM `+s.walletsTable()+`
		WHERE user_id = $1`, userID)
	var w core.TokenWallet
	err := row.Scan(&w.UserID, &w.TokenBalance, &w.IsFrozen)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pg.Ping(ctx)
}
