// Package memorystore provides an in-memory core.Store for development and
// tests. All operations take one mutex, which also makes TryRegisterDevice
// atomic with respect to the quota count.
package memorystore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oradesk/bridgekit/core"
)

type Store struct {
	mu          sync.Mutex
	apiKeys     map[string]core.APIKey // id -> key
	licenses    map[string]core.License
	licenseKeys map[string]string // raw license key -> license id
	plans       map[string]core.Plan
	activations map[string]core.DeviceActivation // licenseID+"/"+deviceID
	wallets     map[string]core.TokenWallet      // userID
	now         func() time.Time

	// statusWrites is test instrumentation (idempotence assertions).
	statusWrites int
}

func New() *Store {
	return &Store{
		apiKeys:     make(map[string]core.APIKey),
		licenses:    make(map[string]core.License),
		licenseKeys: make(map[string]string),
		plans:       make(map[string]core.Plan),
		activations: make(map[string]core.DeviceActivation),
		wallets:     make(map[string]core.TokenWallet),
		now:         time.Now,
	}
}

// WithClock overrides the heartbeat clock (tests).
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

func actKey(licenseID, deviceID string) string { return licenseID + "/" + deviceID }

// PutAPIKey seeds an API key record.
func (s *Store) PutAPIKey(k core.APIKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKeys[k.ID] = k
}

// PutLicense seeds a license and its raw key.
func (s *Store) PutLicense(rawKey string, lic core.License) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.licenses[lic.ID] = lic
	if rawKey != "" {
		s.licenseKeys[rawKey] = lic.ID
	}
}

// PutPlan seeds a plan.
func (s *Store) PutPlan(p core.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[p.ID] = p
}

// PutWallet seeds a wallet.
func (s *Store) PutWallet(w core.TokenWallet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[w.UserID] = w
}

// GetLicense returns a seeded license by id (tests).
func (s *Store) GetLicense(id string) (core.License, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lic, ok := s.licenses[id]
	return lic, ok
}

// GetActivation returns the raw activation row (tests).
func (s *Store) GetActivation(licenseID, deviceID string) (core.DeviceActivation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.activations[actKey(licenseID, deviceID)]
	return a, ok
}

// StatusWrites counts UpdateLicenseStatus calls (tests assert idempotence).
func (s *Store) StatusWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusWrites
}

var _ core.Store = (*Store)(nil)

func (s *Store) FindAPIKeysByPrefix(ctx context.Context, prefix string) ([]core.APIKey, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.APIKey
	for _, k := range s.apiKeys {
		if k.KeyPrefix == prefix {
			out = append(out, k)
		}
	}
	return out, nil
}

// IncrementAPIKeyUsage mirrors the postgres store's counter bump so the
// usage worker can run against either store.
func (s *Store) IncrementAPIKeyUsage(ctx context.Context, apiKeyID string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.apiKeys[apiKeyID]
	if !ok {
		return nil
	}
	k.UsageCount++
	t := s.now()
	k.LastUsedAt = &t
	s.apiKeys[apiKeyID] = k
	return nil
}

// GetAPIKey returns a seeded API key by id (tests).
func (s *Store) GetAPIKey(id string) (core.APIKey, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.apiKeys[id]
	return k, ok
}

// FindLicense returns the license row alone; with FindPlan this satisfies
// the caching store's LicenseSource.
func (s *Store) FindLicense(ctx context.Context, licenseID string) (*core.License, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	lic, ok := s.licenses[licenseID]
	if !ok {
		return nil, nil
	}
	return &lic, nil
}

// FindPlan returns a plan by id.
func (s *Store) FindPlan(ctx context.Context, planID string) (*core.Plan, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[planID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) FindLicenseByKey(ctx context.Context, key string) (*core.License, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.licenseKeys[key]
	if !ok {
		return nil, nil
	}
	lic := s.licenses[id]
	return &lic, nil
}

func (s *Store) FindLicenseWithPlan(ctx context.Context, licenseID string) (*core.License, *core.Plan, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	lic, ok := s.licenses[licenseID]
	if !ok {
		return nil, nil, nil
	}
	var plan *core.Plan
	if p, ok := s.plans[lic.PlanID]; ok {
		cp := p
		plan = &cp
	}
	return &lic, plan, nil
}

func (s *Store) UpdateLicenseStatus(ctx context.Context, licenseID, status string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	lic, ok := s.licenses[licenseID]
	if !ok {
		return nil
	}
	lic.Status = status
	s.licenses[licenseID] = lic
	s.statusWrites++
	return nil
}

func (s *Store) FindActivation(ctx context.Context, licenseID, deviceID string) (*core.DeviceActivation, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.activations[actKey(licenseID, deviceID)]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *Store) TouchActivation(ctx context.Context, licenseID, deviceID string, meta core.DeviceMetadata, ipAddress string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.activations[actKey(licenseID, deviceID)]
	if !ok {
		return nil
	}
	a.IsActive = true
	a.LastSeenAt = s.now()
	a.DeviceName = meta.DeviceName
	a.AppVersion = meta.AppVersion
	a.PlatformVersion = meta.PlatformVersion
	a.IPAddress = ipAddress
	s.activations[actKey(licenseID, deviceID)] = a
	return nil
}

func (s *Store) TryRegisterDevice(ctx context.Context, licenseID, deviceID string, maxDevices int, meta core.DeviceMetadata, ipAddress, userAgent string) (core.RegisterOutcome, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	active := 0
	for _, a := range s.activations {
		if a.LicenseID == licenseID && a.IsActive {
			active++
		}
	}
	if maxDevices != core.UnlimitedDevices && active >= maxDevices {
		return core.RegisterOutcome{Registered: false, ActiveDevices: active}, nil
	}
	s.activations[actKey(licenseID, deviceID)] = core.DeviceActivation{
		ID:              uuid.NewString(),
		LicenseID:       licenseID,
		DeviceID:        deviceID,
		IsActive:        true,
		DeviceName:      meta.DeviceName,
		DeviceType:      meta.DeviceType,
		Platform:        meta.Platform,
		PlatformVersion: meta.PlatformVersion,
		AppVersion:      meta.AppVersion,
		IPAddress:       ipAddress,
		UserAgent:       userAgent,
		LastSeenAt:      s.now(),
	}
	return core.RegisterOutcome{Registered: true, ActiveDevices: active + 1}, nil
}

func (s *Store) CountActiveActivations(ctx context.Context, licenseID string) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.activations {
		if a.LicenseID == licenseID && a.IsActive {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListActivations(ctx context.Context, licenseID string) ([]core.DeviceActivation, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.DeviceActivation
	for _, a := range s.activations {
		if a.LicenseID == licenseID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeenAt.After(out[j].LastSeenAt) })
	return out, nil
}

func (s *Store) DeactivateDevice(ctx context.Context, licenseID, deviceID string) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.activations[actKey(licenseID, deviceID)]
	if !ok {
		return false, nil
	}
	a.IsActive = false
	s.activations[actKey(licenseID, deviceID)] = a
	return true, nil
}

func (s *Store) DeactivateStaleDevices(ctx context.Context, seenBefore time.Time) (int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, a := range s.activations {
		if a.IsActive && a.LastSeenAt.Before(seenBefore) {
			a.IsActive = false
			s.activations[k] = a
			n++
		}
	}
	return n, nil
}

func (s *Store) FindWallet(ctx context.Context, userID string) (*core.TokenWallet, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userID]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (s *Store) Ping(ctx context.Context) error {
	_ = ctx
	return nil
}
