// Package core implements the bridge validation pipeline: credential
// resolution, license state evaluation, device activation, and verdict
// assembly. All state lives behind the Store collaborator; a Service is
// safe for concurrent use.
package core

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// Config wires a Service's collaborators.
type Config struct {
	Store    Store
	Sessions SessionVerifier
	Usage    UsageRecorder
	Logger   *logrus.Logger

	// Now overrides the clock (tests). Defaults to time.Now.
	Now func() time.Time
}

// Service is the bridge authentication + activation core.
type Service struct {
	store    Store
	sessions SessionVerifier
	usage    UsageRecorder
	log      *logrus.Logger
	now      func() time.Time
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("core: Config.Store is required")
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.New()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:    cfg.Store,
		sessions: cfg.Sessions,
		usage:    cfg.Usage,
		log:      log,
		now:      now,
	}, nil
}

// Validate runs the full pipeline for one request: the caller must already
// hold a resolved AuthContext. License evaluation completes (including any
// trial-expiry write) strictly before device activation runs.
func (s *Service) Validate(ctx context.Context, actx AuthContext, meta *DeviceMetadata) (*Verdict, error) {
	cred := actx.Credential
	if cred.Scheme != SchemeLicenseKey || cred.LicenseID == "" {
		return nil, ErrLicenseRequired
	}

	lic, plan, verdict, err := s.evaluateLicense(ctx, cred.LicenseID)
	if err != nil {
		return nil, err
	}
	if verdict != nil {
		return verdict, nil
	}

	m := DeviceMetadata{}
	if meta != nil {
		m = *meta
	}
	deviceStatus, verdict, err := s.touchOrRegister(ctx, lic, plan, cred.DeviceID, m, actx)
	if err != nil {
		return nil, err
	}
	if verdict != nil {
		return verdict, nil
	}

	wallet, err := s.store.FindWallet(ctx, lic.UserID)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"license_id":    lic.ID,
		"device_id":     cred.DeviceID,
		"device_status": deviceStatus,
	}).Info("license validated")
	return s.validVerdict(lic, plan, wallet, cred.DeviceID, deviceStatus), nil
}

// ListDevices returns the license's activation rows so the client can
// render a device picker.
func (s *Service) ListDevices(ctx context.Context, actx AuthContext) ([]DeviceActivation, error) {
	cred := actx.Credential
	if cred.Scheme != SchemeLicenseKey || cred.LicenseID == "" {
		return nil, ErrLicenseRequired
	}
	return s.store.ListActivations(ctx, cred.LicenseID)
}

// DeactivateDevice frees a quota slot by clearing is_active on one of the
// license's devices. The row is kept; a later validation from that device
// re-registers it through the bounded path.
func (s *Service) DeactivateDevice(ctx context.Context, actx AuthContext, deviceID string) error {
	cred := actx.Credential
	if cred.Scheme != SchemeLicenseKey || cred.LicenseID == "" {
		return ErrLicenseRequired
	}
	if deviceID == "" {
		return newErr(CodeBadRequest, "device id is required")
	}
	ok, err := s.store.DeactivateDevice(ctx, cred.LicenseID, deviceID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDeviceNotFound
	}
	s.log.WithFields(logrus.Fields{
		"license_id": cred.LicenseID,
		"device_id":  deviceID,
	}).Info("device deactivated")
	return nil
}

// Healthy reports whether the persistence collaborator is reachable.
func (s *Service) Healthy(ctx context.Context) error {
	return s.store.Ping(ctx)
}
