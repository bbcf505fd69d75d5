package core

import (
	"context"

	"github.com/sirupsen/logrus"
)

// touchOrRegister resolves the presented device against the license's
// activations. Known active devices always pass and get their heartbeat
// refreshed; re-validation never counts against the quota. Unknown devices
// go through the store's atomic bounded insert.
func (s *Service) touchOrRegister(ctx context.Context, lic *License, plan *Plan, deviceID string, meta DeviceMetadata, actx AuthContext) (string, *Verdict, error) {
	meta = meta.withDefaults()

	existing, err := s.store.FindActivation(ctx, lic.ID, deviceID)
	if err != nil {
		return "", nil, err
	}
	if existing != nil && existing.IsActive {
		if err := s.store.TouchActivation(ctx, lic.ID, deviceID, meta, actx.IPAddress); err != nil {
			return "", nil, err
		}
		return DeviceKnown, nil, nil
	}
	// A deactivated row is not a known device: reactivation competes for a
	// quota slot like a first registration.

	out, err := s.store.TryRegisterDevice(ctx, lic.ID, deviceID, plan.MaxDevices, meta, actx.IPAddress, actx.UserAgent)
	if err != nil {
		return "", nil, err
	}
	if !out.Registered {
		s.log.WithFields(logrus.Fields{
			"license_id":     lic.ID,
			"device_id":      deviceID,
			"max_devices":    plan.MaxDevices,
			"active_devices": out.ActiveDevices,
		}).Info("device registration denied by quota")
		v := s.invalidVerdict(lic.Status, ReasonDeviceLimitReached, plan)
		maxDevices := plan.MaxDevices
		active := out.ActiveDevices
		v.MaxDevices = &maxDevices
		v.ActiveDevices = &active
		return "", v, nil
	}
	return DeviceNewlyRegistered, nil, nil
}
