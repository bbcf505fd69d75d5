package core

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// evaluateLicense loads the license joined with its plan and computes the
// validity decision. A non-nil Verdict means the license exists but its
// current state disallows use; that is a normal response, not an error.
func (s *Service) evaluateLicense(ctx context.Context, licenseID string) (*License, *Plan, *Verdict, error) {
	lic, plan, err := s.store.FindLicenseWithPlan(ctx, licenseID)
	if err != nil {
		return nil, nil, nil, err
	}
	if lic == nil {
		return nil, nil, nil, ErrLicenseNotFound
	}

	if lic.Status != StatusActive {
		return nil, nil, s.invalidVerdict(lic.Status, fmt.Sprintf("License is %s", lic.Status), plan), nil
	}

	if lic.IsTrial && lic.TrialEndsAt != nil && lic.TrialEndsAt.Before(s.now()) {
		// Durable, idempotent transition. Concurrent validations at the
		// expiry instant may both write; both set the same value, so the
		// verdict is consistent regardless of which write wins.
		if err := s.store.UpdateLicenseStatus(ctx, lic.ID, StatusExpired); err != nil {
			return nil, nil, nil, err
		}
		s.log.WithFields(logrus.Fields{
			"license_id":    lic.ID,
			"trial_ends_at": lic.TrialEndsAt,
		}).Info("trial license expired")
		v := s.invalidVerdict(StatusExpired, ReasonTrialEnded, plan)
		v.TrialEndsAt = lic.TrialEndsAt // original value, for client display
		return nil, nil, v, nil
	}

	// The activation quota reads plan.MaxDevices; a dangling plan_id or a
	// cache miss surfacing a nil plan must fail typed, not panic downstream.
	if plan == nil {
		s.log.WithFields(logrus.Fields{
			"license_id": lic.ID,
			"plan_id":    lic.PlanID,
		}).Error("license references missing plan")
		return nil, nil, nil, ErrPlanUnavailable
	}

	return lic, plan, nil, nil
}
