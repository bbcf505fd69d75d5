package redisstore

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/oradesk/bridgekit/core"
)

// LicenseSource is a core.Store that can also load licenses and plans
// separately, which lets the plan read be served from cache.
type LicenseSource interface {
	core.Store
	FindLicense(ctx context.Context, licenseID string) (*core.License, error)
	FindPlan(ctx context.Context, planID string) (*core.Plan, error)
}

// CachedStore is a core.Store that serves plan reads through a PlanCache.
// The license row is always read fresh: status, trial, and usage fields are
// mutable and drive the validity decision. Cache failures fall through to
// the source and are logged at debug.
type CachedStore struct {
	LicenseSource
	plans *PlanCache
	log   *logrus.Logger
}

func NewCachedStore(src LicenseSource, plans *PlanCache, log *logrus.Logger) *CachedStore {
	if log == nil {
		log = logrus.New()
	}
	return &CachedStore{LicenseSource: src, plans: plans, log: log}
}

var _ core.Store = (*CachedStore)(nil)

func (s *CachedStore) FindLicenseWithPlan(ctx context.Context, licenseID string) (*core.License, *core.Plan, error) {
	lic, err := s.FindLicense(ctx, licenseID)
	if err != nil || lic == nil {
		return nil, nil, err
	}

	if p, ok, cerr := s.plans.Get(ctx, lic.PlanID); cerr == nil && ok {
		return lic, &p, nil
	} else if cerr != nil {
		s.log.WithError(cerr).Debug("plan cache read failed")
	}

	plan, err := s.FindPlan(ctx, lic.PlanID)
	if err != nil {
		return nil, nil, err
	}
	if plan != nil {
		if cerr := s.plans.Put(ctx, *plan); cerr != nil {
			s.log.WithError(cerr).Debug("plan cache write failed")
		}
	}
	return lic, plan, nil
}
