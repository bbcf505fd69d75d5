package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/riverqueue/river"

	"github.com/oradesk/bridgekit/core"
	memorystore "github.com/oradesk/bridgekit/storage/memory"
)

func TestAPIKeyUsageWorker(t *testing.T) {
	store := memorystore.New()
	store.PutAPIKey(core.APIKey{ID: "key-1", IsActive: true})
	w := &APIKeyUsageWorker{Store: store}

	for i := 0; i < 3; i++ {
		err := w.Work(context.Background(), &river.Job[APIKeyUsageArgs]{Args: APIKeyUsageArgs{APIKeyID: "key-1"}})
		if err != nil {
			t.Fatalf("Work: %v", err)
		}
	}
	k, _ := store.GetAPIKey("key-1")
	if k.UsageCount != 3 {
		t.Fatalf("expected usage_count 3, got %d", k.UsageCount)
	}
	if k.LastUsedAt == nil {
		t.Fatal("last_used_at not set")
	}
}

// A job for a deleted key is a no-op, not a retry loop.
func TestAPIKeyUsageWorker_MissingKey(t *testing.T) {
	w := &APIKeyUsageWorker{Store: memorystore.New()}
	err := w.Work(context.Background(), &river.Job[APIKeyUsageArgs]{Args: APIKeyUsageArgs{APIKeyID: "gone"}})
	if err != nil {
		t.Fatalf("Work on missing key: %v", err)
	}
}

func TestStaleDeviceSweeper(t *testing.T) {
	store := memorystore.New()
	base := time.Now()
	clock := base.Add(-40 * 24 * time.Hour)
	store.WithClock(func() time.Time { return clock })
	store.PutPlan(core.Plan{ID: "plan-1", MaxDevices: 5})
	store.PutLicense("", core.License{ID: "lic-1", PlanID: "plan-1", Status: core.StatusActive})

	// dev-old last seen 40 days ago, dev-fresh yesterday.
	if _, err := store.TryRegisterDevice(context.Background(), "lic-1", "dev-old", 5, core.DeviceMetadata{}, "", ""); err != nil {
		t.Fatalf("register dev-old: %v", err)
	}
	clock = base.Add(-24 * time.Hour)
	if _, err := store.TryRegisterDevice(context.Background(), "lic-1", "dev-fresh", 5, core.DeviceMetadata{}, "", ""); err != nil {
		t.Fatalf("register dev-fresh: %v", err)
	}

	NewStaleDeviceSweeper(store, 30*24*time.Hour, nil).Run()

	if a, _ := store.GetActivation("lic-1", "dev-old"); a.IsActive {
		t.Fatal("idle device not swept")
	}
	if a, _ := store.GetActivation("lic-1", "dev-fresh"); !a.IsActive {
		t.Fatal("fresh device swept")
	}

	// Idempotent: a second pass finds nothing to do.
	n, err := store.DeactivateStaleDevices(context.Background(), time.Now().Add(-30*24*time.Hour))
	if err != nil || n != 0 {
		t.Fatalf("second sweep: n=%d err=%v", n, err)
	}
}
