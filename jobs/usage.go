// Package jobs holds the bridge's background work: the fire-and-forget
// API-key usage increment (river) and the stale-activation sweep (cron).
package jobs

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/sirupsen/logrus"
)

// UsageStore is the narrow store surface the usage worker needs.
type UsageStore interface {
	IncrementAPIKeyUsage(ctx context.Context, apiKeyID string) error
}

// APIKeyUsageArgs identifies one API-key use to count.
type APIKeyUsageArgs struct {
	APIKeyID string `json:"api_key_id"`
}

func (APIKeyUsageArgs) Kind() string { return "bridge_api_key_usage" }

// APIKeyUsageWorker bumps usage_count and last_used_at off the request path.
type APIKeyUsageWorker struct {
	river.WorkerDefaults[APIKeyUsageArgs]
	Store UsageStore
}

func (w *APIKeyUsageWorker) Work(ctx context.Context, job *river.Job[APIKeyUsageArgs]) error {
	return w.Store.IncrementAPIKeyUsage(ctx, job.Args.APIKeyID)
}

// Recorder implements core.UsageRecorder by enqueueing an increment job.
// Dispatch is detached from the request: the insert runs on its own
// goroutine and context, and a failed insert is logged and dropped.
// Usage accounting must never fail or delay a response.
type Recorder struct {
	client *river.Client[pgx.Tx]
	log    *logrus.Logger
}

func NewRecorder(client *river.Client[pgx.Tx], log *logrus.Logger) *Recorder {
	if log == nil {
		log = logrus.New()
	}
	return &Recorder{client: client, log: log}
}

func (r *Recorder) RecordAPIKeyUse(_ context.Context, apiKeyID string) {
	if r == nil || r.client == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := r.client.Insert(ctx, APIKeyUsageArgs{APIKeyID: apiKeyID}, nil); err != nil {
			r.log.WithError(err).WithField("api_key_id", apiKeyID).Debug("usage increment dropped")
		}
	}()
}
