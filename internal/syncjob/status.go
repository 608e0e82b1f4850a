package syncjob

import (
	"context"
	"sync"

	"github.com/dvloznov/bank-sync/internal/logger"
	"github.com/dvloznov/bank-sync/internal/provider"
)

// statusRecorder serializes connection status writes for one run.
// Authorization beats rate limiting, which beats any other failure; a
// failure never overwrites one of higher precedence.
type statusRecorder struct {
	store        ConnectionStore
	connectionID string

	mu       sync.Mutex
	recorded bool
	class    provider.ErrorClass
}

func newStatusRecorder(store ConnectionStore, connectionID string) *statusRecorder {
	return &statusRecorder{store: store, connectionID: connectionID}
}

// Record classifies err and writes it to the connection unless a failure of
// higher precedence was already recorded in this run.
func (r *statusRecorder) Record(ctx context.Context, err error) provider.ErrorClass {
	log := logger.FromContext(ctx)
	class := provider.Classify(err)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recorded && class.Precedence() < r.class.Precedence() {
		log.Debug().
			Str("error_class", string(class)).
			Str("recorded_class", string(r.class)).
			Msg("Keeping higher-precedence connection error")
		return class
	}
	r.recorded = true
	r.class = class

	status := provider.ConnectionStatusFor(err)
	details := provider.ErrorDetails(err)
	if werr := r.store.SetConnectionStatus(ctx, r.connectionID, status, &details); werr != nil {
		log.Error().
			Err(werr).
			Str("status", string(status)).
			Msg("Failed to record connection status")
	}
	return class
}

// Failed reports whether any provider failure was recorded.
func (r *statusRecorder) Failed() (provider.ErrorClass, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.class, r.recorded
}
