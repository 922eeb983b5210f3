// credential_sweep.go implements the CredentialSweep background job, which
// periodically deactivates provider credentials past their expiry timestamp.
// An expired credential is already unusable (every lookup filters on expiry),
// so the sweep exists to make the state visible: the connections view shows
// the provider as disconnected and the listing endpoint asks for a reconnect
// instead of failing against the provider's API. The sweep never deletes
// rows; a reconnection reuses the same (user, provider) row.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/docuforge/docuforge/internal/db/repositories"
	"github.com/docuforge/docuforge/internal/telemetry"
)

// CredentialSweep periodically deactivates expired provider credentials.
type CredentialSweep struct {
	credRepo *repositories.CredentialRepository
	interval time.Duration
	stopChan chan struct{}
}

// NewCredentialSweep creates a new CredentialSweep.
// interval controls how often the sweep runs (default 1h).
func NewCredentialSweep(credRepo *repositories.CredentialRepository, interval time.Duration) *CredentialSweep {
	if interval <= 0 {
		interval = time.Hour
	}
	return &CredentialSweep{
		credRepo: credRepo,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background sweep loop.
// It runs an initial sweep immediately, then repeats on the configured
// interval. The loop exits when ctx is cancelled or Stop() is called.
func (s *CredentialSweep) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("credential expiry sweep started", "interval", s.interval)

	// Run once immediately on startup
	s.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.runSweep(ctx)
		case <-s.stopChan:
			slog.Info("credential expiry sweep stopped")
			return
		case <-ctx.Done():
			slog.Info("credential expiry sweep context cancelled")
			return
		}
	}
}

// Stop signals the background loop to exit.
func (s *CredentialSweep) Stop() {
	close(s.stopChan)
}

// runSweep deactivates every active credential past its expiry.
func (s *CredentialSweep) runSweep(ctx context.Context) {
	n, err := s.credRepo.DeactivateExpired(ctx)
	if err != nil {
		slog.Error("credential expiry sweep failed", "error", err)
		return
	}
	if n > 0 {
		telemetry.CredentialsDeactivatedTotal.Add(float64(n))
		slog.Info("credential expiry sweep deactivated credentials", "count", n)
	}
}
