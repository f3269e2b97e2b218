package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/averill/accounthub/internal/repositories"
)

// CleanupManager periodically reaps expired session rows and stale device
// token bindings. Sessions past the TTL are already treated as absent by the
// auth middleware; this removes the dead rows.
type CleanupManager struct {
	sessions       repositories.SessionStore
	devices        repositories.DeviceTokenStore
	logger         *slog.Logger
	interval       time.Duration
	sessionTTL     time.Duration
	deviceTokenTTL time.Duration
	stopCh         chan struct{}
}

// NewCleanupManager creates a new cleanup manager. A TTL of zero or less
// disables the corresponding sweep.
func NewCleanupManager(
	sessions repositories.SessionStore,
	devices repositories.DeviceTokenStore,
	logger *slog.Logger,
	interval time.Duration,
	sessionTTL time.Duration,
	deviceTokenTTL time.Duration,
) *CleanupManager {
	return &CleanupManager{
		sessions:       sessions,
		devices:        devices,
		logger:         logger,
		interval:       interval,
		sessionTTL:     sessionTTL,
		deviceTokenTTL: deviceTokenTTL,
		stopCh:         make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if cm.sessionTTL > 0 {
		cutoff := time.Now().Add(-cm.sessionTTL)
		deleted, err := cm.sessions.DeleteExpired(cleanupCtx, cutoff)
		if err != nil {
			cm.logger.Error("failed to reap expired sessions", slog.Any("error", err))
		} else if deleted > 0 {
			cm.logger.Info("expired session cleanup completed", slog.Int64("rows_deleted", deleted))
		}
	}

	if cm.deviceTokenTTL > 0 {
		cutoff := time.Now().Add(-cm.deviceTokenTTL)
		deleted, err := cm.devices.DeleteStale(cleanupCtx, cutoff)
		if err != nil {
			cm.logger.Error("failed to reap stale device tokens", slog.Any("error", err))
		} else if deleted > 0 {
			cm.logger.Info("stale device token cleanup completed", slog.Int64("rows_deleted", deleted))
		}
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
