// Package health checks whether the backend is configured and reachable.
package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/scrum0/scrum0/internal/auth/domain"
	"github.com/scrum0/scrum0/internal/auth/gateway"
)

// Monitor reports backend connectivity. It holds no mutable state and is safe
// for concurrent use.
type Monitor struct {
	prober gateway.Prober
	logger *slog.Logger
}

func NewMonitor(prober gateway.Prober, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{prober: prober, logger: logger}
}

// Check never returns an error; failures are described by the status. An
// unconfigured backend is reported without any network call.
func (m *Monitor) Check(ctx context.Context) domain.ConnectionStatus {
	if !m.prober.Configured() {
		m.logger.Debug("backend not configured")
		return domain.ConnectionStatus{
			Connected:  false,
			Configured: false,
			Error:      domain.MsgNotConfigured,
		}
	}

	start := time.Now()
	if err := m.prober.Probe(ctx); err != nil {
		m.logger.Warn("backend connection check failed",
			"error", err,
			"duration", time.Since(start),
		)
		return domain.ConnectionStatus{
			Connected:  false,
			Configured: true,
			Error:      domain.UserMessage(err),
		}
	}

	m.logger.Debug("backend connection ok", "duration", time.Since(start))
	return domain.ConnectionStatus{Connected: true, Configured: true}
}
