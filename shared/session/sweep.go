package session

import (
	"context"
	"time"

	"github.com/tvloc02/EventVer1-sub001/shared/utils/cache"
)

// Start launches the periodic sweep. It is a no-op if the sweep is already
// running. The store's TTLs remain the actual enforcement; the sweep only
// reclaims residual keys and reports them.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(1)
	go m.sweepLoop(ctx)

	m.log.Info(ctx, "session sweep started", "interval", m.interval.String())
}

// Stop cancels the sweep and waits for it to return.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	m.wg.Wait()
}

// SweepOnce runs a single housekeeping pass.
func (m *Manager) SweepOnce(ctx context.Context) (cache.SweepReport, error) {
	start := time.Now()
	rep, err := m.store.Sweep(ctx)
	if err != nil {
		m.log.Warn(ctx, "session sweep failed", "error", err)
		return rep, err
	}
	m.log.Info(ctx, "session sweep finished",
		"scanned", rep.Scanned,
		"removed", rep.Removed,
		"took", time.Since(start).String(),
	)
	return rep, nil
}

func (m *Manager) sweepLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = m.SweepOnce(ctx)
		}
	}
}
