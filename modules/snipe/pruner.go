package snipe

import (
	"log/slog"
	"sync"
	"time"
)

// Pruner evicts expired message histories from a store on a fixed interval.
type Pruner struct {
	store    *Store
	policy   ExpiryPolicy
	interval time.Duration
	logger   *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewPruner creates a pruner; Start launches the loop.
func NewPruner(store *Store, policy ExpiryPolicy, interval time.Duration, logger *slog.Logger) *Pruner {
	if interval <= 0 {
		interval = defaultPruneInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pruner{
		store:    store,
		policy:   policy,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the eviction loop. Subsequent calls are no-ops.
func (p *Pruner) Start() {
	p.startOnce.Do(func() {
		go p.run()
	})
}

// Stop terminates the loop and waits for the in-flight sweep to finish.
// Stopping a pruner that never started is safe.
func (p *Pruner) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
	p.startOnce.Do(func() {
		close(p.done)
	})
	<-p.done
}

func (p *Pruner) run() {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.Sweep()
		}
	}
}

// Sweep removes every tracked id whose latest state is expired with zero
// lenience. Removals are per-id and idempotent, so a sweep racing command
// consumption stays consistent.
func (p *Pruner) Sweep() {
	for messageID, history := range p.store.Snapshot() {
		latest, found := history.Latest()
		if !found {
			continue
		}
		if !p.policy.Expired(latest, 0) {
			continue
		}
		if p.store.Remove(messageID) {
			p.logger.Debug("snipe entry expired",
				"message_id", messageID,
				"change_type", string(latest.ChangeType),
				"changed_at", latest.ChangedAt,
			)
		}
	}
}
