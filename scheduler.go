package mwixnet

import (
	"context"
	"sync"
	"time"
)

// RoundScheduler periodically invokes ExecuteRound on a fixed interval until
// stopped. A shutdown signal causes no new round to start; an in-flight
// round runs to completion (or fails with its own I/O error).
type RoundScheduler struct {
	server   Server
	interval time.Duration
	logger   *Logger

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewRoundScheduler builds a scheduler that calls server.ExecuteRound every
// interval. Call Start to begin, Stop to shut down gracefully.
func NewRoundScheduler(server Server, interval time.Duration) *RoundScheduler {
	return &RoundScheduler{
		server:   server,
		interval: interval,
		logger:   DefaultLogger().Module("scheduler"),
		done:     make(chan struct{}),
	}
}

// Start launches the scheduler's goroutine. It returns immediately; Stop
// blocks until any in-flight round finishes.
func (r *RoundScheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.runRound(ctx)
			}
		}
	}()
}

func (r *RoundScheduler) runRound(ctx context.Context) {
	tx, err := r.server.ExecuteRound(ctx)
	if err != nil {
		r.logger.Error("round failed", "error", err)
		return
	}
	if tx == nil {
		r.logger.Debug("round produced no transaction")
		return
	}
	r.logger.Info("round posted transaction", "kernels", len(tx.Kernels), "fee", tx.Fee)
}

// Stop signals the scheduler to stop starting new rounds and waits for any
// in-flight round to finish.
func (r *RoundScheduler) Stop() {
	r.once.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
		<-r.done
	})
}
