package mwixnet

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingServer struct {
	calls atomic.Int64
}

func (c *countingServer) Swap(context.Context, Onion, ComSignature) error { return nil }

func (c *countingServer) ExecuteRound(context.Context) (*Transaction, error) {
	c.calls.Add(1)
	return nil, nil
}

func TestRoundSchedulerRunsAndStops(t *testing.T) {
	server := &countingServer{}
	scheduler := NewRoundScheduler(server, 10*time.Millisecond)

	scheduler.Start(context.Background())
	require.Eventually(t, func() bool {
		return server.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	scheduler.Stop()

	countAtStop := server.calls.Load()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, countAtStop, server.calls.Load())
}
