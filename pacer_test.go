package rotator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacerSpacesRequests(t *testing.T) {
	p := NewPacer(50*time.Millisecond, 0)
	ctx := context.Background()

	start := time.Now()
	for range 3 {
		require.NoError(t, p.Wait(ctx))
	}
	// First slot is free, the next two must each wait one interval.
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestPacerFirstWaitImmediate(t *testing.T) {
	p := NewPacer(time.Minute, 0)

	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestPacerCancel(t *testing.T) {
	p := NewPacer(time.Minute, 0)
	require.NoError(t, p.Wait(context.Background())) // consume the free slot

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Wait(ctx)
	assert.Error(t, err)
}

func TestPacerJitterClamped(t *testing.T) {
	assert.Equal(t, 0.0, NewPacer(time.Second, -1).jitter)
	assert.Equal(t, 1.0, NewPacer(time.Second, 5).jitter)
	assert.Equal(t, 0.25, NewPacer(time.Second, 0.25).jitter)
}
