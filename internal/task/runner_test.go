package task

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrigger_RunsAndRecordsStatus(t *testing.T) {
	var calls atomic.Int32
	r := NewRunner("teste", time.Hour, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})

	assert.True(t, r.Trigger(context.Background()))
	assert.Equal(t, int32(1), calls.Load())

	st := r.Status()
	assert.Equal(t, "teste", st.Name)
	assert.False(t, st.Running)
	assert.False(t, st.LastRun.IsZero())
	assert.NoError(t, st.LastErr)
}

func TestTrigger_RecordsLastError(t *testing.T) {
	r := NewRunner("teste", time.Hour, func(ctx context.Context) error {
		return assert.AnError
	})

	assert.True(t, r.Trigger(context.Background()))
	assert.ErrorIs(t, r.Status().LastErr, assert.AnError)

	// Execução seguinte bem-sucedida limpa o erro.
	r.fn = func(ctx context.Context) error { return nil }
	assert.True(t, r.Trigger(context.Background()))
	assert.NoError(t, r.Status().LastErr)
}

func TestTrigger_SingleFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	r := NewRunner("teste", time.Hour, func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.Trigger(context.Background())
	}()

	<-started
	assert.True(t, r.Status().Running)
	assert.False(t, r.Trigger(context.Background()), "disparo sobreposto é pulado")

	close(release)
	wg.Wait()
	assert.False(t, r.Status().Running)
}

func TestStartStop_LoopTicksAndShutsDown(t *testing.T) {
	var calls atomic.Int32
	r := NewRunner("teste", 10*time.Millisecond, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})

	r.Start(context.Background())
	// Start repetido é no-op, não sobe segundo loop.
	r.Start(context.Background())

	require.Eventually(t, func() bool { return calls.Load() >= 2 },
		time.Second, 5*time.Millisecond)

	r.Stop()
	after := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "nenhum tick depois do Stop")

	// Stop repetido não trava nem entra em pânico.
	r.Stop()
}
