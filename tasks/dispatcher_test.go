package tasks

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phillip/event-manager-go/config"
	"github.com/phillip/event-manager-go/metrics"
)

func newDispatcher(workers, size int, timeout time.Duration) (*Dispatcher, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := zerolog.New(&lockedWriter{w: &buf}).Level(zerolog.DebugLevel)
	return NewDispatcher(config.TasksConfig{Workers: workers, QueueSize: size, Timeout: timeout}, logger), &buf
}

type lockedWriter struct {
	mu sync.Mutex
	w  *bytes.Buffer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func TestDispatcherRunsTasks(t *testing.T) {
	d, _ := newDispatcher(2, 16, time.Second)

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		require.True(t, d.Submit("count", func(context.Context) error {
			ran.Add(1)
			return nil
		}))
	}

	require.NoError(t, d.Shutdown(context.Background()))
	assert.Equal(t, int32(10), ran.Load())
}

func TestDispatcherWait(t *testing.T) {
	d, _ := newDispatcher(1, 4, time.Second)
	t.Cleanup(func() { _ = d.Shutdown(context.Background()) })

	var ran atomic.Bool
	d.Submit("slow", func(context.Context) error {
		time.Sleep(20 * time.Millisecond)
		ran.Store(true)
		return nil
	})

	d.Wait()
	assert.True(t, ran.Load())
}

func TestDispatcherLogsFailures(t *testing.T) {
	d, buf := newDispatcher(1, 4, time.Second)
	before := testutil.ToFloat64(metrics.TasksTotal.WithLabelValues("failing", "error"))

	d.Submit("failing", func(context.Context) error { return errors.New("smtp down") })
	require.NoError(t, d.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), "smtp down")
	assert.Contains(t, buf.String(), `"task":"failing"`)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.TasksTotal.WithLabelValues("failing", "error")))
}

func TestDispatcherRecoversPanics(t *testing.T) {
	d, buf := newDispatcher(1, 4, time.Second)

	d.Submit("panicky", func(context.Context) error { panic("nil map") })
	var ran atomic.Bool
	d.Submit("after", func(context.Context) error {
		ran.Store(true)
		return nil
	})
	require.NoError(t, d.Shutdown(context.Background()))

	assert.True(t, ran.Load())
	assert.Contains(t, buf.String(), "task panicked")
}

func TestDispatcherTaskTimeout(t *testing.T) {
	d, _ := newDispatcher(1, 4, 10*time.Millisecond)

	var got error
	d.Submit("timeout", func(ctx context.Context) error {
		<-ctx.Done()
		got = ctx.Err()
		return got
	})
	require.NoError(t, d.Shutdown(context.Background()))

	assert.ErrorIs(t, got, context.DeadlineExceeded)
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	d, buf := newDispatcher(1, 1, time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	require.True(t, d.Submit("blocker", func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	require.True(t, d.Submit("queued", func(context.Context) error { return nil }))
	assert.False(t, d.Submit("overflow", func(context.Context) error { return nil }))

	close(release)
	require.NoError(t, d.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "queue full")
}

func TestDispatcherRejectsAfterShutdown(t *testing.T) {
	d, _ := newDispatcher(1, 4, time.Second)
	require.NoError(t, d.Shutdown(context.Background()))
	require.NoError(t, d.Shutdown(context.Background()))

	assert.False(t, d.Submit("late", func(context.Context) error { return nil }))
}

func TestDispatcherShutdownHonoursContext(t *testing.T) {
	d, _ := newDispatcher(1, 4, time.Second)

	release := make(chan struct{})
	d.Submit("stuck", func(context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Shutdown(ctx), context.DeadlineExceeded)
	close(release)
}
