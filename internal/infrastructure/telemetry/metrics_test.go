package telemetry

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewMeterProvider_Disabled(t *testing.T) {
	mp, err := NewMeterProvider(context.Background(), MetricsConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("healthbudget/budget"))
	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestInstruments(t *testing.T) {
	meter, reader := newTestMeter(t)
	in := NewInstruments(meter)
	approvals := in.Counter("approvals_total", "Approvals", "{approval}")
	wait := in.Histogram("wait_seconds", "Wait", "s", 0.1, 1)
	open := in.Gauge("open_executions", "Open executions", "{execution}")
	require.NoError(t, in.Err())

	ctx := context.Background()
	approvals.Inc(ctx, AttrAggregate.String("plan"))
	approvals.Inc(ctx, AttrAggregate.String("plan"))
	wait.Seconds(ctx, 300*time.Millisecond)
	wait.Since(ctx, time.Now())
	open.Set(ctx, 4)
	open.Set(ctx, 2)

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumWhere(t, got["approvals_total"], AttrAggregate.String("plan")))
	assert.Equal(t, uint64(2), histogramCount(t, got["wait_seconds"]))
	v, ok := gaugeValue(t, got["open_executions"])
	require.True(t, ok)
	assert.Equal(t, int64(2), v)
}

func TestInstruments_InvalidName(t *testing.T) {
	meter, _ := newTestMeter(t)
	in := NewInstruments(meter)
	in.Counter("ok_total", "", "")
	in.Counter("1-starts-with-a-digit", "", "")
	require.Error(t, in.Err())
	assert.Contains(t, in.Err().Error(), "1-starts-with-a-digit")
}

func TestSampler(t *testing.T) {
	var calls atomic.Int32
	s := newSampler()
	s.start(context.Background(), time.Millisecond, func(context.Context) { calls.Add(1) })

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	s.halt()
	s.halt()
	after := calls.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, after, calls.Load())
}
