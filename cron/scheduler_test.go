package cron_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocrud/infra/core"
	"github.com/gocrud/infra/cron"
	"github.com/gocrud/infra/di"
	"github.com/gocrud/infra/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSchedulerJobs(t *testing.T) {
	s := cron.NewScheduler(nil)

	var runs atomic.Int32
	require.NoError(t, s.AddJob("@every 1h", "b", func() { runs.Add(1) }))
	require.NoError(t, s.AddJob("0 3 * * *", "a", func() {}))
	assert.Error(t, s.AddJob("@every 1h", "b", func() {}))
	assert.Error(t, s.AddJob("not a spec", "c", func() {}))

	jobs := s.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].Name)
	assert.Equal(t, "0 3 * * *", jobs[0].Spec)
	assert.Equal(t, "b", jobs[1].Name)

	require.NoError(t, s.RunNow("b"))
	assert.Equal(t, int32(1), runs.Load())

	assert.True(t, s.RemoveJob("b"))
	assert.False(t, s.RemoveJob("b"))
	assert.ErrorIs(t, s.RunNow("b"), cron.ErrJobNotFound)
}

func TestSchedulerRecoversPanics(t *testing.T) {
	obs, logs := observer.New(zapcore.DebugLevel)
	s := cron.NewScheduler(logging.NewZapLogger(zap.New(obs)))
	require.NoError(t, s.AddJob("@every 1h", "explode", func() { panic("kaboom") }))

	assert.NotPanics(t, func() { require.NoError(t, s.RunNow("explode")) })
	entries := logs.FilterMessage("panic").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
}

func TestSchedulerTicks(t *testing.T) {
	s := cron.NewScheduler(nil, cron.WithSeconds(), cron.WithStopTimeout(time.Second))

	var runs atomic.Int32
	require.NoError(t, s.AddJob("* * * * * *", "tick", func() { runs.Add(1) }))

	s.Start()
	s.Start()
	assert.True(t, s.Running())
	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	assert.False(t, s.Running())
}

func TestSchedulerStopTimeout(t *testing.T) {
	s := cron.NewScheduler(nil, cron.WithSeconds(), cron.WithStopTimeout(10*time.Millisecond))

	started := make(chan struct{})
	release := make(chan struct{})
	var once atomic.Bool
	require.NoError(t, s.AddJob("* * * * * *", "slow", func() {
		if once.CompareAndSwap(false, true) {
			close(started)
			<-release
		}
	}))

	s.Start()
	<-started
	assert.Error(t, s.Stop())
	close(release)
}

type counter struct {
	n atomic.Int32
}

func TestNewManagesSchedulerThroughContainer(t *testing.T) {
	obs, logs := observer.New(zapcore.DebugLevel)
	c := &counter{}

	rt := core.NewRuntime()
	require.NoError(t, rt.Apply(
		core.WithLogger(logging.NewZapLogger(zap.New(obs))),
		func(rt *core.Runtime) error { return rt.Provide(c) },
		cron.New(
			cron.Location("UTC"),
			cron.StopTimeout(time.Second),
			cron.AddJob("@every 1h", "count", func(c *counter) { c.n.Add(1) }),
			cron.AddJob("@every 1h", "fail", func(*counter) error { return errors.New("nope") }),
		),
	))
	require.NoError(t, rt.Container.Build())

	s, err := di.Resolve[*cron.Scheduler](rt.Container)
	require.NoError(t, err)
	assert.True(t, s.Running())

	require.NoError(t, s.RunNow("count"))
	assert.Equal(t, int32(1), c.n.Load())

	require.NoError(t, s.RunNow("fail"))
	assert.Equal(t, 1, logs.FilterMessage("cron job failed").Len())

	require.NoError(t, rt.Container.Close())
	assert.False(t, s.Running())
}

func TestNewRejectsBadJobs(t *testing.T) {
	assert.Error(t, core.NewRuntime().Apply(cron.New(cron.AddJob("@every 1h", "x", 42))))
	assert.Error(t, core.NewRuntime().Apply(cron.New(cron.AddJob("@every 1h", "x", nil))))
	assert.Error(t, core.NewRuntime().Apply(cron.New(cron.Location("Nowhere/Atlantis"))))
}
