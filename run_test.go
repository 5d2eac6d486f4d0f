package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gocrud/infra/config"
	"github.com/gocrud/infra/core"
	"github.com/gocrud/infra/di"
	"github.com/gocrud/infra/lifecycle"
	"github.com/gocrud/infra/lifecycletest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Connection struct {
	Rec *lifecycletest.Recorder `di:""`

	_ lifecycle.PostConstruct `method:"Open"`
	_ lifecycle.PreDestroy    `method:"Release"`
}

func (c *Connection) Open()    { c.Rec.Record("conn.Open") }
func (c *Connection) Release() { c.Rec.Record("conn.Release") }

type Repository struct {
	Connection
	_ lifecycle.PostConstruct `method:"Warm"`
	_ lifecycle.PreDestroy    `method:"Flush"`
}

func (r *Repository) Warm()  { r.Rec.Record("repo.Warm") }
func (r *Repository) Flush() { r.Rec.Record("repo.Flush") }

func quiet() core.Option {
	s := config.DefaultSettings()
	s.Logging.Level = "error"
	return core.WithSettings(s)
}

func TestRunContextOrdersHooks(t *testing.T) {
	rec := &lifecycletest.Recorder{}

	err := RunContext(context.Background(),
		quiet(),
		func(rt *core.Runtime) error {
			if err := rt.Provide(rec); err != nil {
				return err
			}
			if err := rt.Provide(&Repository{}, di.WithFields()); err != nil {
				return err
			}
			rt.Lifecycle.OnStart(func(context.Context) error {
				rec.Record("start")
				rt.Shutdown()
				return nil
			})
			rt.Lifecycle.OnStop(func(context.Context) error {
				rec.Record("stop")
				return nil
			})
			return nil
		},
	)
	require.NoError(t, err)
	rec.AssertCalls(t,
		"conn.Open", "repo.Warm",
		"start", "stop",
		"repo.Flush", "conn.Release",
	)
}

func TestRunContextStopsOnCancel(t *testing.T) {
	rec := &lifecycletest.Recorder{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- RunContext(ctx, quiet(), func(rt *core.Runtime) error {
			rt.Lifecycle.OnStart(func(context.Context) error { rec.Record("start"); return nil })
			rt.Lifecycle.OnStop(func(context.Context) error { rec.Record("stop"); return nil })
			return nil
		})
	}()

	require.Eventually(t, func() bool { return len(rec.Calls()) == 1 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	rec.AssertCalls(t, "start", "stop")
}

func TestRunContextStartFailureStillStops(t *testing.T) {
	rec := &lifecycletest.Recorder{}
	boom := errors.New("boom")

	err := RunContext(context.Background(), quiet(), func(rt *core.Runtime) error {
		rt.Lifecycle.OnStart(func(context.Context) error { return boom })
		rt.Lifecycle.OnStop(func(context.Context) error { rec.Record("stop"); return nil })
		return nil
	})
	assert.ErrorIs(t, err, boom)
	rec.AssertCalls(t, "stop")
}

func TestRunContextOptionError(t *testing.T) {
	boom := errors.New("boom")
	err := RunContext(context.Background(), func(*core.Runtime) error { return boom })
	assert.ErrorIs(t, err, boom)
}
