package lifecycle_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/gocrud/infra/lifecycle"
	"github.com/gocrud/infra/lifecycletest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pool struct {
	rec *lifecycletest.Recorder
}

func (p *pool) init()  { p.rec.Record("pool.init") }
func (p *pool) close() { p.rec.Record("pool.close") }

type service struct {
	pool
}

func (s *service) init()  { s.rec.Record("service.init") }
func (s *service) close() { s.rec.Record("service.close") }

func newManifest(t *testing.T) *lifecycle.Manifest {
	t.Helper()
	m := lifecycle.NewManifest()
	require.NoError(t, lifecycle.Register(m,
		lifecycle.OnPostConstruct("init", func(p *pool) error { p.init(); return nil }),
		lifecycle.OnPreDestroy("close", func(p *pool) error { p.close(); return nil }),
	))
	require.NoError(t, lifecycle.Register(m,
		lifecycle.OnPostConstruct("init", func(s *service) error { s.init(); return nil }),
		lifecycle.OnPreDestroy("close", func(s *service) error { s.close(); return nil }),
	))
	return m
}

func TestManifestPrivateHooksStayDistinct(t *testing.T) {
	cache := lifecycle.NewMetadataCache(lifecycle.WithManifest(newManifest(t)))
	md, err := cache.Find(reflect.TypeOf(service{}))
	require.NoError(t, err)

	require.Len(t, md.InitElements(), 2)
	assert.NotEqual(t, md.InitElements()[0].Identifier(), md.InitElements()[1].Identifier())

	rec := &lifecycletest.Recorder{}
	target := &service{pool: pool{rec: rec}}
	require.NoError(t, md.InvokeInitMethods(target))
	md.InvokePreDestroyMethods(target)

	rec.AssertCalls(t, "pool.init", "service.init", "service.close", "pool.close")
}

type exportedBase struct {
	rec *lifecycletest.Recorder
}

type exportedDerived struct {
	exportedBase
}

func TestManifestExportedNamesCollapse(t *testing.T) {
	m := lifecycle.NewManifest()
	require.NoError(t, lifecycle.Register(m, lifecycle.OnPostConstruct("Start", func(b *exportedBase) error {
		b.rec.Record("base.Start")
		return nil
	})))
	require.NoError(t, lifecycle.Register(m, lifecycle.OnPostConstruct("Start", func(d *exportedDerived) error {
		d.rec.Record("derived.Start")
		return nil
	})))

	cache := lifecycle.NewMetadataCache(lifecycle.WithManifest(m))
	md, err := cache.Find(reflect.TypeOf(exportedDerived{}))
	require.NoError(t, err)
	require.Len(t, md.InitElements(), 1)
	assert.Equal(t, reflect.TypeOf(exportedDerived{}), md.InitElements()[0].Owner())

	rec := &lifecycletest.Recorder{}
	require.NoError(t, md.InvokeInitMethods(&exportedDerived{exportedBase{rec: rec}}))
	rec.AssertCalls(t, "derived.Start")
}

type lazyService struct {
	*pool
}

func TestManifestNilEmbeddedPointer(t *testing.T) {
	cache := lifecycle.NewMetadataCache(lifecycle.WithManifest(newManifest(t)))
	md, err := cache.Find(reflect.TypeOf(lazyService{}))
	require.NoError(t, err)

	err = md.InvokeInitMethods(&lazyService{})
	var injErr *lifecycle.InjectionError
	require.True(t, errors.As(err, &injErr))
	assert.Equal(t, "init", injErr.Method)

	rec := &lifecycletest.Recorder{}
	require.NoError(t, md.InvokeInitMethods(&lazyService{pool: &pool{rec: rec}}))
	rec.AssertCalls(t, "pool.init")
}

func TestRegisterValidation(t *testing.T) {
	m := lifecycle.NewManifest()

	var cfgErr *lifecycle.ConfigError
	err := lifecycle.Register(m, lifecycle.OnPostConstruct[int]("Init", func(*int) error { return nil }))
	assert.True(t, errors.As(err, &cfgErr))

	err = lifecycle.Register(m, lifecycle.OnPostConstruct[pool]("", func(*pool) error { return nil }))
	assert.True(t, errors.As(err, &cfgErr))

	err = lifecycle.Register[pool](m, lifecycle.OnPreDestroy[pool]("close", nil))
	assert.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "close", cfgErr.Method)
}

func TestDiscoverersChain(t *testing.T) {
	var calls int
	counting := lifecycle.DiscovererFunc(func(root reflect.Type, level lifecycle.Level) ([]*lifecycle.Element, error) {
		calls++
		return nil, nil
	})
	failing := lifecycle.DiscovererFunc(func(root reflect.Type, level lifecycle.Level) ([]*lifecycle.Element, error) {
		return nil, &lifecycle.ConfigError{Type: level.Type, Method: "X", Reason: "rejected"}
	})

	cache := lifecycle.NewMetadataCache(lifecycle.WithDiscoverer(lifecycle.Discoverers(counting, nil)))
	_, err := cache.Find(reflect.TypeOf(service{}))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	cache = lifecycle.NewMetadataCache(lifecycle.WithDiscoverer(lifecycle.Discoverers(counting, failing)))
	_, err = cache.Find(reflect.TypeOf(service{}))
	var cfgErr *lifecycle.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}
