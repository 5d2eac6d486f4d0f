package lifecycletest

import (
	"reflect"
	"sync"
	"testing"

	"github.com/gocrud/infra/lifecycle"
	"github.com/stretchr/testify/assert"
)

func TestRecorderConcurrent(t *testing.T) {
	var rec Recorder
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.Record("x")
		}()
	}
	wg.Wait()

	assert.Len(t, rec.Calls(), 50)
	rec.Reset()
	rec.AssertCalls(t)
}

type counted struct {
	_ lifecycle.PostConstruct `method:"Init"`
}

func (c *counted) Init() {}

func TestCountingDiscoverer(t *testing.T) {
	d := NewCountingDiscoverer(nil)
	cache := lifecycle.NewMetadataCache(lifecycle.WithDiscoverer(d))

	typ := reflect.TypeOf(counted{})
	_, err := cache.Find(typ)
	assert.NoError(t, err)
	_, err = cache.Find(typ)
	assert.NoError(t, err)

	assert.Equal(t, 1, d.Computations())
}
