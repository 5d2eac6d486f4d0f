package mongodb_test

import (
	"testing"
	"time"

	"github.com/gocrud/infra/core"
	"github.com/gocrud/infra/di"
	"github.com/gocrud/infra/lifecycle"
	"github.com/gocrud/infra/mongodb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

func TestClientOptionsValidate(t *testing.T) {
	cases := []mongodb.ClientOptions{
		{URI: "mongodb://localhost:27017"},
		{Name: "a"},
		{Name: "a", URI: "mongodb://localhost:27017", MinPoolSize: 10, MaxPoolSize: 5},
	}
	for _, opts := range cases {
		_, err := mongodb.NewRegistry(nil, opts)
		assert.Error(t, err)
	}
}

func TestRegistryDeclaresHooks(t *testing.T) {
	md, err := lifecycle.NewMetadataCache().FindFor(&mongodb.Registry{})
	require.NoError(t, err)
	assert.True(t, md.HasInitMethods())
	assert.True(t, md.HasPreDestroyMethods())
}

func TestProvideManagesClients(t *testing.T) {
	rt := core.NewRuntime()
	require.NoError(t, rt.Apply(mongodb.Provide(
		mongodb.ClientOptions{Name: mongodb.DefaultName, URI: "mongodb://127.0.0.1:27999", Timeout: time.Second},
		mongodb.ClientOptions{Name: "audit", URI: "mongodb://127.0.0.1:27998", Timeout: time.Second},
	)))
	require.NoError(t, rt.Container.Build())

	def, err := di.Resolve[*mongo.Client](rt.Container)
	require.NoError(t, err)
	audit, err := di.ResolveNamed[*mongo.Client](rt.Container, "audit")
	require.NoError(t, err)
	assert.NotSame(t, def, audit)

	registry, err := di.Resolve[*mongodb.Registry](rt.Container)
	require.NoError(t, err)
	require.NoError(t, rt.Container.Close())
	_, err = registry.Get("audit")
	assert.ErrorIs(t, err, mongodb.ErrClosed)
}

func TestInvalidURIFailsBuild(t *testing.T) {
	rt := core.NewRuntime()
	require.NoError(t, rt.Apply(mongodb.Provide(mongodb.ClientOptions{Name: "bad", URI: "http://nope"})))
	var injErr *lifecycle.InjectionError
	assert.ErrorAs(t, rt.Container.Build(), &injErr)
}
