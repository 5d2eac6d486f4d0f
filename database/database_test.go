package database_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/gocrud/infra/config"
	"github.com/gocrud/infra/core"
	"github.com/gocrud/infra/database"
	"github.com/gocrud/infra/di"
	"github.com/gocrud/infra/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Name string
}

func memoryDSN(t *testing.T, name string) string {
	return fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", t.Name(), name)
}

func TestDetectDialect(t *testing.T) {
	cases := map[string]database.Dialect{
		"sqlite":               database.SQLite,
		"SQLite3":              database.SQLite,
		"mysql":                database.MySQL,
		"MariaDB":              database.MySQL,
		"postgres":             database.Postgres,
		"PostgreSQL":           database.Postgres,
		"pgx":                  database.Postgres,
		"sqlserver":            database.SQLServer,
		"Microsoft SQL Server": database.SQLServer,
		"clickhouse":           database.ClickHouse,
		"oracle":               database.Unknown,
		"":                     database.Unknown,
	}
	for name, want := range cases {
		assert.Equal(t, want, database.DetectDialect(name), name)
	}
	assert.Equal(t, "postgres", database.Postgres.String())
	assert.Equal(t, database.Unknown, database.DialectOf(nil))
}

func TestRegistryDeclaresHooks(t *testing.T) {
	md, err := lifecycle.NewMetadataCache().FindFor(&database.Registry{})
	require.NoError(t, err)
	require.Len(t, md.InitElements(), 1)
	require.Len(t, md.PreDestroyElements(), 1)
	assert.Equal(t, "Open", md.InitElements()[0].Name())
	assert.Equal(t, "Close", md.PreDestroyElements()[0].Name())
}

func TestRegistryOpenAndClose(t *testing.T) {
	r, err := database.NewRegistry(nil,
		database.Options{Name: "primary", Dialector: sqlite.Open(memoryDSN(t, "primary")), AutoMigrate: []any{&User{}}},
		database.Options{Name: "replica", Dialector: sqlite.Open(memoryDSN(t, "replica"))},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"primary", "replica"}, r.Names())

	_, err = r.Get("primary")
	assert.Error(t, err)

	require.NoError(t, r.Open())
	primary, err := r.Get("primary")
	require.NoError(t, err)
	assert.Equal(t, database.SQLite, database.DialectOf(primary))
	assert.True(t, primary.Migrator().HasTable(&User{}))
	require.NoError(t, primary.Create(&User{Name: "ada"}).Error)

	var visited []string
	r.Each(func(name string, _ *gorm.DB) { visited = append(visited, name) })
	assert.Equal(t, []string{"primary", "replica"}, visited)

	sqlDB, err := primary.DB()
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.Error(t, sqlDB.Ping())

	_, err = r.Get("primary")
	assert.ErrorIs(t, err, database.ErrClosed)
	assert.ErrorIs(t, r.Open(), database.ErrClosed)
}

func TestNewRegistryValidates(t *testing.T) {
	dialector := sqlite.Open(memoryDSN(t, "x"))

	_, err := database.NewRegistry(nil, database.Options{Dialector: dialector})
	assert.Error(t, err)

	_, err = database.NewRegistry(nil, database.Options{Name: "x"})
	assert.Error(t, err)

	_, err = database.NewRegistry(nil,
		database.Options{Name: "x", Dialector: dialector},
		database.Options{Name: "x", Dialector: dialector},
	)
	assert.Error(t, err)
}

type reportService struct {
	Default *gorm.DB           `di:""`
	Reports *gorm.DB           `di:"reports"`
	Missing *gorm.DB           `di:"archive,?"`
	All     *database.Registry `di:""`
}

func TestProvideRegistersConnections(t *testing.T) {
	rt := core.NewRuntime()
	require.NoError(t, rt.Apply(
		database.Provide(
			database.Options{Name: database.DefaultName, Dialector: sqlite.Open(memoryDSN(t, "default"))},
			database.Options{Name: "reports", Dialector: sqlite.Open(memoryDSN(t, "reports"))},
		),
		func(rt *core.Runtime) error {
			_, err := di.RegisterAuto(rt.Container, di.TypeOf[*reportService]())
			return err
		},
	))
	require.NoError(t, rt.Container.Build())

	svc, err := di.Resolve[*reportService](rt.Container)
	require.NoError(t, err)
	require.NotNil(t, svc.Default)
	require.NotNil(t, svc.Reports)
	assert.Nil(t, svc.Missing)
	assert.NotSame(t, svc.Default, svc.Reports)

	named, err := di.ResolveNamed[*gorm.DB](rt.Container, database.DefaultName)
	require.NoError(t, err)
	assert.Same(t, svc.Default, named)

	require.NoError(t, rt.Container.Close())
	_, err = svc.All.Get("reports")
	assert.ErrorIs(t, err, database.ErrClosed)
}

func TestFromConfig(t *testing.T) {
	root, err := config.NewConfigurationBuilder().AddInMemory(map[string]any{
		"database": map[string]any{
			"default": map[string]any{
				"driver":            "sqlite",
				"dsn":               memoryDSN(t, "cfg"),
				"max_open_conns":    2,
				"conn_max_lifetime": "30s",
			},
		},
	}).Build(context.Background())
	require.NoError(t, err)

	rt := core.NewRuntime()
	require.NoError(t, rt.Apply(
		core.WithConfiguration(root),
		database.FromConfig("database", &User{}),
	))
	require.NoError(t, rt.Container.Build())
	defer rt.Container.Close()

	db, err := di.Resolve[*gorm.DB](rt.Container)
	require.NoError(t, err)
	assert.True(t, db.Migrator().HasTable(&User{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 2, sqlDB.Stats().MaxOpenConnections)
}

func TestFromConfigRejectsUnknownDriver(t *testing.T) {
	root, err := config.NewConfigurationBuilder().AddInMemory(map[string]any{
		"database": map[string]any{"main": map[string]any{"driver": "oracle"}},
	}).Build(context.Background())
	require.NoError(t, err)

	rt := core.NewRuntime()
	err = rt.Apply(core.WithConfiguration(root), database.FromConfig("database"))
	assert.ErrorContains(t, err, "unknown driver")
	assert.Contains(t, database.Drivers(), "sqlite")
}
