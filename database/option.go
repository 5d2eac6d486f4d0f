package database

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gocrud/infra/config"
	"github.com/gocrud/infra/core"
	"github.com/gocrud/infra/di"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Provide 注册 *Registry，并把每个连接注册为命名的 *gorm.DB；
// 名为 default 的连接同时注册为无名 *gorm.DB。
func Provide(opts ...Options) core.Option {
	return func(rt *core.Runtime) error {
		registry, err := NewRegistry(rt.Logger, opts...)
		if err != nil {
			return err
		}
		if err := rt.Provide(registry); err != nil {
			return err
		}

		for _, name := range registry.Names() {
			if err := rt.Provide(connection(name), di.WithName(name)); err != nil {
				return err
			}
			if name == DefaultName {
				if err := rt.Provide(connection(name)); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

func connection(name string) func(*Registry) (*gorm.DB, error) {
	return func(r *Registry) (*gorm.DB, error) {
		return r.Get(name)
	}
}

// Opener 由 DSN 创建 gorm 驱动
type Opener func(dsn string) gorm.Dialector

var (
	driversMu sync.RWMutex
	drivers   = map[string]Opener{
		"sqlite": sqlite.Open,
	}
)

// RegisterDriver 注册驱动，供 FromConfig 按 driver 名称查找
func RegisterDriver(name string, open Opener) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = open
}

// Drivers 返回已注册的驱动名
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ConnectionConfig 配置文件中的单个连接
type ConnectionConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// FromConfig 从配置节读取连接，节下每个键是一个连接名：
//
//	database:
//	  default:
//	    driver: sqlite
//	    dsn: "file::memory:"
func FromConfig(section string, models ...any) core.Option {
	return func(rt *core.Runtime) error {
		if rt.Config == nil {
			return fmt.Errorf("database: FromConfig(%q) requires core.WithConfiguration", section)
		}
		conns, err := config.Section[map[string]ConnectionConfig](rt.Config, section)
		if err != nil {
			return err
		}

		names := make([]string, 0, len(conns))
		for name := range conns {
			names = append(names, name)
		}
		slices.Sort(names)

		opts := make([]Options, 0, len(names))
		for _, name := range names {
			c := conns[name]
			driversMu.RLock()
			open, ok := drivers[c.Driver]
			driversMu.RUnlock()
			if !ok {
				return fmt.Errorf("database: unknown driver %q for %q", c.Driver, name)
			}
			opts = append(opts, Options{
				Name:            name,
				Dialector:       open(c.DSN),
				MaxOpenConns:    c.MaxOpenConns,
				MaxIdleConns:    c.MaxIdleConns,
				ConnMaxLifetime: c.ConnMaxLifetime,
				AutoMigrate:     models,
			})
		}
		return Provide(opts...)(rt)
	}
}
