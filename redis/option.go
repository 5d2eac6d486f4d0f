package redis

import (
	"github.com/gocrud/infra/core"
	"github.com/gocrud/infra/di"
	"github.com/redis/go-redis/v9"
)

// Provide 注册 *Registry，并把每个客户端注册为命名的 *redis.Client；
// 名为 default 的客户端同时注册为无名实例。
func Provide(opts ...ClientOptions) core.Option {
	return func(rt *core.Runtime) error {
		registry, err := NewRegistry(rt.Logger, opts...)
		if err != nil {
			return err
		}
		if err := rt.Provide(registry); err != nil {
			return err
		}

		for _, name := range registry.Names() {
			if err := rt.Provide(client(name), di.WithName(name)); err != nil {
				return err
			}
			if name == DefaultName {
				if err := rt.Provide(client(name)); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

func client(name string) func(*Registry) (*redis.Client, error) {
	return func(r *Registry) (*redis.Client, error) {
		return r.Get(name)
	}
}
