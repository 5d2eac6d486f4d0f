package mongodb

import (
	"github.com/gocrud/infra/core"
	"github.com/gocrud/infra/di"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Provide 注册 *Registry，并把每个客户端注册为命名的 *mongo.Client；
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

func client(name string) func(*Registry) (*mongo.Client, error) {
	return func(r *Registry) (*mongo.Client, error) {
		return r.Get(name)
	}
}
