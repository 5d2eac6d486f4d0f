package etcd

import (
	"github.com/gocrud/infra/config"
	"github.com/gocrud/infra/core"
	"github.com/gocrud/infra/di"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Provide 注册 *Registry，并把每个客户端注册为命名的 *clientv3.Client；
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

func client(name string) func(*Registry) (*clientv3.Client, error) {
	return func(r *Registry) (*clientv3.Client, error) {
		return r.Get(name)
	}
}

// Source 返回使用 client 读取 prefix 下配置的配置源，client 的关闭由调用方负责
func Source(client *clientv3.Client, prefix string) config.Source {
	src := config.NewEtcdSource(config.EtcdOptions{Endpoints: client.Endpoints(), Prefix: prefix})
	src.Client = client
	return src
}
