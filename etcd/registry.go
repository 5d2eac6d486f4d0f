package etcd

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gocrud/infra/lifecycle"
	"github.com/gocrud/infra/logging"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// DefaultName 默认客户端名，同时以无名方式注册到容器
const DefaultName = "default"

// ErrClosed 表示注册表已关闭
var ErrClosed = errors.New("etcd: registry closed")

// ClientOptions etcd 客户端配置选项
type ClientOptions struct {
	Name               string        // 客户端名称
	Endpoints          []string      // etcd 服务器地址列表
	DialTimeout        time.Duration // 连接超时时间，默认 5 秒
	Username           string        // 用户名（可选）
	Password           string        // 密码（可选）
	AutoSyncInterval   time.Duration // 自动同步间隔（可选）
	MaxCallSendMsgSize int           // 最大发送消息大小（可选）
	MaxCallRecvMsgSize int           // 最大接收消息大小（可选）
}

// Validate 验证配置
func (o *ClientOptions) Validate() error {
	if o.Name == "" {
		return errors.New("etcd: client name is required")
	}
	if len(o.Endpoints) == 0 {
		return fmt.Errorf("etcd: endpoints are required for %q", o.Name)
	}
	if o.DialTimeout < 0 {
		return fmt.Errorf("etcd: negative dial timeout for %q", o.Name)
	}
	return nil
}

func (o *ClientOptions) config() clientv3.Config {
	cfg := clientv3.Config{
		Endpoints:          o.Endpoints,
		DialTimeout:        o.DialTimeout,
		AutoSyncInterval:   o.AutoSyncInterval,
		MaxCallSendMsgSize: o.MaxCallSendMsgSize,
		MaxCallRecvMsgSize: o.MaxCallRecvMsgSize,
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if o.Username != "" {
		cfg.Username = o.Username
		cfg.Password = o.Password
	}
	return cfg
}

// Registry 按名称管理 etcd 客户端，容器创建后连接，关闭容器时释放
type Registry struct {
	mu      sync.RWMutex
	options []ClientOptions
	clients map[string]*clientv3.Client
	closed  bool
	logger  logging.Logger

	_ lifecycle.PostConstruct `method:"Connect"`
	_ lifecycle.PreDestroy    `method:"Close"`
}

// NewRegistry 校验配置并创建注册表
func NewRegistry(logger logging.Logger, opts ...ClientOptions) (*Registry, error) {
	seen := make(map[string]struct{}, len(opts))
	for i := range opts {
		if err := opts[i].Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[opts[i].Name]; dup {
			return nil, fmt.Errorf("etcd: client %q already configured", opts[i].Name)
		}
		seen[opts[i].Name] = struct{}{}
	}

	return &Registry{
		options: append([]ClientOptions(nil), opts...),
		clients: make(map[string]*clientv3.Client, len(opts)),
		logger:  logging.OrNop(logger).WithCategory("etcd"),
	}, nil
}

// Connect 创建全部客户端，任一失败时关闭已创建的客户端
func (r *Registry) Connect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	for i := range r.options {
		opts := &r.options[i]
		if _, ok := r.clients[opts.Name]; ok {
			continue
		}
		client, err := clientv3.New(opts.config())
		if err != nil {
			r.closeLocked()
			return fmt.Errorf("etcd: create client %q: %w", opts.Name, err)
		}
		r.clients[opts.Name] = client
		r.logger.Info("etcd client created",
			logging.Field{Key: "name", Value: opts.Name},
			logging.Field{Key: "endpoints", Value: opts.Endpoints})
	}
	return nil
}

// Close 关闭全部客户端，重复调用无副作用
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.closeLocked()
}

func (r *Registry) closeLocked() error {
	var errs []error
	for i := len(r.options) - 1; i >= 0; i-- {
		name := r.options[i].Name
		client, ok := r.clients[name]
		if !ok {
			continue
		}
		delete(r.clients, name)
		if err := client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("etcd: close client %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Get 返回指定名称的客户端
func (r *Registry) Get(name string) (*clientv3.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrClosed
	}
	client, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("etcd: client %q is not connected", name)
	}
	return client, nil
}

// Names 返回配置的客户端名
func (r *Registry) Names() []string {
	names := make([]string, len(r.options))
	for i := range r.options {
		names[i] = r.options[i].Name
	}
	return names
}
