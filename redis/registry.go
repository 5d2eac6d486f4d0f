package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gocrud/infra/lifecycle"
	"github.com/gocrud/infra/logging"
	"github.com/redis/go-redis/v9"
)

// DefaultName 默认客户端名，同时以无名方式注册到容器
const DefaultName = "default"

// ErrClosed 表示注册表已关闭
var ErrClosed = errors.New("redis: registry closed")

// ClientOptions Redis 客户端配置选项
type ClientOptions struct {
	Name         string        // 客户端名称
	Addr         string        // Redis 服务器地址 (host:port)
	Password     string        // 密码（可选）
	DB           int           // 数据库编号
	DialTimeout  time.Duration // 连接超时时间
	ReadTimeout  time.Duration // 读取超时时间
	WriteTimeout time.Duration // 写入超时时间
	PoolSize     int           // 连接池大小
	MinIdleConns int           // 最小空闲连接数
	MaxRetries   int           // 最大重试次数
	// Ping 为 true 时连接阶段探测服务端，失败则容器构建失败
	Ping bool
}

// Validate 验证配置
func (o *ClientOptions) Validate() error {
	switch {
	case o.Name == "":
		return errors.New("redis: client name is required")
	case o.Addr == "":
		return fmt.Errorf("redis: address is required for %q", o.Name)
	case o.DB < 0:
		return fmt.Errorf("redis: negative database number for %q", o.Name)
	}
	return nil
}

func (o *ClientOptions) redisOptions() *redis.Options {
	dial := o.DialTimeout
	if dial == 0 {
		dial = 5 * time.Second
	}
	return &redis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  dial,
		ReadTimeout:  o.ReadTimeout,
		WriteTimeout: o.WriteTimeout,
		PoolSize:     o.PoolSize,
		MinIdleConns: o.MinIdleConns,
		MaxRetries:   o.MaxRetries,
	}
}

// Registry 按名称管理 Redis 客户端，容器创建后连接，关闭容器时释放
type Registry struct {
	mu      sync.RWMutex
	options []ClientOptions
	clients map[string]*redis.Client
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
			return nil, fmt.Errorf("redis: client %q already configured", opts[i].Name)
		}
		seen[opts[i].Name] = struct{}{}
	}
	return &Registry{
		options: append([]ClientOptions(nil), opts...),
		clients: make(map[string]*redis.Client, len(opts)),
		logger:  logging.OrNop(logger).WithCategory("redis"),
	}, nil
}

// Connect 创建全部客户端；开启 Ping 的客户端探测失败时关闭已创建的客户端
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
		client := redis.NewClient(opts.redisOptions())
		if opts.Ping {
			if err := ping(client, opts.DialTimeout); err != nil {
				_ = client.Close()
				r.closeLocked()
				return fmt.Errorf("redis: ping %q: %w", opts.Name, err)
			}
		}
		r.clients[opts.Name] = client
		r.logger.Info("redis client created",
			logging.Field{Key: "name", Value: opts.Name},
			logging.Field{Key: "addr", Value: opts.Addr})
	}
	return nil
}

func ping(client *redis.Client, timeout time.Duration) error {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return client.Ping(ctx).Err()
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
			errs = append(errs, fmt.Errorf("redis: close client %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Get 返回指定名称的客户端
func (r *Registry) Get(name string) (*redis.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrClosed
	}
	client, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("redis: client %q is not connected", name)
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
