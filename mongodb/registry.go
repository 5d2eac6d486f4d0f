package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gocrud/infra/lifecycle"
	"github.com/gocrud/infra/logging"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// DefaultName 默认客户端名，同时以无名方式注册到容器
const DefaultName = "default"

// ErrClosed 表示注册表已关闭
var ErrClosed = errors.New("mongodb: registry closed")

// ClientOptions MongoDB 客户端配置选项
type ClientOptions struct {
	Name        string
	URI         string
	Username    string
	Password    string
	MaxPoolSize uint64
	MinPoolSize uint64
	Timeout     time.Duration // 连接、Ping 与断开的超时时间，默认 10 秒
	Ping        bool
}

// Validate 验证配置
func (o *ClientOptions) Validate() error {
	if o.Name == "" {
		return errors.New("mongodb: client name is required")
	}
	if o.URI == "" {
		return fmt.Errorf("mongodb: uri is required for %q", o.Name)
	}
	if o.MinPoolSize > 0 && o.MaxPoolSize > 0 && o.MinPoolSize > o.MaxPoolSize {
		return fmt.Errorf("mongodb: min pool size exceeds max pool size for %q", o.Name)
	}
	return nil
}

func (o *ClientOptions) timeout() time.Duration {
	if o.Timeout <= 0 {
		return 10 * time.Second
	}
	return o.Timeout
}

func (o *ClientOptions) clientOptions() *options.ClientOptions {
	opts := options.Client().ApplyURI(o.URI).
		SetConnectTimeout(o.timeout()).
		SetServerSelectionTimeout(o.timeout())
	if o.Username != "" || o.Password != "" {
		opts.SetAuth(options.Credential{
			Username: o.Username,
			Password: o.Password,
		})
	}
	if o.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(o.MaxPoolSize)
	}
	if o.MinPoolSize > 0 {
		opts.SetMinPoolSize(o.MinPoolSize)
	}
	return opts
}

// Registry 按名称管理 MongoDB 客户端
type Registry struct {
	mu      sync.RWMutex
	options []ClientOptions
	clients map[string]*mongo.Client
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
			return nil, fmt.Errorf("mongodb: client %q already configured", opts[i].Name)
		}
		seen[opts[i].Name] = struct{}{}
	}
	return &Registry{
		options: append([]ClientOptions(nil), opts...),
		clients: make(map[string]*mongo.Client, len(opts)),
		logger:  logging.OrNop(logger).WithCategory("mongodb"),
	}, nil
}

// Connect 创建全部客户端，任一失败时断开已创建的客户端
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
		client, err := mongo.Connect(opts.clientOptions())
		if err != nil {
			r.disconnectLocked()
			return fmt.Errorf("mongodb: connect %q: %w", opts.Name, err)
		}
		if opts.Ping {
			ctx, cancel := context.WithTimeout(context.Background(), opts.timeout())
			err = client.Ping(ctx, readpref.Primary())
			cancel()
			if err != nil {
				_ = disconnect(client, opts.timeout())
				r.disconnectLocked()
				return fmt.Errorf("mongodb: ping %q: %w", opts.Name, err)
			}
		}
		r.clients[opts.Name] = client
		r.logger.Info("mongodb client created", logging.Field{Key: "name", Value: opts.Name})
	}
	return nil
}

func disconnect(client *mongo.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return client.Disconnect(ctx)
}

// Close 断开全部客户端，重复调用无副作用
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.disconnectLocked()
}

func (r *Registry) disconnectLocked() error {
	var errs []error
	for i := len(r.options) - 1; i >= 0; i-- {
		opts := &r.options[i]
		client, ok := r.clients[opts.Name]
		if !ok {
			continue
		}
		delete(r.clients, opts.Name)
		if err := disconnect(client, opts.timeout()); err != nil {
			errs = append(errs, fmt.Errorf("mongodb: disconnect %q: %w", opts.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Get 返回指定名称的客户端
func (r *Registry) Get(name string) (*mongo.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrClosed
	}
	client, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("mongodb: client %q is not connected", name)
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
