package core

import (
	"errors"
	"sync"
	"time"

	"github.com/gocrud/infra/config"
	"github.com/gocrud/infra/di"
	"github.com/gocrud/infra/logging"
)

// DefaultShutdownTimeout 停止钩子的默认超时时间
const DefaultShutdownTimeout = 5 * time.Second

// Runtime 是框架的状态容器，Option 通过它注册服务和生命周期钩子
type Runtime struct {
	// Container 核心依赖注入容器
	Container di.Container

	// Lifecycle 应用级启动/停止钩子
	Lifecycle *LifecycleEvents

	// Logger 根日志记录器
	Logger logging.Logger

	// Config 由 WithConfiguration 设置，未设置时为 nil
	Config config.Configuration

	// ShutdownTimeout 停止钩子的超时时间
	ShutdownTimeout time.Duration

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	provided     int
	lifecycle    config.LifecycleSettings
}

// NewRuntime 创建一个新的运行时实例
func NewRuntime() *Runtime {
	logger := logging.NewLogger()
	return &Runtime{
		Container:       di.NewContainer(di.WithLogger(logger)),
		Lifecycle:       NewLifecycle(logger),
		Logger:          logger,
		ShutdownTimeout: DefaultShutdownTimeout,
		shutdownCh:      make(chan struct{}),
		lifecycle:       config.DefaultSettings().Lifecycle,
	}
}

// Shutdown 请求应用退出，可重复调用
func (rt *Runtime) Shutdown() {
	rt.shutdownOnce.Do(func() {
		close(rt.shutdownCh)
	})
}

// Done 返回一个通道，当应用需要退出时该通道会关闭
func (rt *Runtime) Done() <-chan struct{} {
	return rt.shutdownCh
}

// Provide 注册服务提供者 (语法糖)
// 支持构造函数、结构体指针或 reflect.Type
func (rt *Runtime) Provide(target any, opts ...di.Option) error {
	if _, err := di.RegisterAuto(rt.Container, target, opts...); err != nil {
		return err
	}
	rt.provided++
	return nil
}

// ProvideAs 以 T 为服务类型注册已有实例，常用于接口
func ProvideAs[T any](rt *Runtime, value T, opts ...di.Option) error {
	def := &di.ServiceDefinition{
		Type:    di.TypeOf[T](),
		Scope:   di.ScopeSingleton,
		Impl:    value,
		IsValue: true,
	}
	for _, opt := range opts {
		opt(def)
	}
	if err := rt.Container.Add(def); err != nil {
		return err
	}
	rt.provided++
	return nil
}

// Invoke 调用函数并注入依赖 (语法糖)
func (rt *Runtime) Invoke(function any) error {
	return di.Invoke(rt.Container, function)
}

// Apply 依次应用 Option，遇到错误立即返回
func (rt *Runtime) Apply(opts ...Option) error {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(rt); err != nil {
			return err
		}
	}
	return nil
}

var errAlreadyProvided = errors.New("core: settings must be applied before any service is provided")

// As 生成将实现绑定到接口的 di.Option
func As[T any]() di.Option {
	return di.Use[T]()
}
