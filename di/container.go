package di

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/gocrud/infra/lifecycle"
	"github.com/gocrud/infra/logging"
)

// Container 是依赖注入容器的接口。
type Container interface {
	// Add 注册服务定义。
	Add(def *ServiceDefinition) error

	// Build 构建依赖图并进行验证。
	Build() error

	// Get 检索请求类型的实例（使用默认名称）。
	Get(typ reflect.Type) (any, error)

	// GetNamed 检索请求类型和名称的实例。
	GetNamed(typ reflect.Type, name string) (any, error)

	// CreateScope 为作用域实例创建一个新作用域。
	CreateScope() Scope

	// Close 按创建顺序的逆序执行单例的销毁钩子，并清空生命周期缓存。
	Close() error

	// Lifecycle 返回容器使用的生命周期元数据缓存。
	Lifecycle() *lifecycle.MetadataCache

	// serviceCount 返回注册服务的总数（用于数组大小调整）。
	serviceCount() int
}

// container 是具体的实现。
type container struct {
	mu              sync.RWMutex
	definitions     map[ServiceKey]*ServiceDefinition
	built           atomic.Bool
	closed          atomic.Bool
	serviceCountVal int

	// resolver 处理实例的创建
	resolver *resolver

	lifecycle  *lifecycle.MetadataCache
	logger     logging.Logger
	preload    bool
	singletons instanceTracker
}

// NewContainer 创建一个新的空容器。
func NewContainer(opts ...ContainerOption) Container {
	o := &containerOptions{preload: true}
	for _, opt := range opts {
		opt(o)
	}

	logger := logging.OrNop(o.logger).WithCategory("di")
	cache := o.lifecycle
	if cache == nil {
		cache = lifecycle.NewMetadataCache(lifecycle.WithLogger(o.logger))
	}

	return &container{
		definitions: make(map[ServiceKey]*ServiceDefinition),
		resolver:    newResolver(cache, logger),
		lifecycle:   cache,
		logger:      logger,
		preload:     o.preload,
	}
}

// Add 向容器添加服务定义。
func (c *container) Add(def *ServiceDefinition) error {
	if c.built.Load() {
		return fmt.Errorf("di: build 后无法注册服务")
	}
	// 已创建的值只有一个实例，按作用域多次返回会重复执行钩子
	if def.IsValue && def.Scope != ScopeSingleton {
		return fmt.Errorf("di: 已创建的值 %v 只能注册为单例", def.Type)
	}

	// 发现新类型时预先计算生命周期元数据，钩子声明错误在注册阶段暴露
	if c.preload {
		if err := c.discover(def); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := ServiceKey{Type: def.Type, Name: def.Name}

	if _, exists := c.definitions[key]; exists {
		if def.Name == "" {
			return fmt.Errorf("di: 服务 %v 已注册", def.Type)
		}
		return fmt.Errorf("di: 服务 %v (name=%s) 已注册", def.Type, def.Name)
	}

	c.definitions[key] = def
	return nil
}

// discover 将定义的具体类型交给生命周期缓存。接口类型要到实例创建后才能确定，跳过。
func (c *container) discover(def *ServiceDefinition) error {
	typ := concreteType(def)
	if typ == nil {
		return nil
	}
	md, err := c.lifecycle.Find(typ)
	if err == nil {
		err = valueHookError(typ, md)
	}
	if err != nil {
		return fmt.Errorf("di: 服务 %v 的生命周期声明无效: %w", def.Type, err)
	}
	return nil
}

func concreteType(def *ServiceDefinition) reflect.Type {
	var typ reflect.Type
	switch {
	case def.IsValue:
		typ = reflect.TypeOf(def.Impl)
	case def.Impl != nil && reflect.TypeOf(def.Impl).Kind() == reflect.Func:
		if fnType := reflect.TypeOf(def.Impl); fnType.NumOut() > 0 {
			typ = fnType.Out(0)
		}
	default:
		typ = def.ImplType
	}
	if typ == nil || typ.Kind() == reflect.Interface {
		return nil
	}
	return typ
}

// Build 构建依赖图并进行验证。
func (c *container) Build() error {
	if c.built.Load() {
		return nil // 已构建
	}

	c.mu.Lock()
	// 双重检查
	if c.built.Load() {
		c.mu.Unlock()
		return nil
	}

	// 0. 为定义分配 ID
	c.serviceCountVal = 0
	// 只要 ID 唯一且在构建后一致，分配顺序并不重要。
	for _, def := range c.definitions {
		def.ID = c.serviceCountVal
		c.serviceCountVal++
	}

	// 1. 依赖图和循环检测
	graph := newGraphBuilder(c.definitions)
	order, err := graph.buildOrder()
	if err != nil {
		c.mu.Unlock()
		return err
	}

	// 标记为已构建。此后，Add() 将失败，实际上使定义不可变。
	c.built.Store(true)
	c.mu.Unlock()

	// 2. 按拓扑顺序急切初始化单例
	// 我们在锁外执行此操作，以避免 Get() 锁定时死锁。
	for _, key := range order {
		def := c.definitions[key]
		if def.Scope == ScopeSingleton {
			if _, err := c.GetNamed(key.Type, key.Name); err != nil {
				return fmt.Errorf("di: 构建单例 %v (name=%s) 失败: %w", key.Type, key.Name, err)
			}
		}
	}

	c.logger.Debug("container built", logging.Field{Key: "services", Value: c.serviceCountVal})
	return nil
}

// Get 检索请求类型的实例。
func (c *container) Get(typ reflect.Type) (any, error) {
	return c.GetNamed(typ, "")
}

// GetNamed 检索请求类型和名称的实例。
func (c *container) GetNamed(typ reflect.Type, name string) (any, error) {
	if !c.built.Load() {
		return nil, fmt.Errorf("di: 容器未构建")
	}
	if c.closed.Load() {
		return nil, fmt.Errorf("di: 容器已关闭")
	}

	// 构建后定义是不可变的，因此我们可以无锁读取。
	def, err := c.lookup(typ, name)
	if err != nil {
		return nil, err
	}

	// 单例：在定义本身上使用 sync.Once
	if def.Scope == ScopeSingleton {
		def.singletonOnce.Do(func() {
			def.singletonInst, def.singletonErr = c.resolver.createInstance(c, def)
			if def.singletonErr == nil {
				c.singletons.track(def.singletonInst)
			}
		})
		return def.singletonInst, def.singletonErr
	}

	if def.Scope == ScopeTransient {
		return c.resolver.createInstance(c, def)
	}

	if def.Scope == ScopeScoped {
		return nil, fmt.Errorf("di: 无法从根容器解析作用域服务 %v。请使用 CreateScope()。", typ)
	}

	return nil, fmt.Errorf("di: 未知作用域 %v", def.Scope)
}

func (c *container) lookup(typ reflect.Type, name string) (*ServiceDefinition, error) {
	def, ok := c.definitions[ServiceKey{Type: typ, Name: name}]
	if ok {
		return def, nil
	}
	if name == "" {
		return nil, fmt.Errorf("di: 未找到服务 %v", typ)
	}
	return nil, fmt.Errorf("di: 未找到服务 %v (name=%s)", typ, name)
}

// CreateScope 为作用域实例创建一个新作用域。
func (c *container) CreateScope() Scope {
	return newScope(c)
}

// Close 销毁单例并清空生命周期缓存。重复调用无副作用。
func (c *container) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	instances := c.singletons.drain()
	c.logger.Debug("closing container", logging.Field{Key: "singletons", Value: len(instances)})
	c.resolver.destroyAll(instances)

	c.lifecycle.Clear()
	return nil
}

// Lifecycle 返回生命周期元数据缓存。
func (c *container) Lifecycle() *lifecycle.MetadataCache {
	return c.lifecycle
}

func (c *container) serviceCount() int {
	return c.serviceCountVal
}
