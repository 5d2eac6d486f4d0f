package di

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/gocrud/infra/lifecycle"
)

// Scope 表示作用域生命周期上下文。
type Scope interface {
	Container
	// Dispose 按创建顺序的逆序执行作用域实例的销毁钩子，并释放引用。
	Dispose()
}

type scopedInstance struct {
	val any
}

type scopeEntry struct {
	inst atomic.Pointer[scopedInstance] // 尚未创建时为 nil
	mu   sync.Mutex                     // 用于创建此特定实例的锁
}

type scope struct {
	parent   *container
	entries  []scopeEntry // 按 ServiceDefinition.ID 索引的数组
	created  instanceTracker
	disposed atomic.Bool
}

func newScope(parent *container) *scope {
	count := parent.serviceCount()
	return &scope{
		parent:  parent,
		entries: make([]scopeEntry, count),
	}
}

func (s *scope) Add(def *ServiceDefinition) error {
	return fmt.Errorf("di: 无法在作用域上注册服务")
}

func (s *scope) Build() error {
	return nil // 作用域已基于父容器构建
}

func (s *scope) CreateScope() Scope {
	return s.parent.CreateScope()
}

func (s *scope) Get(typ reflect.Type) (any, error) {
	return s.GetNamed(typ, "")
}

func (s *scope) GetNamed(typ reflect.Type, name string) (any, error) {
	if s.disposed.Load() {
		return nil, fmt.Errorf("di: 作用域已释放")
	}

	// 1. 检查服务是否存在于父定义中
	def, err := s.parent.lookup(typ, name)
	if err != nil {
		return nil, err
	}

	// 2. 处理不同作用域
	switch def.Scope {
	case ScopeSingleton:
		return s.parent.GetNamed(typ, name)

	case ScopeTransient:
		// 使用此作用域作为容器创建新实例（用于依赖项）
		return s.parent.resolver.createInstance(s, def)

	case ScopeScoped:
		// 使用 ID 进行 O(1) 数组访问
		if def.ID < 0 || def.ID >= len(s.entries) {
			// 如果 ID 分配正确，这不应发生
			return nil, fmt.Errorf("di: 内部错误，无效的服务 ID %d", def.ID)
		}

		// 由于切片大小在创建后是固定的，此指针是稳定的。
		entry := &s.entries[def.ID]

		// 快速路径：检查是否已创建
		if inst := entry.inst.Load(); inst != nil {
			return inst.val, nil
		}

		// 慢速路径：带锁创建
		entry.mu.Lock()
		defer entry.mu.Unlock()

		// 双重检查
		if inst := entry.inst.Load(); inst != nil {
			return inst.val, nil
		}

		// 创建实例
		instance, err := s.parent.resolver.createInstance(s, def)
		if err != nil {
			return nil, err
		}

		entry.inst.Store(&scopedInstance{val: instance})
		s.created.track(instance)
		return instance, nil
	}

	return nil, fmt.Errorf("di: 未知作用域 %v", def.Scope)
}

func (s *scope) Dispose() {
	if !s.disposed.CompareAndSwap(false, true) {
		return
	}

	s.parent.resolver.destroyAll(s.created.drain())

	// 释放引用以允许 GC
	for i := range s.entries {
		s.entries[i].inst.Store(nil)
	}
}

// Close 等同于 Dispose
func (s *scope) Close() error {
	s.Dispose()
	return nil
}

func (s *scope) Lifecycle() *lifecycle.MetadataCache {
	return s.parent.lifecycle
}

// serviceCount 委托给父容器
func (s *scope) serviceCount() int {
	return s.parent.serviceCount()
}
