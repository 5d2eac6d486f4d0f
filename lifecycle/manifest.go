package lifecycle

import (
	"fmt"
	"reflect"
	"sync"
	"unsafe"
)

// Hook 显式注册的钩子，fn 作为跳板函数调用（可访问未导出方法）。
type Hook[T any] struct {
	kind HookKind
	name string
	fn   func(*T) error
}

// OnPostConstruct 声明一个构建后钩子
func OnPostConstruct[T any](name string, fn func(*T) error) Hook[T] {
	return Hook[T]{kind: KindPostConstruct, name: name, fn: fn}
}

// OnPreDestroy 声明一个销毁前钩子
func OnPreDestroy[T any](name string, fn func(*T) error) Hook[T] {
	return Hook[T]{kind: KindPreDestroy, name: name, fn: fn}
}

type manifestHook struct {
	kind HookKind
	name string
	call func(ptr reflect.Value) error
}

// Manifest 按类型登记的显式钩子清单，实现 Discoverer。
type Manifest struct {
	mu    sync.RWMutex
	hooks map[reflect.Type][]manifestHook
}

// NewManifest 创建空清单
func NewManifest() *Manifest {
	return &Manifest{
		hooks: make(map[reflect.Type][]manifestHook),
	}
}

// Register 为结构体类型 T 登记钩子，同一类型内保持登记顺序。
// 应在相关类型的元数据首次计算之前完成登记。
func Register[T any](m *Manifest, hooks ...Hook[T]) error {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if typ.Kind() != reflect.Struct {
		return &ConfigError{Type: typ, Reason: "hooks can only be registered for struct types"}
	}

	entries := make([]manifestHook, 0, len(hooks))
	for _, h := range hooks {
		if h.name == "" {
			return &ConfigError{Type: typ, Reason: "hook name must not be empty"}
		}
		if h.fn == nil {
			return &ConfigError{Type: typ, Method: h.name, Reason: "hook function must not be nil"}
		}
		fn := h.fn
		entries = append(entries, manifestHook{
			kind: h.kind,
			name: h.name,
			call: func(ptr reflect.Value) error {
				return fn((*T)(ptr.UnsafePointer()))
			},
		})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[typ] = append(m.hooks[typ], entries...)
	return nil
}

// Discover 实现 Discoverer
func (m *Manifest) Discover(root reflect.Type, level Level) ([]*Element, error) {
	m.mu.RLock()
	registered := m.hooks[level.Type]
	m.mu.RUnlock()

	elements := make([]*Element, 0, len(registered))
	for _, h := range registered {
		index := level.Index
		elements = append(elements, NewElement(h.kind, level, h.name, func(target reflect.Value) error {
			ptr, err := levelPointer(target, index)
			if err != nil {
				return err
			}
			return h.call(ptr)
		}))
	}
	return elements, nil
}

// levelPointer 返回嵌入层的指针。嵌入字段可能未导出，这里绕过只读标记直接取地址。
func levelPointer(target reflect.Value, index []int) (reflect.Value, error) {
	if len(index) == 0 {
		return target, nil
	}
	v, err := target.Elem().FieldByIndexErr(index)
	if err != nil {
		return reflect.Value{}, err
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("embedded %v is nil", v.Type())
		}
		return reflect.NewAt(v.Type().Elem(), v.UnsafePointer()), nil
	}
	return reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())), nil
}
