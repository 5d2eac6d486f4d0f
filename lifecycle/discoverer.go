package lifecycle

import (
	"go/token"
	"reflect"
	"strings"
)

// Level 层级结构中的一层：根类型本身或其嵌入的结构体。
type Level struct {
	Type  reflect.Type // 该层的结构体类型
	Index []int        // 从根类型到该层的字段下标路径，根类型为 nil
	Depth int          // 嵌入深度，根类型为 0
}

// Discoverer 发现某一层直接声明的钩子（不含嵌入类型提升的方法）。
// root 为正在计算元数据的根类型，返回元素的 Invoker 接收 *root 的反射值。
type Discoverer interface {
	Discover(root reflect.Type, level Level) ([]*Element, error)
}

// DiscovererFunc 函数适配器
type DiscovererFunc func(root reflect.Type, level Level) ([]*Element, error)

func (f DiscovererFunc) Discover(root reflect.Type, level Level) ([]*Element, error) {
	return f(root, level)
}

// Discoverers 串联多个 Discoverer，同一层的结果按顺序拼接。
func Discoverers(ds ...Discoverer) Discoverer {
	return DiscovererFunc(func(root reflect.Type, level Level) ([]*Element, error) {
		var all []*Element
		for _, d := range ds {
			if d == nil {
				continue
			}
			elements, err := d.Discover(root, level)
			if err != nil {
				return nil, err
			}
			all = append(all, elements...)
		}
		return all, nil
	})
}

// TagDiscoverer 基于 PostConstruct / PreDestroy 标记字段发现钩子。
type TagDiscoverer struct{}

func (TagDiscoverer) Discover(root reflect.Type, level Level) ([]*Element, error) {
	var elements []*Element
	for i := 0; i < level.Type.NumField(); i++ {
		field := level.Type.Field(i)
		kind, ok := markerKind(field.Type)
		if !ok {
			continue
		}

		name := strings.TrimSpace(field.Tag.Get(TagMethod))
		if name == "" {
			return nil, &ConfigError{Type: level.Type, Method: field.Name, Reason: "marker field has no method tag"}
		}
		if !token.IsExported(name) {
			return nil, &ConfigError{Type: level.Type, Method: name, Reason: "unexported hook methods must be registered in a Manifest"}
		}

		// 该层自身必须声明（或经嵌入获得）此方法
		declared, ok := reflect.PointerTo(level.Type).MethodByName(name)
		if !ok {
			return nil, &ConfigError{Type: level.Type, Method: name, Reason: "method not found"}
		}
		if err := checkShape(level.Type, name, declared.Type); err != nil {
			return nil, err
		}

		// 实际调用根类型方法集中的版本，外层覆盖优先
		effective, ok := reflect.PointerTo(root).MethodByName(name)
		if !ok {
			return nil, &ConfigError{Type: root, Method: name, Reason: "method is ambiguous among embedded types"}
		}
		if err := checkShape(root, name, effective.Type); err != nil {
			return nil, err
		}

		elements = append(elements, NewElement(kind, level, name, methodInvoker(effective.Index)))
	}
	return elements, nil
}
