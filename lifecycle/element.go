package lifecycle

import (
	"go/token"
	"reflect"
)

// Invoker 对根实例（*C 的反射值）执行一个钩子。
type Invoker func(target reflect.Value) error

// Element 描述一个已发现的钩子方法。创建后不可变。
type Element struct {
	kind       HookKind
	owner      reflect.Type
	name       string
	identifier string
	depth      int
	invoke     Invoker
}

// NewElement 创建钩子元素，供自定义 Discoverer 使用。
// depth 为声明层级距根类型的嵌入深度。
func NewElement(kind HookKind, level Level, name string, invoke Invoker) *Element {
	return &Element{
		kind:       kind,
		owner:      level.Type,
		name:       name,
		identifier: identifierOf(level.Type, name),
		depth:      level.Depth,
		invoke:     invoke,
	}
}

// identifierOf 导出方法以方法名作为标识，覆盖关系会合并为一个条目；
// 未导出方法带上声明类型，各层级的同名私有方法互不影响。
func identifierOf(owner reflect.Type, name string) string {
	if token.IsExported(name) {
		return name
	}
	return owner.PkgPath() + "." + owner.Name() + "." + name
}

// Kind 返回钩子类型
func (e *Element) Kind() HookKind { return e.kind }

// Owner 返回声明钩子的类型
func (e *Element) Owner() reflect.Type { return e.owner }

// Name 返回方法名
func (e *Element) Name() string { return e.name }

// Identifier 返回用于去重的标识
func (e *Element) Identifier() string { return e.identifier }

func (e *Element) String() string {
	return e.kind.String() + "(" + e.owner.String() + "." + e.name + ")"
}

// call 执行钩子，panic 会被转换为 *PanicError。
func (e *Element) call(target reflect.Value) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return e.invoke(target)
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// methodInvoker 通过方法集下标调用，返回值为空或单个 error。
func methodInvoker(index int) Invoker {
	return func(target reflect.Value) error {
		results := target.Method(index).Call(nil)
		if len(results) == 1 && !results[0].IsNil() {
			return results[0].Interface().(error)
		}
		return nil
	}
}

// checkShape 校验钩子方法签名：除接收者外无参数，返回值为空或单个 error。
// mt 来自 reflect.Type.MethodByName，包含接收者。
func checkShape(owner reflect.Type, name string, mt reflect.Type) error {
	if n := mt.NumIn() - 1; n != 0 {
		return &ConfigError{Type: owner, Method: name, Reason: "hook methods must not take parameters"}
	}
	switch mt.NumOut() {
	case 0:
		return nil
	case 1:
		if mt.Out(0) == errorType {
			return nil
		}
	}
	return &ConfigError{Type: owner, Method: name, Reason: "hook methods must return nothing or a single error"}
}

// dedupe 按标识去重：保留首次出现的位置，调用最内层（深度最小）的声明。
func dedupe(elements []*Element) []*Element {
	if len(elements) < 2 {
		return elements
	}
	out := make([]*Element, 0, len(elements))
	pos := make(map[string]int, len(elements))
	for _, e := range elements {
		i, seen := pos[e.identifier]
		if !seen {
			pos[e.identifier] = len(out)
			out = append(out, e)
			continue
		}
		if e.depth < out[i].depth {
			out[i] = e
		}
	}
	return out
}
