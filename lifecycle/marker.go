package lifecycle

import "reflect"

// TagMethod 标记字段上用于指定方法名的标签键。
const TagMethod = "method"

// PostConstruct 标记：所在结构体的 method 标签指定的方法在实例构建并注入完成后调用。
type PostConstruct struct{}

// PreDestroy 标记：所在结构体的 method 标签指定的方法在实例销毁前调用。
type PreDestroy struct{}

// HookKind 钩子类型
type HookKind int

const (
	// KindPostConstruct 构建后钩子
	KindPostConstruct HookKind = iota
	// KindPreDestroy 销毁前钩子
	KindPreDestroy
)

func (k HookKind) String() string {
	switch k {
	case KindPostConstruct:
		return "PostConstruct"
	case KindPreDestroy:
		return "PreDestroy"
	default:
		return "Unknown"
	}
}

var (
	postConstructType = reflect.TypeOf(PostConstruct{})
	preDestroyType    = reflect.TypeOf(PreDestroy{})
)

// markerKind 判断字段类型是否为标记类型。
func markerKind(t reflect.Type) (HookKind, bool) {
	switch t {
	case postConstructType:
		return KindPostConstruct, true
	case preDestroyType:
		return KindPreDestroy, true
	}
	return 0, false
}
