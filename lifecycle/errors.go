package lifecycle

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrNilType 表示传入的类型为 nil。
	ErrNilType = errors.New("lifecycle: type must not be nil")
	// ErrNilTarget 表示调用钩子时目标实例为 nil。
	ErrNilTarget = errors.New("lifecycle: target must not be nil")
	// ErrTargetType 表示目标实例不是元数据对应类型的指针。
	ErrTargetType = errors.New("lifecycle: target type mismatch")
)

// ConfigError 钩子声明错误，例如方法带参数或方法不存在。
// 属于编程错误，不应重试。
type ConfigError struct {
	Type   reflect.Type // 声明钩子的类型
	Method string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("lifecycle: invalid hook method %s on %v: %s", e.Method, e.Type, e.Reason)
}

// InjectionError 初始化钩子执行失败。
type InjectionError struct {
	Type   reflect.Type // 目标实例的类型
	Method string       // 失败的钩子，目标校验失败时为空
	Err    error
}

func (e *InjectionError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("lifecycle: failed to invoke init methods on %v: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("lifecycle: init method %s on %v failed: %v", e.Method, e.Type, e.Err)
}

func (e *InjectionError) Unwrap() error {
	return e.Err
}

// PanicError 包装钩子方法中发生的 panic。
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("hook panicked: %v", e.Value)
}
