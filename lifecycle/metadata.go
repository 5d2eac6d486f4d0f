package lifecycle

import (
	"fmt"
	"reflect"

	"github.com/gocrud/infra/logging"
)

// Metadata 某个类型的生命周期元数据，计算后不可变。
type Metadata struct {
	typ             reflect.Type
	initElements    []*Element // 基类 -> 派生类
	destroyElements []*Element // 派生类 -> 基类
	logger          logging.Logger
	logFailures     bool
}

// Type 返回元数据对应的结构体类型
func (m *Metadata) Type() reflect.Type { return m.typ }

// InitElements 返回构建后钩子的副本
func (m *Metadata) InitElements() []*Element {
	return append([]*Element(nil), m.initElements...)
}

// PreDestroyElements 返回销毁前钩子的副本
func (m *Metadata) PreDestroyElements() []*Element {
	return append([]*Element(nil), m.destroyElements...)
}

func (m *Metadata) HasInitMethods() bool       { return len(m.initElements) > 0 }
func (m *Metadata) HasPreDestroyMethods() bool { return len(m.destroyElements) > 0 }

// InvokeInitMethods 按基类到派生类的顺序调用构建后钩子。
// 第一个失败的钩子会中止后续调用，返回 *InjectionError。
func (m *Metadata) InvokeInitMethods(target any) error {
	if len(m.initElements) == 0 {
		return nil
	}

	v, err := m.targetValue(target)
	if err != nil {
		return err
	}

	for _, e := range m.initElements {
		m.logger.Trace("invoking init method",
			logging.Field{Key: "type", Value: m.typ.String()},
			logging.Field{Key: "method", Value: e.name})
		if err := e.call(v); err != nil {
			return &InjectionError{Type: m.typ, Method: e.name, Err: err}
		}
	}
	return nil
}

// InvokePreDestroyMethods 按派生类到基类的顺序调用销毁前钩子。
// 任何失败都会被吞掉（可选记录日志），后续钩子照常执行，本方法不会 panic。
func (m *Metadata) InvokePreDestroyMethods(target any) {
	if len(m.destroyElements) == 0 {
		return
	}

	v, err := m.targetValue(target)
	if err != nil {
		m.warn("skipping destroy methods", err)
		return
	}

	for _, e := range m.destroyElements {
		if err := e.call(v); err != nil {
			m.warn("destroy method failed", err, logging.Field{Key: "method", Value: e.name})
		}
	}
}

func (m *Metadata) warn(msg string, err error, fields ...logging.Field) {
	if !m.logFailures {
		return
	}
	fields = append(fields, logging.Field{Key: "type", Value: m.typ.String()}, logging.Err(err))
	m.logger.Warn(msg, fields...)
}

// targetValue 校验目标必须是 *Type 且非 nil。
func (m *Metadata) targetValue(target any) (reflect.Value, error) {
	v := reflect.ValueOf(target)
	if !v.IsValid() {
		return reflect.Value{}, ErrNilTarget
	}
	if v.Kind() != reflect.Pointer || v.Type().Elem() != m.typ {
		return reflect.Value{}, &InjectionError{Type: m.typ, Err: fmt.Errorf("%w: want *%v, got %T", ErrTargetType, m.typ, target)}
	}
	if v.IsNil() {
		return reflect.Value{}, ErrNilTarget
	}
	return v, nil
}
