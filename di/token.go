package di

import (
	"fmt"
	"reflect"
)

// Token 带类型的服务名，用于区分同一类型的多个实例，
// 例如多个数据库连接或字符串配置值。
//
//	var ReportDB = di.NewToken[*gorm.DB]("report")
//
//	_ = di.ProvideToken(c, ReportDB, db)
//	db, _ := di.ResolveToken(c, ReportDB)
type Token[T any] struct {
	name string
	typ  reflect.Type
}

// NewToken 创建一个新的 Token
func NewToken[T any](name string) *Token[T] {
	return &Token[T]{
		name: name,
		typ:  TypeOf[T](),
	}
}

// Name 返回 Token 的名称
func (t *Token[T]) Name() string {
	return t.name
}

// Type 返回 Token 的类型
func (t *Token[T]) Type() reflect.Type {
	return t.typ
}

// String 返回 Token 的字符串表示
func (t *Token[T]) String() string {
	return fmt.Sprintf("Token[%s](%s)", t.typ, t.name)
}

// WithToken 以 Token 的名称注册服务
func WithToken[T any](t *Token[T]) Option {
	return WithName(t.name)
}

// ProvideToken 以 Token 注册一个已创建的值。
// 值按 Token 的类型注册，因此接口类型的 Token 也能用具体实现注册。
func ProvideToken[T any](c Container, t *Token[T], value T) error {
	return c.Add(&ServiceDefinition{
		Type:    t.typ,
		Name:    t.name,
		Scope:   ScopeSingleton,
		Impl:    value,
		IsValue: true,
	})
}

// ResolveToken 按 Token 解析实例
func ResolveToken[T any](c Container, t *Token[T]) (T, error) {
	return ResolveNamed[T](c, t.name)
}

// TypeOf 获取类型 T 的 reflect.Type
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
