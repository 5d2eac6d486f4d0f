package di

import (
	"fmt"
	"reflect"

	"github.com/gocrud/infra/lifecycle"
	"github.com/gocrud/infra/logging"
)

type resolver struct {
	lifecycle *lifecycle.MetadataCache
	logger    logging.Logger
}

func newResolver(cache *lifecycle.MetadataCache, logger logging.Logger) *resolver {
	return &resolver{
		lifecycle: cache,
		logger:    logger,
	}
}

// createInstance 创建 def 描述的服务的新实例，并在注入完成后执行构建后钩子。
// 它使用提供的容器 c 递归解析依赖项。
func (r *resolver) createInstance(c Container, def *ServiceDefinition) (any, error) {
	inst, err := r.construct(c, def)
	if err != nil {
		return nil, err
	}
	if err := r.postConstruct(inst); err != nil {
		return nil, err
	}
	return inst, nil
}

func (r *resolver) construct(c Container, def *ServiceDefinition) (any, error) {
	if def.IsValue {
		if def.InjectFields && def.Schema != nil && len(def.Schema.Fields) > 0 {
			if err := r.injectFields(c, reflect.ValueOf(def.Impl).Elem(), def.Schema); err != nil {
				return nil, err
			}
		}
		return def.Impl, nil
	}

	if def.IsFactory {
		return r.invokeFunction(c, def.Impl, def.Schema)
	}

	// 如果 Impl 显式提供为函数（构造函数），则使用它
	if def.Impl != nil && reflect.TypeOf(def.Impl).Kind() == reflect.Func {
		return r.invokeFunction(c, def.Impl, def.Schema)
	}

	// 否则，视为结构体注入
	return r.createStruct(c, def)
}

// postConstruct 执行实例的构建后钩子。声明了钩子的类型必须以指针形式创建，
// 否则销毁钩子拿不到同一个实例。
func (r *resolver) postConstruct(inst any) error {
	if inst == nil {
		return nil
	}
	md, err := r.lifecycle.FindFor(inst)
	if err != nil {
		return err
	}
	if typ := reflect.TypeOf(inst); typ.Kind() != reflect.Pointer {
		return valueHookError(typ, md)
	}
	return md.InvokeInitMethods(inst)
}

// valueHookError 值类型无法承载钩子，返回 *lifecycle.ConfigError
func valueHookError(typ reflect.Type, md *lifecycle.Metadata) error {
	if typ.Kind() == reflect.Pointer {
		return nil
	}
	elements := append(md.InitElements(), md.PreDestroyElements()...)
	if len(elements) == 0 {
		return nil
	}
	return &lifecycle.ConfigError{
		Type:   elements[0].Owner(),
		Method: elements[0].Name(),
		Reason: fmt.Sprintf("%v declares lifecycle hooks and must be registered as *%v", typ, typ),
	}
}

// destroyAll 按逆序执行销毁钩子，失败只记录日志。
func (r *resolver) destroyAll(instances []any) {
	for i := len(instances) - 1; i >= 0; i-- {
		r.preDestroy(instances[i])
	}
}

func (r *resolver) preDestroy(inst any) {
	if reflect.TypeOf(inst).Kind() != reflect.Pointer {
		return
	}
	md, err := r.lifecycle.FindFor(inst)
	if err != nil {
		r.logger.Warn("lifecycle metadata unavailable, skipping destroy",
			logging.Field{Key: "type", Value: fmt.Sprintf("%T", inst)}, logging.Err(err))
		return
	}
	md.InvokePreDestroyMethods(inst)
}

// invokeFunction 调用工厂或构造函数。
// 它使用预计算的 schema 将依赖项注入函数参数。
func (r *resolver) invokeFunction(c Container, fn any, schema *InjectionSchema) (any, error) {
	fnVal := reflect.ValueOf(fn)
	// 使用 schema 获取参数类型而不是反射
	argTypes := schema.Args

	args := make([]reflect.Value, len(argTypes))
	for i, argType := range argTypes {
		argVal, err := c.Get(argType)
		if err != nil {
			return nil, fmt.Errorf("参数 %d: %w", i, err)
		}
		args[i] = valueOf(argVal, argType)
	}

	results := fnVal.Call(args)

	if len(results) == 0 {
		return nil, fmt.Errorf("工厂/构造函数没有返回值")
	}

	// 检查最后一个返回值是否为错误
	if len(results) > 1 {
		last := results[len(results)-1]
		if last.Type().Implements(errorType) {
			if !last.IsNil() {
				return nil, last.Interface().(error)
			}
		}
	}

	// 返回第一个值
	return results[0].Interface(), nil
}

// createStruct 实例化结构体并注入标记为 `di` 的字段。
func (r *resolver) createStruct(c Container, def *ServiceDefinition) (any, error) {
	implType := def.ImplType

	var val reflect.Value

	if implType.Kind() == reflect.Ptr {
		// 创建 Ptr -> Struct
		val = reflect.New(implType.Elem())
	} else {
		// 注册的是结构体值，reflect.New(implType) 返回 *Struct
		val = reflect.New(implType)
	}

	// 在结构体上注入字段（val 在这里始终是指针）
	if err := r.injectFields(c, val.Elem(), def.Schema); err != nil {
		return nil, err
	}

	if implType.Kind() == reflect.Ptr {
		return val.Interface(), nil
	}
	return val.Elem().Interface(), nil
}

func (r *resolver) injectFields(c Container, structVal reflect.Value, schema *InjectionSchema) error {
	// 使用预计算 schema 仅迭代需要注入的字段
	for _, fieldInfo := range schema.Fields {
		// 解析依赖
		depVal, err := c.GetNamed(fieldInfo.Type, fieldInfo.ServiceName)
		if err != nil {
			if fieldInfo.Optional {
				continue
			}
			return fmt.Errorf("字段 %s: %w", fieldInfo.Name, err)
		}

		// 设置字段
		structVal.FieldByIndex(fieldInfo.Index).Set(valueOf(depVal, fieldInfo.Type))
	}
	return nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// valueOf 处理 nil 依赖（接口或指针），避免 Set 零 Value 时 panic
func valueOf(v any, typ reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(typ)
	}
	return reflect.ValueOf(v)
}
