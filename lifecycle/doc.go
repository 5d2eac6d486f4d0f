// Package lifecycle 发现并调用结构体上声明的生命周期钩子方法。
//
// 钩子通过零大小的标记字段声明，method 标签给出方法名：
//
//	type Repository struct {
//		_ lifecycle.PostConstruct `method:"Open"`
//		_ lifecycle.PreDestroy    `method:"Close"`
//	}
//
// 嵌入的结构体构成层级结构（类似继承链）。初始化钩子按基类到派生类的顺序执行，
// 销毁钩子按派生类到基类的顺序执行。同名的导出方法只会调用一次，并且调用的是最外层的覆盖版本。
//
// 未导出的方法无法通过反射调用，需要借助 Manifest 注册一个跳板函数：
//
//	m := lifecycle.NewManifest()
//	lifecycle.Register(m, lifecycle.OnPostConstruct("init", func(r *Repository) error {
//		return r.init()
//	}))
//	cache := lifecycle.NewMetadataCache(lifecycle.WithManifest(m))
//
// MetadataCache 按类型缓存计算结果，可并发使用。
package lifecycle
