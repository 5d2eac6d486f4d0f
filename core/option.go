package core

import (
	"context"
	"fmt"

	"github.com/gocrud/infra/config"
	"github.com/gocrud/infra/di"
	"github.com/gocrud/infra/lifecycle"
	"github.com/gocrud/infra/logging"
)

// Option 定义了修改 Runtime 状态的函数签名
// 这是框架唯一的扩展点
type Option func(rt *Runtime) error

// WithSettings 按 Settings 重建日志记录器和容器。
// 必须先于任何服务注册应用，否则返回错误。
func WithSettings(s config.Settings) Option {
	return func(rt *Runtime) error {
		if rt.provided > 0 {
			return errAlreadyProvided
		}

		level, err := logging.ParseLevel(s.Logging.Level)
		if err != nil {
			return err
		}
		logger, err := logging.New(logging.Options{
			Level:       level,
			Format:      s.Logging.Format,
			OutputPaths: s.Logging.Outputs,
		})
		if err != nil {
			return err
		}

		rt.lifecycle = s.Lifecycle
		rt.rebuild(logger)
		return nil
	}
}

// rebuild 用 logger 和当前的生命周期设置重建容器
func (rt *Runtime) rebuild(logger logging.Logger) {
	cache := lifecycle.NewMetadataCache(
		lifecycle.WithLogger(logger),
		lifecycle.WithDestroyFailureLogging(rt.lifecycle.LogDestroyFailures),
	)
	rt.Logger = logger
	rt.Lifecycle.logger = logger.WithCategory("lifecycle")
	rt.Container = di.NewContainer(
		di.WithLogger(logger),
		di.WithLifecycle(cache),
		di.WithPreload(rt.lifecycle.Preload),
	)
}

// WithConfiguration 从 cfg 读取 Settings 并应用，然后把 cfg 注册为 config.Configuration。
func WithConfiguration(cfg config.Configuration) Option {
	return func(rt *Runtime) error {
		settings, err := config.LoadSettings(cfg)
		if err != nil {
			return err
		}
		if err := WithSettings(settings)(rt); err != nil {
			return err
		}
		rt.Config = cfg
		return ProvideAs[config.Configuration](rt, cfg)
	}
}

// WithConfigFile 依次加载 YAML 文件（可缺省）与带前缀的环境变量
func WithConfigFile(path, envPrefix string) Option {
	return func(rt *Runtime) error {
		root, err := config.NewConfigurationBuilder().
			AddYamlFile(path, true).
			AddEnvironmentVariables(envPrefix).
			Build(context.Background())
		if err != nil {
			return err
		}
		return WithConfiguration(root)(rt)
	}
}

// Bind 将配置节绑定为 *T 并注册为单例
func Bind[T any](section string) Option {
	return func(rt *Runtime) error {
		if rt.Config == nil {
			return fmt.Errorf("core: Bind(%q) requires WithConfiguration", section)
		}
		settings, err := config.Section[T](rt.Config, section)
		if err != nil {
			return err
		}
		return rt.Provide(&settings)
	}
}

// WithLogger 替换根日志记录器，同样必须先于服务注册。
// 已应用的 Settings 中的生命周期设置保留；之后再应用 WithSettings 会按其日志配置替换 logger。
func WithLogger(logger logging.Logger) Option {
	return func(rt *Runtime) error {
		if rt.provided > 0 {
			return errAlreadyProvided
		}
		rt.rebuild(logging.OrNop(logger))
		return nil
	}
}
