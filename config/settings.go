package config

import (
	"errors"
	"fmt"
)

// Settings 是平台自身读取的配置
type Settings struct {
	Logging   LoggingSettings   `yaml:"logging"`
	Lifecycle LifecycleSettings `yaml:"lifecycle"`
}

// LoggingSettings 对应 logging 节
type LoggingSettings struct {
	Level   string   `yaml:"level"`
	Format  string   `yaml:"format"`
	Outputs []string `yaml:"outputs"`
}

// LifecycleSettings 对应 lifecycle 节
type LifecycleSettings struct {
	// LogDestroyFailures 销毁钩子失败时是否输出警告
	LogDestroyFailures bool `yaml:"log_destroy_failures"`
	// Preload 注册服务时是否预先计算生命周期元数据
	Preload bool `yaml:"preload"`
}

// DefaultSettings 返回默认配置
func DefaultSettings() Settings {
	return Settings{
		Logging: LoggingSettings{
			Level:  "info",
			Format: "console",
		},
		Lifecycle: LifecycleSettings{
			LogDestroyFailures: true,
			Preload:            true,
		},
	}
}

// LoadSettings 在默认值之上绑定 logging 与 lifecycle 节，缺失的节保持默认。
func LoadSettings(cfg Configuration) (Settings, error) {
	s := DefaultSettings()
	if err := bindOptional(cfg, "logging", &s.Logging); err != nil {
		return s, err
	}
	if err := bindOptional(cfg, "lifecycle", &s.Lifecycle); err != nil {
		return s, err
	}
	return s, nil
}

func bindOptional(cfg Configuration, key string, target any) error {
	err := cfg.Bind(key, target)
	if err == nil || errors.Is(err, ErrKeyNotFound) {
		return nil
	}
	return err
}

// Section 将 section 绑定为 T。section 为空时绑定整个配置。
func Section[T any](cfg Configuration, section string) (T, error) {
	var t T
	if err := cfg.Bind(section, &t); err != nil {
		return t, fmt.Errorf("config: section %q: %w", section, err)
	}
	return t, nil
}
