package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options 日志配置
type Options struct {
	// Level 最小日志级别，默认 Info
	Level LogLevel
	// Format 输出格式："json" 或 "console"，默认 console
	Format string
	// OutputPaths 输出目标，默认 stdout
	OutputPaths []string
	// Category 根 Logger 的名称
	Category string
}

// LoggingBuilder 日志构建器
type LoggingBuilder struct {
	options Options
}

// NewLoggingBuilder 创建日志构建器
func NewLoggingBuilder() *LoggingBuilder {
	return &LoggingBuilder{
		options: Options{
			Level:  LogLevelInfo,
			Format: "console",
		},
	}
}

// SetMinimumLevel 设置最小日志级别
func (b *LoggingBuilder) SetMinimumLevel(level LogLevel) *LoggingBuilder {
	b.options.Level = level
	return b
}

// UseJSON 使用 JSON 格式输出
func (b *LoggingBuilder) UseJSON() *LoggingBuilder {
	b.options.Format = "json"
	return b
}

// AddConsole 添加标准输出
func (b *LoggingBuilder) AddConsole() *LoggingBuilder {
	return b.AddOutput("stdout")
}

// AddFile 添加文件输出
func (b *LoggingBuilder) AddFile(path string) *LoggingBuilder {
	return b.AddOutput(path)
}

// AddOutput 添加任意 zap 支持的输出路径
func (b *LoggingBuilder) AddOutput(path string) *LoggingBuilder {
	b.options.OutputPaths = append(b.options.OutputPaths, path)
	return b
}

// WithCategory 设置根 Logger 的名称
func (b *LoggingBuilder) WithCategory(category string) *LoggingBuilder {
	b.options.Category = category
	return b
}

// Build 构建 Logger
func (b *LoggingBuilder) Build() (Logger, error) {
	return New(b.options)
}

// New 按选项构建基于 zap 的 Logger
func New(opts Options) (Logger, error) {
	var cfg zap.Config
	switch opts.Format {
	case "json":
		cfg = zap.NewProductionConfig()
	case "", "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.Development = false
	default:
		return nil, fmt.Errorf("logging: unknown format %q", opts.Format)
	}

	cfg.Level = zap.NewAtomicLevelAt(opts.Level.zapLevel())
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	if len(opts.OutputPaths) > 0 {
		cfg.OutputPaths = opts.OutputPaths
	} else {
		cfg.OutputPaths = []string{"stdout"}
	}

	z, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: build zap logger: %w", err)
	}
	if opts.Category != "" {
		z = z.Named(opts.Category)
	}
	return NewZapLogger(z), nil
}
