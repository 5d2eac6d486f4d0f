package logging

import "go.uber.org/zap"

// NewLogger 创建一个默认的控制台 Logger（便于测试使用）
func NewLogger() Logger {
	logger, err := NewLoggingBuilder().AddConsole().Build()
	if err != nil {
		return NewZapLogger(zap.NewExample())
	}
	return logger
}

// OrNop 在 logger 为 nil 时返回 NewNop()
func OrNop(logger Logger) Logger {
	if logger == nil {
		return NewNop()
	}
	return logger
}
