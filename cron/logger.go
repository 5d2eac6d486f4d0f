package cron

import (
	"fmt"

	"github.com/gocrud/infra/logging"
	"github.com/robfig/cron/v3"
)

// cronLogger 将 logging.Logger 适配为 cron.Logger
type cronLogger struct {
	logger logging.Logger
}

func newCronLogger(logger logging.Logger) cron.Logger {
	return &cronLogger{logger: logger}
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, convertToFields(keysAndValues)...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	fields := append(convertToFields(keysAndValues), logging.Err(err))
	l.logger.Error(msg, fields...)
}

// convertToFields 键值对转字段，落单的末尾键被丢弃
func convertToFields(keysAndValues []any) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.Field{Key: fmt.Sprint(keysAndValues[i]), Value: keysAndValues[i+1]})
	}
	return fields
}
