package cron

import (
	"fmt"
	"reflect"
	"time"

	"github.com/gocrud/infra/core"
	"github.com/gocrud/infra/di"
	"github.com/gocrud/infra/logging"
)

type jobDefinition struct {
	spec    string
	name    string
	handler any
}

// Builder 收集调度器选项与任务
type Builder struct {
	options  []Option
	location string
	jobs     []jobDefinition
}

// BuilderOption 用于配置 Builder
type BuilderOption func(*Builder)

// Seconds 启用秒级精度
func Seconds() BuilderOption {
	return func(b *Builder) { b.options = append(b.options, WithSeconds()) }
}

// Location 按 IANA 名称设置时区
func Location(name string) BuilderOption {
	return func(b *Builder) { b.location = name }
}

// CronLogger 启用 cron 库的内部调度日志
func CronLogger() BuilderOption {
	return func(b *Builder) { b.options = append(b.options, WithCronLogger()) }
}

// StopTimeout 设置停止时等待运行中任务的时间
func StopTimeout(d time.Duration) BuilderOption {
	return func(b *Builder) { b.options = append(b.options, WithStopTimeout(d)) }
}

// AddJob 添加任务。handler 为 func() 时直接执行；
// 其他函数的参数在每次执行时从容器解析，可选返回 error。
//
//	cron.AddJob("@every 5m", "sync-data", func(svc *DataService) error {
//	    return svc.Sync()
//	})
func AddJob(spec, name string, handler any) BuilderOption {
	return func(b *Builder) {
		b.jobs = append(b.jobs, jobDefinition{spec: spec, name: name, handler: handler})
	}
}

// New 启用定时任务：注册 *Scheduler 单例，容器构建时启动，关闭时停止
func New(opts ...BuilderOption) core.Option {
	return func(rt *core.Runtime) error {
		b := &Builder{}
		for _, opt := range opts {
			opt(b)
		}

		options := b.options
		if b.location != "" {
			loc, err := time.LoadLocation(b.location)
			if err != nil {
				return fmt.Errorf("cron: location %q: %w", b.location, err)
			}
			options = append(options, WithLocation(loc))
		}

		s := NewScheduler(rt.Logger, options...)
		for _, job := range b.jobs {
			fn, err := wrapHandler(rt, s.logger, job)
			if err != nil {
				return err
			}
			if err := s.AddJob(job.spec, job.name, fn); err != nil {
				return err
			}
		}
		return rt.Provide(s)
	}
}

// wrapHandler 将带依赖参数的处理函数包装为 func()。
// 容器在执行时才读取，WithSettings 替换容器不影响已注册的任务。
func wrapHandler(rt *core.Runtime, logger logging.Logger, job jobDefinition) (func(), error) {
	switch h := job.handler.(type) {
	case func():
		return h, nil
	case nil:
		return nil, fmt.Errorf("cron: job %q has no handler", job.name)
	}

	if reflect.TypeOf(job.handler).Kind() != reflect.Func {
		return nil, fmt.Errorf("cron: job %q handler must be a function, got %T", job.name, job.handler)
	}
	return func() {
		if err := di.Invoke(rt.Container, job.handler); err != nil {
			logger.Error("cron job failed", logging.Field{Key: "job", Value: job.name}, logging.Err(err))
		}
	}, nil
}
