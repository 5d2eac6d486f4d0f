package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gocrud/infra/logging"
)

// Hook 生命周期钩子
type Hook func(context.Context) error

// LifecycleEvents 管理应用程序级的启动和停止钩子
type LifecycleEvents struct {
	mu      sync.Mutex
	onStart []Hook
	onStop  []Hook
	logger  logging.Logger
}

// NewLifecycle 创建新的生命周期管理器
func NewLifecycle(logger logging.Logger) *LifecycleEvents {
	return &LifecycleEvents{logger: logging.OrNop(logger).WithCategory("lifecycle")}
}

// OnStart 注册启动钩子
func (l *LifecycleEvents) OnStart(fn Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onStart = append(l.onStart, fn)
}

// OnStop 注册停止钩子
func (l *LifecycleEvents) OnStop(fn Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onStop = append(l.onStop, fn)
}

// Start 按注册顺序执行启动钩子，第一个错误即返回
func (l *LifecycleEvents) Start(ctx context.Context) error {
	for i, fn := range l.snapshot(&l.onStart) {
		if err := fn(ctx); err != nil {
			return fmt.Errorf("core: start hook %d: %w", i, err)
		}
	}
	return nil
}

// Stop 倒序执行停止钩子。失败会被记录并继续执行剩余钩子，最后合并返回。
func (l *LifecycleEvents) Stop(ctx context.Context) error {
	hooks := l.snapshot(&l.onStop)

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i](ctx); err != nil {
			l.logger.Error("stop hook failed", logging.Field{Key: "index", Value: i}, logging.Err(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (l *LifecycleEvents) snapshot(hooks *[]Hook) []Hook {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Hook(nil), (*hooks)...)
}
