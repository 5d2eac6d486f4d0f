// Package infra 是应用入口：应用 Option、构建容器、执行启动钩子、等待退出信号，
// 随后执行停止钩子并关闭容器（触发单例的销毁钩子并清空生命周期缓存）。
package infra

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/gocrud/infra/core"
	"github.com/gocrud/infra/logging"
)

// Run 启动应用程序，直到收到 SIGINT/SIGTERM 或 Runtime.Shutdown
func Run(opts ...core.Option) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return RunContext(ctx, opts...)
}

// RunContext 与 Run 相同，但以 ctx 的取消代替系统信号
func RunContext(ctx context.Context, opts ...core.Option) error {
	rt := core.NewRuntime()

	// 1. Bootstrap
	if err := rt.Apply(opts...); err != nil {
		return err
	}

	// 2. 构建容器，急切创建单例并执行其构建后钩子
	if err := rt.Container.Build(); err != nil {
		return errors.Join(err, rt.Container.Close())
	}

	// 3. 启动
	if err := rt.Lifecycle.Start(ctx); err != nil {
		return errors.Join(err, shutdown(rt))
	}
	rt.Logger.Info("application started")

	// 4. 阻塞等待退出
	select {
	case <-ctx.Done():
	case <-rt.Done():
	}

	// 5. 优雅关闭
	return shutdown(rt)
}

func shutdown(rt *core.Runtime) error {
	ctx, cancel := context.WithTimeout(context.Background(), rt.ShutdownTimeout)
	defer cancel()

	rt.Logger.Info("application stopping")
	err := rt.Lifecycle.Stop(ctx)
	if cerr := rt.Container.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	if err != nil {
		rt.Logger.Error("application stopped with errors", logging.Err(err))
	}
	return err
}
