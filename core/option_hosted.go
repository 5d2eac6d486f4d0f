package core

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/gocrud/infra/logging"
)

var hostedServiceType = reflect.TypeOf((*HostedService)(nil)).Elem()

// WithHostedService 注册一个托管服务。constructor 的用法同 Runtime.Provide，
// 得到的服务类型必须实现 HostedService。
func WithHostedService(constructor any) Option {
	return func(rt *Runtime) error {
		serviceType, err := serviceTypeOf(constructor)
		if err != nil {
			return err
		}
		if !serviceType.Implements(hostedServiceType) {
			return fmt.Errorf("core: service %v does not implement core.HostedService", serviceType)
		}
		if err := rt.Provide(constructor); err != nil {
			return fmt.Errorf("core: provide hosted service: %w", err)
		}

		name := serviceType.String()
		var svc HostedService
		r := newRunner(rt, name)

		rt.Lifecycle.OnStart(func(ctx context.Context) error {
			val, err := rt.Container.Get(serviceType)
			if err != nil {
				return fmt.Errorf("core: resolve hosted service %v: %w", serviceType, err)
			}
			svc = val.(HostedService)
			r.start(svc.Start)
			return nil
		})

		rt.Lifecycle.OnStop(func(ctx context.Context) error {
			r.cancel()
			if svc == nil {
				return nil
			}
			err := svc.Stop(ctx)
			r.wait(ctx)
			return err
		})
		return nil
	}
}

// WorkerFunc 定义简单的后台任务函数
// 这是一个阻塞函数，通过 ctx.Done() 判断退出。
type WorkerFunc func(ctx context.Context) error

// WithWorker 将一个阻塞的函数注册为后台任务，启动时异步运行，停止时取消并等待退出
func WithWorker(name string, fn WorkerFunc) Option {
	return func(rt *Runtime) error {
		r := newRunner(rt, name)
		rt.Lifecycle.OnStart(func(context.Context) error {
			r.start(fn)
			return nil
		})
		rt.Lifecycle.OnStop(func(ctx context.Context) error {
			r.cancel()
			r.wait(ctx)
			return nil
		})
		return nil
	}
}

// runner 在后台运行一个阻塞函数，意外退出时请求应用关闭
type runner struct {
	rt     *Runtime
	name   string
	wg     sync.WaitGroup
	mu     sync.Mutex
	stopFn context.CancelFunc
}

func newRunner(rt *Runtime, name string) *runner {
	return &runner{rt: rt, name: name}
}

func (r *runner) start(fn func(context.Context) error) {
	// 不继承启动上下文，后台任务存活到 Stop
	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.stopFn = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		err := fn(ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		r.rt.Logger.Error("background service exited", logging.Field{Key: "service", Value: r.name}, logging.Err(err))
		r.rt.Shutdown()
	}()
}

func (r *runner) cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopFn != nil {
		r.stopFn()
	}
}

// wait 等待后台 goroutine 退出或 ctx 结束
func (r *runner) wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		r.rt.Logger.Warn("background service did not stop in time", logging.Field{Key: "service", Value: r.name})
	}
}

// serviceTypeOf 推断 Runtime.Provide 会注册的服务类型
func serviceTypeOf(target any) (reflect.Type, error) {
	if typ, ok := target.(reflect.Type); ok {
		return typ, nil
	}
	t := reflect.TypeOf(target)
	switch {
	case t == nil:
		return nil, errors.New("core: nil hosted service")
	case t.Kind() == reflect.Func:
		if t.NumOut() == 0 {
			return nil, fmt.Errorf("core: constructor %v returns nothing", t)
		}
		return t.Out(0), nil
	default:
		return t, nil
	}
}
