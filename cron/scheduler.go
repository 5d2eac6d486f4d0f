package cron

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gocrud/infra/lifecycle"
	"github.com/gocrud/infra/logging"
	"github.com/robfig/cron/v3"
)

// ErrJobNotFound 表示任务不存在
var ErrJobNotFound = errors.New("cron: job not found")

// Job 任务快照
type Job struct {
	Name string
	Spec string
	Next time.Time
	Prev time.Time
}

type entry struct {
	id   cron.EntryID
	spec string
}

// Scheduler 包装 robfig/cron。由容器创建后自动启动，容器关闭时停止并等待运行中的任务。
type Scheduler struct {
	cron        *cron.Cron
	logger      logging.Logger
	stopTimeout time.Duration

	mu      sync.RWMutex
	jobs    map[string]entry
	running bool

	_ lifecycle.PostConstruct `method:"Start"`
	_ lifecycle.PreDestroy    `method:"Stop"`
}

// Option 配置 Scheduler
type Option func(*settings)

type settings struct {
	seconds     bool
	location    *time.Location
	verbose     bool
	stopTimeout time.Duration
}

// WithSeconds 启用秒级精度，表达式第一段为秒
func WithSeconds() Option {
	return func(s *settings) { s.seconds = true }
}

// WithLocation 设置时区，默认 UTC
func WithLocation(loc *time.Location) Option {
	return func(s *settings) { s.location = loc }
}

// WithCronLogger 输出 cron 库内部的调度日志
func WithCronLogger() Option {
	return func(s *settings) { s.verbose = true }
}

// WithStopTimeout 设置 Stop 等待运行中任务的最长时间，默认 30 秒
func WithStopTimeout(d time.Duration) Option {
	return func(s *settings) { s.stopTimeout = d }
}

// NewScheduler 创建调度器，尚未启动
func NewScheduler(logger logging.Logger, opts ...Option) *Scheduler {
	cfg := settings{location: time.UTC, stopTimeout: 30 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger = logging.OrNop(logger).WithCategory("cron")
	adapter := newCronLogger(logger)

	cronOpts := []cron.Option{
		cron.WithLocation(cfg.location),
		cron.WithChain(cron.Recover(adapter)),
	}
	if cfg.verbose {
		cronOpts = append(cronOpts, cron.WithLogger(adapter))
	}
	if cfg.seconds {
		cronOpts = append(cronOpts, cron.WithSeconds())
	}

	return &Scheduler{
		cron:        cron.New(cronOpts...),
		logger:      logger,
		stopTimeout: cfg.stopTimeout,
		jobs:        make(map[string]entry),
	}
}

// AddJob 添加定时任务，name 不可重复
// spec 示例："*/5 * * * *"，启用秒级后为 "0 */5 * * * *"，也支持 "@every 1m"。
func (s *Scheduler) AddJob(spec, name string, job func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("cron: job %q already registered", name)
	}

	id, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		s.logger.Debug("cron job started", logging.Field{Key: "job", Value: name})
		defer func() {
			s.logger.Debug("cron job completed",
				logging.Field{Key: "job", Value: name},
				logging.Field{Key: "elapsed", Value: time.Since(start)})
		}()
		job()
	})
	if err != nil {
		return fmt.Errorf("cron: add job %q: %w", name, err)
	}

	s.jobs[name] = entry{id: id, spec: spec}
	s.logger.Info("cron job registered",
		logging.Field{Key: "job", Value: name},
		logging.Field{Key: "spec", Value: spec})
	return nil
}

// RemoveJob 移除任务，返回任务是否存在
func (s *Scheduler) RemoveJob(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.jobs[name]
	if !exists {
		return false
	}
	s.cron.Remove(e.id)
	delete(s.jobs, name)
	s.logger.Info("cron job removed", logging.Field{Key: "job", Value: name})
	return true
}

// RunNow 立即同步执行一次任务，经过与定时执行相同的 recover 链
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	e, exists := s.jobs[name]
	s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	ce := s.cron.Entry(e.id)
	if !ce.Valid() {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	ce.WrappedJob.Run()
	return nil
}

// Jobs 返回按名称排序的任务快照
func (s *Scheduler) Jobs() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]Job, 0, len(s.jobs))
	for name, e := range s.jobs {
		ce := s.cron.Entry(e.id)
		jobs = append(jobs, Job{Name: name, Spec: e.spec, Next: ce.Next, Prev: ce.Prev})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	return jobs
}

// Running 返回调度器是否在运行
func (s *Scheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Start 启动调度，重复调用无副作用
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()
	s.logger.Info("cron scheduler started", logging.Field{Key: "jobs", Value: len(s.jobs)})
}

// Stop 停止调度并等待运行中的任务，超时返回错误
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("cron scheduler stopped")
		return nil
	case <-time.After(s.stopTimeout):
		return fmt.Errorf("cron: running jobs did not finish within %v", s.stopTimeout)
	}
}
