package database

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gocrud/infra/lifecycle"
	"github.com/gocrud/infra/logging"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultName 默认连接名，同时以无名方式注册到容器
const DefaultName = "default"

// ErrClosed 表示注册表已关闭
var ErrClosed = errors.New("database: registry closed")

// Options 单个数据库连接的配置
type Options struct {
	Name            string
	Dialector       gorm.Dialector
	GormConfig      *gorm.Config
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// AutoMigrate 打开后需要自动迁移的模型
	AutoMigrate []any
}

// Validate 校验必填项
func (o *Options) Validate() error {
	if o.Name == "" {
		return errors.New("database: name is required")
	}
	if o.Dialector == nil {
		return fmt.Errorf("database: dialector is required for %q", o.Name)
	}
	return nil
}

func (o Options) withDefaults() Options {
	if o.GormConfig == nil {
		o.GormConfig = &gorm.Config{Logger: logger.Discard}
	}
	if o.MaxOpenConns == 0 {
		o.MaxOpenConns = 100
	}
	if o.MaxIdleConns == 0 {
		o.MaxIdleConns = 10
	}
	if o.ConnMaxLifetime == 0 {
		o.ConnMaxLifetime = time.Hour
	}
	return o
}

// Registry 按名称管理 gorm 连接。容器创建它之后打开全部连接，关闭容器时释放。
type Registry struct {
	mu      sync.RWMutex
	options []Options
	dbs     map[string]*gorm.DB
	closed  bool
	logger  logging.Logger

	_ lifecycle.PostConstruct `method:"Open"`
	_ lifecycle.PreDestroy    `method:"Close"`
}

// NewRegistry 校验配置并创建注册表，此时尚未建立连接
func NewRegistry(log logging.Logger, opts ...Options) (*Registry, error) {
	seen := make(map[string]struct{}, len(opts))
	options := make([]Options, 0, len(opts))
	for i := range opts {
		if err := opts[i].Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[opts[i].Name]; dup {
			return nil, fmt.Errorf("database: %q already configured", opts[i].Name)
		}
		seen[opts[i].Name] = struct{}{}
		options = append(options, opts[i].withDefaults())
	}

	return &Registry{
		options: options,
		dbs:     make(map[string]*gorm.DB, len(options)),
		logger:  logging.OrNop(log).WithCategory("database"),
	}, nil
}

// Open 按配置顺序打开全部连接。任一失败时关闭已打开的连接并返回错误。
func (r *Registry) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	for _, opts := range r.options {
		if _, ok := r.dbs[opts.Name]; ok {
			continue
		}
		db, err := open(opts)
		if err != nil {
			r.closeLocked()
			return err
		}
		r.dbs[opts.Name] = db
		r.logger.Info("database opened",
			logging.Field{Key: "name", Value: opts.Name},
			logging.Field{Key: "dialect", Value: DialectOf(db).String()})
	}
	return nil
}

func open(opts Options) (*gorm.DB, error) {
	db, err := gorm.Open(opts.Dialector, opts.GormConfig)
	if err != nil {
		return nil, fmt.Errorf("database: open %q: %w", opts.Name, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: pool of %q: %w", opts.Name, err)
	}
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)

	if len(opts.AutoMigrate) > 0 {
		if err := db.AutoMigrate(opts.AutoMigrate...); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("database: migrate %q: %w", opts.Name, err)
		}
	}
	return db, nil
}

// Close 关闭全部连接，重复调用无副作用
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.closeLocked()
}

func (r *Registry) closeLocked() error {
	var errs []error
	// 逆序关闭
	for i := len(r.options) - 1; i >= 0; i-- {
		name := r.options[i].Name
		db, ok := r.dbs[name]
		if !ok {
			continue
		}
		delete(r.dbs, name)

		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.Close()
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("database: close %q: %w", name, err))
			continue
		}
		r.logger.Info("database closed", logging.Field{Key: "name", Value: name})
	}
	return errors.Join(errs...)
}

// Get 返回指定名称的连接
func (r *Registry) Get(name string) (*gorm.DB, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrClosed
	}
	db, ok := r.dbs[name]
	if !ok {
		return nil, fmt.Errorf("database: %q is not open", name)
	}
	return db, nil
}

// Each 按配置顺序遍历已打开的连接
func (r *Registry) Each(fn func(name string, db *gorm.DB)) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, opts := range r.options {
		if db, ok := r.dbs[opts.Name]; ok {
			fn(opts.Name, db)
		}
	}
}

// Names 返回配置的连接名
func (r *Registry) Names() []string {
	names := make([]string, len(r.options))
	for i, opts := range r.options {
		names[i] = opts.Name
	}
	return names
}
