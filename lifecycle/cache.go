package lifecycle

import (
	"reflect"
	"slices"
	"sync"

	"github.com/gocrud/infra/logging"
)

// MetadataCache 按类型缓存生命周期元数据，可并发使用。
// 条目在首次查找时计算，除 Clear 外不会失效。
type MetadataCache struct {
	entries     sync.Map // reflect.Type -> *Metadata
	mu          sync.Mutex
	discoverer  Discoverer
	logger      logging.Logger
	logFailures bool
}

// NewMetadataCache 创建缓存
func NewMetadataCache(opts ...Option) *MetadataCache {
	o := &options{
		discoverer:  TagDiscoverer{},
		logFailures: true,
	}
	for _, opt := range opts {
		opt(o)
	}

	discoverer := o.discoverer
	if len(o.manifests) > 0 {
		ds := []Discoverer{discoverer}
		for _, m := range o.manifests {
			ds = append(ds, m)
		}
		discoverer = Discoverers(ds...)
	}

	logger := logging.OrNop(o.logger).WithCategory("lifecycle")
	return &MetadataCache{
		discoverer:  discoverer,
		logger:      logger,
		logFailures: o.logFailures,
	}
}

// Find 返回类型 t 的元数据，指针类型会被解引用一次。
// 非结构体类型返回空元数据。钩子声明错误返回 *ConfigError，且不会被缓存。
func (c *MetadataCache) Find(t reflect.Type) (*Metadata, error) {
	if t == nil {
		return nil, ErrNilType
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	// 快速路径：无锁读取
	if md, ok := c.entries.Load(t); ok {
		return md.(*Metadata), nil
	}

	// 慢速路径：带锁计算
	c.mu.Lock()
	defer c.mu.Unlock()

	// 双重检查
	if md, ok := c.entries.Load(t); ok {
		return md.(*Metadata), nil
	}

	md, err := c.build(t)
	if err != nil {
		return nil, err
	}
	c.entries.Store(t, md)
	return md, nil
}

// FindFor 返回 target 动态类型的元数据
func (c *MetadataCache) FindFor(target any) (*Metadata, error) {
	return c.Find(reflect.TypeOf(target))
}

// Clear 清空缓存，之后的查找会重新计算
func (c *MetadataCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Clear()
}

// Len 返回缓存条目数
func (c *MetadataCache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// build 自根类型沿嵌入链向内遍历。每层的构建后钩子整体插入到已累积列表之前，
// 销毁前钩子按发现顺序追加。
func (c *MetadataCache) build(t reflect.Type) (*Metadata, error) {
	var initElements, destroyElements []*Element

	for _, level := range levelsOf(t) {
		elements, err := c.discoverer.Discover(t, level)
		if err != nil {
			return nil, err
		}

		var current []*Element
		for _, e := range elements {
			switch e.kind {
			case KindPostConstruct:
				current = append(current, e)
			case KindPreDestroy:
				destroyElements = append(destroyElements, e)
			}
		}
		initElements = append(current, initElements...)
	}

	if len(initElements) > 0 || len(destroyElements) > 0 {
		c.logger.Debug("lifecycle metadata computed",
			logging.Field{Key: "type", Value: t.String()},
			logging.Field{Key: "init", Value: len(initElements)},
			logging.Field{Key: "destroy", Value: len(destroyElements)})
	}

	return &Metadata{
		typ:             t,
		initElements:    dedupe(initElements),
		destroyElements: dedupe(destroyElements),
		logger:          c.logger,
		logFailures:     c.logFailures,
	}, nil
}

// levelsOf 深度优先列出根类型及其嵌入的结构体，每个类型只出现一次。
func levelsOf(t reflect.Type) []Level {
	if t.Kind() != reflect.Struct {
		return nil
	}

	var levels []Level
	seen := make(map[reflect.Type]bool)

	var walk func(typ reflect.Type, index []int, depth int)
	walk = func(typ reflect.Type, index []int, depth int) {
		if seen[typ] {
			return
		}
		seen[typ] = true
		levels = append(levels, Level{Type: typ, Index: index, Depth: depth})

		for i := 0; i < typ.NumField(); i++ {
			field := typ.Field(i)
			if !field.Anonymous {
				continue
			}
			ft := field.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() != reflect.Struct {
				continue
			}
			if _, marker := markerKind(ft); marker {
				continue
			}
			walk(ft, append(slices.Clone(index), i), depth+1)
		}
	}
	walk(t, nil, 0)

	return levels
}
