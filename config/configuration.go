package config

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrKeyNotFound 表示配置键不存在
var ErrKeyNotFound = errors.New("config: key not found")

// Configuration 配置接口。键支持 "a:b:c" 与 "a.b.c" 两种分隔方式。
type Configuration interface {
	// Get 获取配置值的字符串形式，不存在时返回空串
	Get(key string) string
	// GetWithDefault 获取配置值，不存在时返回默认值
	GetWithDefault(key, defaultValue string) string
	// GetInt 获取整数配置值
	GetInt(key string) (int, error)
	// GetBool 获取布尔配置值
	GetBool(key string) (bool, error)
	// GetDuration 获取时长，字符串按 time.ParseDuration 解析，数字按秒计
	GetDuration(key string) (time.Duration, error)
	// GetSection 获取配置节。节与根共享数据，Reload 后同样可见。
	GetSection(key string) Configuration
	// Bind 将配置节按 yaml 标签绑定到 target
	Bind(key string, target any) error
	// GetAll 获取全部配置的副本
	GetAll() map[string]any
}

// Source 配置源
type Source interface {
	Load(ctx context.Context) (map[string]any, error)
	Name() string
}

// ConfigurationBuilder 配置构建器，后添加的配置源覆盖先添加的
type ConfigurationBuilder struct {
	mu      sync.Mutex
	sources []Source
}

// NewConfigurationBuilder 创建配置构建器
func NewConfigurationBuilder() *ConfigurationBuilder {
	return &ConfigurationBuilder{}
}

// Add 添加配置源
func (b *ConfigurationBuilder) Add(source Source) *ConfigurationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources = append(b.sources, source)
	return b
}

// AddJsonFile 添加 JSON 文件配置源
func (b *ConfigurationBuilder) AddJsonFile(path string, optional ...bool) *ConfigurationBuilder {
	return b.Add(&JsonFileSource{Path: path, Optional: len(optional) > 0 && optional[0]})
}

// AddYamlFile 添加 YAML 文件配置源
func (b *ConfigurationBuilder) AddYamlFile(path string, optional ...bool) *ConfigurationBuilder {
	return b.Add(&YamlFileSource{Path: path, Optional: len(optional) > 0 && optional[0]})
}

// AddEnvironmentVariables 添加环境变量配置源
func (b *ConfigurationBuilder) AddEnvironmentVariables(prefix string) *ConfigurationBuilder {
	return b.Add(&EnvironmentVariableSource{Prefix: prefix})
}

// AddInMemory 添加内存配置源
func (b *ConfigurationBuilder) AddInMemory(data map[string]any) *ConfigurationBuilder {
	return b.Add(&InMemorySource{Data: data})
}

// AddEtcd 添加 etcd 配置源
func (b *ConfigurationBuilder) AddEtcd(opts EtcdOptions) *ConfigurationBuilder {
	return b.Add(NewEtcdSource(opts))
}

// Build 依次加载全部配置源并合并
func (b *ConfigurationBuilder) Build(ctx context.Context) (*Root, error) {
	b.mu.Lock()
	sources := append([]Source(nil), b.sources...)
	b.mu.Unlock()

	store := newValueStore()
	root := &Root{view: view{store: store}, sources: sources, store: store}
	if err := root.Reload(ctx); err != nil {
		return nil, err
	}
	return root, nil
}

// Root 是构建得到的根配置，可以重新加载
type Root struct {
	view
	sources []Source
	reload  sync.Mutex
	store   *valueStore
}

// Reload 重新加载全部配置源，成功后原子替换数据；失败时保留旧数据。
func (r *Root) Reload(ctx context.Context) error {
	r.reload.Lock()
	defer r.reload.Unlock()

	data := make(map[string]any)
	for _, source := range r.sources {
		loaded, err := source.Load(ctx)
		if err != nil {
			return fmt.Errorf("config: load source %s: %w", source.Name(), err)
		}
		mergeMaps(data, loaded)
	}

	r.store.swap(data)
	return nil
}

// Sources 返回配置源名称
func (r *Root) Sources() []string {
	names := make([]string, len(r.sources))
	for i, s := range r.sources {
		names[i] = s.Name()
	}
	return names
}

// view 是挂在某个路径上的只读视图
type view struct {
	store  *valueStore
	prefix []string
}

func (v view) lookup(key string) (any, bool) {
	var current any = v.store.load()
	for _, part := range v.store.segments(v.prefix, key) {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = m[part]; !ok {
			return nil, false
		}
	}
	return current, true
}

func (v view) Get(key string) string {
	value, ok := v.lookup(key)
	if !ok || value == nil {
		return ""
	}
	switch x := value.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

func (v view) GetWithDefault(key, defaultValue string) string {
	if value := v.Get(key); value != "" {
		return value
	}
	return defaultValue
}

func (v view) GetInt(key string) (int, error) {
	value, ok := v.lookup(key)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	switch x := value.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		return int(x), nil
	case string:
		return strconv.Atoi(x)
	default:
		return 0, fmt.Errorf("config: cannot convert %v to int", value)
	}
}

func (v view) GetBool(key string) (bool, error) {
	value, ok := v.lookup(key)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	switch x := value.(type) {
	case bool:
		return x, nil
	case string:
		return strconv.ParseBool(x)
	default:
		return false, fmt.Errorf("config: cannot convert %v to bool", value)
	}
}

func (v view) GetDuration(key string) (time.Duration, error) {
	value, ok := v.lookup(key)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	switch x := value.(type) {
	case string:
		return time.ParseDuration(x)
	case int:
		return time.Duration(x) * time.Second, nil
	case float64:
		return time.Duration(x * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("config: cannot convert %v to duration", value)
	}
}

func (v view) GetSection(key string) Configuration {
	return view{store: v.store, prefix: v.store.segments(v.prefix, key)}
}

func (v view) Bind(key string, target any) error {
	value, ok := v.lookup(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}

	// 经 yaml 往返完成类型转换，目标结构体使用 yaml 标签
	raw, err := yaml.Marshal(value)
	if err != nil {
		return fmt.Errorf("config: marshal %q: %w", key, err)
	}
	if err := yaml.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("config: bind %q: %w", key, err)
	}
	return nil
}

func (v view) GetAll() map[string]any {
	value, ok := v.lookup("")
	result := make(map[string]any)
	if m, isMap := value.(map[string]any); ok && isMap {
		mergeMaps(result, m)
	}
	return result
}

// mergeMaps 深度合并 src 到 dst，嵌套 map 会被复制而不是共享
func mergeMaps(dst, src map[string]any) {
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		if !srcIsMap {
			dst[k] = v
			continue
		}
		dstMap, ok := dst[k].(map[string]any)
		if !ok {
			dstMap = make(map[string]any, len(srcMap))
			dst[k] = dstMap
		}
		mergeMaps(dstMap, srcMap)
	}
}
