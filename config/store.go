package config

import (
	"strings"
	"sync"
	"sync/atomic"
)

// valueStore 保存当前配置快照，读取无锁
type valueStore struct {
	data  atomic.Pointer[map[string]any]
	paths sync.Map // key -> []string
}

func newValueStore() *valueStore {
	s := &valueStore{}
	s.swap(make(map[string]any))
	return s
}

func (s *valueStore) load() map[string]any {
	return *s.data.Load()
}

func (s *valueStore) swap(data map[string]any) {
	s.data.Store(&data)
}

// segments 返回 prefix 之后拼接 key 的路径片段。
// key 的解析结果会被缓存，调用方不得修改返回的切片。
func (s *valueStore) segments(prefix []string, key string) []string {
	parts := s.split(key)
	if len(prefix) == 0 {
		return parts
	}
	if len(parts) == 0 {
		return prefix
	}
	joined := make([]string, 0, len(prefix)+len(parts))
	return append(append(joined, prefix...), parts...)
}

func (s *valueStore) split(key string) []string {
	if key == "" {
		return nil
	}
	if v, ok := s.paths.Load(key); ok {
		return v.([]string)
	}
	parts := strings.FieldsFunc(key, func(r rune) bool { return r == ':' || r == '.' })
	s.paths.Store(key, parts)
	return parts
}
