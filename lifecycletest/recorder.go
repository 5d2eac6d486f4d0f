// Package lifecycletest 为声明了生命周期钩子的代码提供测试辅助。
package lifecycletest

import (
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gocrud/infra/lifecycle"
	"github.com/stretchr/testify/assert"
)

// Recorder 按顺序记录钩子调用，可并发使用。零值可用。
type Recorder struct {
	mu    sync.Mutex
	calls []string
}

// Record 记录一次调用
func (r *Recorder) Record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
}

// Calls 返回已记录调用的副本
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Reset 清空记录
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// AssertCalls 断言调用序列与 want 完全一致
func (r *Recorder) AssertCalls(t testing.TB, want ...string) bool {
	t.Helper()
	if len(want) == 0 {
		return assert.Empty(t, r.Calls())
	}
	return assert.Equal(t, want, r.Calls())
}

// CountingDiscoverer 包装一个 Discoverer，统计根类型的元数据计算次数。
type CountingDiscoverer struct {
	Inner lifecycle.Discoverer
	roots atomic.Int64
}

// NewCountingDiscoverer 包装 inner，inner 为 nil 时使用 TagDiscoverer
func NewCountingDiscoverer(inner lifecycle.Discoverer) *CountingDiscoverer {
	if inner == nil {
		inner = lifecycle.TagDiscoverer{}
	}
	return &CountingDiscoverer{Inner: inner}
}

func (d *CountingDiscoverer) Discover(root reflect.Type, level lifecycle.Level) ([]*lifecycle.Element, error) {
	if level.Depth == 0 {
		d.roots.Add(1)
	}
	return d.Inner.Discover(root, level)
}

// Computations 返回根类型被计算的次数
func (d *CountingDiscoverer) Computations() int {
	return int(d.roots.Load())
}
