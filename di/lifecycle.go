package di

import "sync"

// instanceTracker 按创建顺序记录需要销毁的实例
type instanceTracker struct {
	mu        sync.Mutex
	instances []any
}

func (t *instanceTracker) track(inst any) {
	if inst == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.instances = append(t.instances, inst)
}

// drain 取出全部实例并清空
func (t *instanceTracker) drain() []any {
	t.mu.Lock()
	defer t.mu.Unlock()
	instances := t.instances
	t.instances = nil
	return instances
}
