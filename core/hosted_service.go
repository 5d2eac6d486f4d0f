package core

import "context"

// HostedService 定义了一个具有启动和停止生命周期的托管服务
type HostedService interface {
	// Start 在独立的 goroutine 中调用，允许阻塞直到 ctx 取消。
	// 返回非 nil 错误会触发应用关闭。
	Start(ctx context.Context) error

	// Stop 在应用关闭时调用，必须遵守 ctx 的超时
	Stop(ctx context.Context) error
}
